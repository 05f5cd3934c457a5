// Package command carries recognized voice commands from the speech
// recognizer to the frame loop.
package command

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Action is what a command asks the controller to do.
type Action string

const (
	Find Action = "find"
	What Action = "what"
	Read Action = "read"
	Stop Action = "stop"
	Quit Action = "quit"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case Find, What, Read, Stop, Quit:
		return true
	}
	return false
}

// Command is a single recognized utterance. Argument is only used by Find.
type Command struct {
	Action   Action `json:"action"`
	Argument string `json:"argument,omitempty"`
}

func (c Command) String() string {
	if c.Argument == "" {
		return string(c.Action)
	}
	return fmt.Sprintf("%s(%s)", c.Action, c.Argument)
}

// Errors returned by Parse and New.
var (
	ErrUnrecognized  = errors.New("command: unrecognized utterance")
	ErrMissingTarget = errors.New("command: find needs an item")
)

// New builds a command from an action name and argument, as received from
// the HTTP API.
func New(action, argument string) (Command, error) {
	a := Action(strings.ToLower(strings.TrimSpace(action)))
	if !a.Valid() {
		return Command{}, fmt.Errorf("%w: action %q", ErrUnrecognized, action)
	}
	arg := strings.TrimSpace(argument)
	if a == Find {
		arg = strings.ToLower(arg)
		if arg == "" {
			return Command{}, ErrMissingTarget
		}
		return Command{Action: Find, Argument: arg}, nil
	}
	return Command{Action: a}, nil
}

var (
	wakePrefixes = []string{"hey seek", "ok seek", "okay seek", "please"}
	findPrefixes = []string{"look for", "search for", "where is", "where's", "find"}
	articles     = map[string]bool{"the": true, "a": true, "an": true, "my": true, "some": true}
)

// Parse maps a transcript onto a command. Matching is case-insensitive and
// ignores punctuation; anything outside the grammar returns ErrUnrecognized.
func Parse(utterance string) (Command, error) {
	text := stripWake(normalize(utterance))
	if text == "" {
		return Command{}, ErrUnrecognized
	}

	for _, p := range findPrefixes {
		if text == p {
			return Command{}, ErrMissingTarget
		}
		if rest, ok := strings.CutPrefix(text, p+" "); ok {
			item := stripArticles(rest)
			if item == "" {
				return Command{}, ErrMissingTarget
			}
			return Command{Action: Find, Argument: item}, nil
		}
	}

	switch text {
	case "what", "what is this", "what's this", "what is that", "what's that", "what am i looking at":
		return Command{Action: What}, nil
	case "read", "read this", "read it", "read that", "read the text":
		return Command{Action: Read}, nil
	case "stop", "cancel", "never mind", "nevermind":
		return Command{Action: Stop}, nil
	case "quit", "exit", "goodbye", "shut down":
		return Command{Action: Quit}, nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnrecognized, utterance)
}

func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// stripWake removes wake words in any order and repetition.
func stripWake(text string) string {
	for {
		stripped := false
		for _, p := range wakePrefixes {
			if text == p {
				return ""
			}
			if rest, ok := strings.CutPrefix(text, p+" "); ok {
				text, stripped = rest, true
			}
		}
		if !stripped {
			return text
		}
	}
}

func stripArticles(s string) string {
	words := strings.Fields(s)
	for len(words) > 0 && articles[words[0]] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}
