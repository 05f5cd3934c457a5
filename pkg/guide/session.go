// Package guide runs the guidance control loop: it applies voice commands
// to a mode state machine and, per processed frame, drives matching,
// tracking, guidance and announcements for the active mode.
package guide

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-seek/pkg/tracking"
)

// Mode is the active guidance mode.
type Mode int

const (
	Idle Mode = iota
	Find
	What
	Read
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Find:
		return "find"
	case What:
		return "what"
	case Read:
		return "read"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Session is the state of one mode entry. A fresh Session replaces the old
// one on every transition, so at most one Track exists per find session.
type Session struct {
	ID         string
	Mode       Mode
	Query      string
	Track      tracking.Track
	WaitFrames int
	LastPhrase string
	Started    time.Time
}

func newSession(mode Mode, query string) Session {
	return Session{
		ID:      uuid.NewString(),
		Mode:    mode,
		Query:   query,
		Started: time.Now(),
	}
}

// Status is the externally visible controller state.
type Status struct {
	Mode       Mode   `json:"mode"`
	Query      string `json:"query"`
	Locked     bool   `json:"locked"`
	LastPhrase string `json:"last_phrase"`
	Frames     int64  `json:"frames"`
	SessionID  string `json:"session_id"`
}

// sameState reports whether two statuses differ only in frame count.
func (s Status) sameState(o Status) bool {
	s.Frames, o.Frames = 0, 0
	return s == o
}

// Spoken messages.
const (
	MsgReady     = "Seek is ready."
	MsgGoodbye   = "Goodbye."
	MsgStopped   = "Stopped."
	MsgAnalyzing = "Analyzing..."
	MsgReading   = "Reading."
	MsgNothing   = "Nothing detected."
	MsgNoText    = "No text found."
)

func msgLooking(q string) string { return fmt.Sprintf("Looking for %s.", q) }
func msgFound(q string) string   { return fmt.Sprintf("Found %s!", q) }
func msgLost(q string) string    { return fmt.Sprintf("Lost the %s.", q) }
