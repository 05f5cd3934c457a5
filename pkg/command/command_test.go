package command

import (
	"errors"
	"sync"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		utterance string
		want      Command
	}{
		{"find milk", Command{Action: Find, Argument: "milk"}},
		{"Find the milk carton.", Command{Action: Find, Argument: "milk carton"}},
		{"please look for my keys", Command{Action: Find, Argument: "keys"}},
		{"hey seek where's the cereal", Command{Action: Find, Argument: "cereal"}},
		{"please hey seek find milk", Command{Action: Find, Argument: "milk"}},
		{"Hey Seek, please, read this", Command{Action: Read}},
		{"please please stop", Command{Action: Stop}},
		{"where is a peanut butter jar?", Command{Action: Find, Argument: "peanut butter jar"}},
		{"What is this?", Command{Action: What}},
		{"what", Command{Action: What}},
		{"read this", Command{Action: Read}},
		{"READ", Command{Action: Read}},
		{"stop", Command{Action: Stop}},
		{"never mind", Command{Action: Stop}},
		{"quit", Command{Action: Quit}},
		{"goodbye!", Command{Action: Quit}},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			got, err := Parse(tt.utterance)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.utterance, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.utterance, got, tt.want)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		utterance string
		want      error
	}{
		{"", ErrUnrecognized},
		{"please", ErrUnrecognized},
		{"please hey seek", ErrUnrecognized},
		{"what time is it", ErrUnrecognized},
		{"finder", ErrUnrecognized},
		{"find", ErrMissingTarget},
		{"find the", ErrMissingTarget},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			_, err := Parse(tt.utterance)
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse(%q) error = %v, want %v", tt.utterance, err, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	cmd, err := New("FIND", "  Milk ")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cmd != (Command{Action: Find, Argument: "milk"}) {
		t.Errorf("New = %v", cmd)
	}

	cmd, err = New("stop", "ignored")
	if err != nil || cmd != (Command{Action: Stop}) {
		t.Errorf("New(stop) = %v, %v", cmd, err)
	}

	if _, err := New("find", ""); !errors.Is(err, ErrMissingTarget) {
		t.Errorf("New(find, \"\") error = %v", err)
	}
	if _, err := New("dance", ""); !errors.Is(err, ErrUnrecognized) {
		t.Errorf("New(dance) error = %v", err)
	}
}

func TestChannel_PollOnePerCallInOrder(t *testing.T) {
	c := NewChannel(4)

	if _, ok := c.Poll(); ok {
		t.Fatal("empty channel returned a command")
	}

	cmds := []Command{{Action: Find, Argument: "milk"}, {Action: Read}, {Action: Stop}}
	for _, cmd := range cmds {
		if err := c.TryPush(cmd); err != nil {
			t.Fatalf("TryPush: %v", err)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}

	for i, want := range cmds {
		got, ok := c.Poll()
		if !ok {
			t.Fatalf("poll %d: channel empty", i)
		}
		if got != want {
			t.Errorf("poll %d: got %v, want %v", i, got, want)
		}
	}
	if _, ok := c.Poll(); ok {
		t.Error("channel should be drained")
	}
}

func TestChannel_TryPushFull(t *testing.T) {
	c := NewChannel(1)

	if err := c.TryPush(Command{Action: Read}); err != nil {
		t.Fatalf("first push: %v", err)
	}
	if err := c.TryPush(Command{Action: Stop}); !errors.Is(err, ErrFull) {
		t.Errorf("second push error = %v, want ErrFull", err)
	}
	if c.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", c.Dropped())
	}

	got, _ := c.Poll()
	if got.Action != Read {
		t.Errorf("oldest command lost: got %v", got)
	}
}

func TestChannel_PushUnblocksOnDone(t *testing.T) {
	c := NewChannel(1)
	c.TryPush(Command{Action: Read})

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	var accepted bool
	go func() {
		defer wg.Done()
		accepted = c.Push(Command{Action: Stop}, done)
	}()

	close(done)
	wg.Wait()
	if accepted {
		t.Error("Push should report rejection after done is closed")
	}
}

func TestChannel_ConcurrentProducer(t *testing.T) {
	c := NewChannel(100)
	done := make(chan struct{})

	go func() {
		for i := 0; i < 50; i++ {
			c.Push(Command{Action: Read}, done)
		}
	}()

	got := 0
	for got < 50 {
		if _, ok := c.Poll(); ok {
			got++
		}
	}
	close(done)
}
