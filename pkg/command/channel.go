package command

import (
	"errors"
	"sync/atomic"
)

// DefaultCapacity is the buffer size used when NewChannel gets a
// non-positive capacity.
const DefaultCapacity = 16

// ErrFull is returned by TryPush when the buffer is full.
var ErrFull = errors.New("command: channel full")

// Channel is a bounded FIFO between the speech recognizer and the frame
// loop. Push and TryPush may be called from any goroutine; Poll is called
// once per tick by the frame loop.
type Channel struct {
	ch      chan Command
	dropped atomic.Int64
}

// NewChannel creates a channel holding up to capacity pending commands.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel{ch: make(chan Command, capacity)}
}

// Push blocks until the command is buffered or done is closed.
// It reports whether the command was accepted.
func (c *Channel) Push(cmd Command, done <-chan struct{}) bool {
	select {
	case c.ch <- cmd:
		return true
	case <-done:
		return false
	}
}

// TryPush buffers the command without blocking and returns ErrFull when
// there is no room. Rejected commands are counted in Dropped.
func (c *Channel) TryPush(cmd Command) error {
	select {
	case c.ch <- cmd:
		return nil
	default:
		c.dropped.Add(1)
		return ErrFull
	}
}

// Poll returns the oldest pending command, if any. It never blocks.
func (c *Channel) Poll() (Command, bool) {
	select {
	case cmd := <-c.ch:
		return cmd, true
	default:
		return Command{}, false
	}
}

// Len returns the number of pending commands.
func (c *Channel) Len() int {
	return len(c.ch)
}

// Dropped returns how many commands TryPush rejected.
func (c *Channel) Dropped() int64 {
	return c.dropped.Load()
}
