// Package control implements the command channel through which an external
// controller delivers Pause, Resume, and Cancel to a task's checkpoints.
//
// Commands are level-triggered, not edge-triggered: Cancel stays observable
// once set, and Pause stays observable until a matching Resume or a Cancel
// supersedes it. Every checkpoint of every in-flight subtask body under the
// same task observes the same channel, so one Cancel affects them all.
package control

import "sync"

// Command is a control instruction delivered out-of-band to a running task.
type Command int

const (
	// CommandPause requests that work holds at its next checkpoint
	CommandPause Command = iota
	// CommandResume releases a previously requested pause
	CommandResume
	// CommandCancel requests that work unwinds at its next checkpoint
	CommandCancel
)

// String returns the string representation of the command
func (c Command) String() string {
	switch c {
	case CommandPause:
		return "pause"
	case CommandResume:
		return "resume"
	case CommandCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Channel carries level-triggered command state from one controller to any
// number of concurrently running checkpoints. Sending never blocks the
// controller; observing never blocks other observers.
type Channel struct {
	mu        sync.Mutex
	paused    bool
	cancelled bool

	// gate is non-nil exactly while paused. It is closed (and replaced by
	// nil) when a Resume or Cancel arrives, waking every checkpoint that
	// was waiting on it.
	gate chan struct{}
}

// NewChannel creates a command channel with no pending commands.
func NewChannel() *Channel {
	return &Channel{}
}

// Apply delivers a command. It never blocks. Commands that match the
// current state are no-ops, and nothing supersedes a Cancel.
func (c *Channel) Apply(cmd Command) {
	switch cmd {
	case CommandPause:
		c.Pause()
	case CommandResume:
		c.Resume()
	case CommandCancel:
		c.Cancel()
	}
}

// Pause sets the pause level. No-op if already paused or cancelled.
func (c *Channel) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelled || c.paused {
		return
	}
	c.paused = true
	c.gate = make(chan struct{})
}

// Resume clears the pause level and wakes every waiting checkpoint.
// No-op if not paused.
func (c *Channel) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused {
		return
	}
	c.paused = false
	close(c.gate)
	c.gate = nil
}

// Cancel sets the cancel level. It supersedes a pending pause so that
// checkpoints blocked at the pause gate wake up and observe the cancel.
func (c *Channel) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelled {
		return
	}
	c.cancelled = true
	if c.paused {
		c.paused = false
		close(c.gate)
		c.gate = nil
	}
}

// Cancelled reports whether a cancel has been delivered.
func (c *Channel) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// Paused reports whether a pause is pending.
func (c *Channel) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Snapshot returns a consistent view of the command state. When paused is
// true, gate is the channel a checkpoint must wait on; it is closed by the
// Resume or Cancel that ends the pause.
func (c *Channel) Snapshot() (paused, cancelled bool, gate <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused, c.cancelled, c.gate
}
