package input

import (
	"sync"
	"time"
)

// DefaultHoldWindow is how long a key press counts as held without a repeat
// event. Terminals report presses and autorepeats, never releases, so the
// window must outlast the terminal's autorepeat interval.
const DefaultHoldWindow = 300 * time.Millisecond

// HeldKeys derives a held/not-held state per command from press events.
// Each press (including autorepeat) refreshes the command's hold deadline;
// a command reads as pressed until its deadline passes.
//
// Press is called from the UI event goroutine and Pressed from the control
// loop, so access is serialized with a mutex.
type HeldKeys struct {
	mu        sync.Mutex
	window    time.Duration
	deadlines map[Command]time.Time
	now       func() time.Time
}

// NewHeldKeys creates a tracker with the given hold window. A window of 0
// uses DefaultHoldWindow.
func NewHeldKeys(window time.Duration) *HeldKeys {
	if window <= 0 {
		window = DefaultHoldWindow
	}
	return &HeldKeys{
		window:    window,
		deadlines: make(map[Command]time.Time),
		now:       time.Now,
	}
}

// Press records a press or autorepeat event for cmd.
func (h *HeldKeys) Press(cmd Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deadlines[cmd] = h.now().Add(h.window)
}

// Release clears cmd immediately, without waiting for the window to expire.
func (h *HeldKeys) Release(cmd Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.deadlines, cmd)
}

// Pressed reports whether cmd is currently held.
func (h *HeldKeys) Pressed(cmd Command) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	deadline, ok := h.deadlines[cmd]
	if !ok {
		return false
	}
	if h.now().After(deadline) {
		delete(h.deadlines, cmd)
		return false
	}
	return true
}
