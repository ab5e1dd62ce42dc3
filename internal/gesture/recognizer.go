// Package gesture turns pointer start/move/end events into discrete feed
// navigation commands.
package gesture

import (
	"math"
	"sync"
)

// DefaultThreshold is the minimum vertical travel, in device-independent
// pixels, that counts as a swipe.
const DefaultThreshold = 50.0

// State of the recognizer.
type State int

const (
	Idle State = iota
	Tracking
)

func (s State) String() string {
	if s == Tracking {
		return "tracking"
	}
	return "idle"
}

// Command is a navigation step; it is passed to feed.Navigator.Advance.
type Command int

const (
	Next     Command = 1  // swipe up
	Previous Command = -1 // swipe down
)

func (c Command) String() string {
	switch c {
	case Next:
		return "next"
	case Previous:
		return "previous"
	default:
		return "none"
	}
}

// Recognizer tracks one pointer at a time.
type Recognizer struct {
	mu        sync.Mutex
	threshold float64
	state     State
	startX    float64
	startY    float64
}

// NewRecognizer returns an idle recognizer. A non-positive threshold selects
// DefaultThreshold.
func NewRecognizer(threshold float64) *Recognizer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Recognizer{threshold: threshold}
}

// Start begins tracking at (x, y). Starting again while tracking replaces the
// start point.
func (r *Recognizer) Start(x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Tracking
	r.startX, r.startY = x, y
}

// Move has no effect on navigation.
func (r *Recognizer) Move(x, y float64) {}

// End finishes the gesture at (x, y) and returns the command it produced, if
// any. A vertical swipe longer than the threshold that dominates horizontal
// travel yields Next when moving up and Previous when moving down.
func (r *Recognizer) End(x, y float64) (Command, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Tracking {
		return 0, false
	}
	r.state = Idle

	dx := r.startX - x
	dy := r.startY - y
	if math.Abs(dy) <= r.threshold || math.Abs(dy) <= math.Abs(dx) {
		return 0, false
	}
	if dy > 0 {
		return Next, true
	}
	return Previous, true
}

// Cancel abandons the gesture in progress.
func (r *Recognizer) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Idle
}

// State returns the current state.
func (r *Recognizer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}
