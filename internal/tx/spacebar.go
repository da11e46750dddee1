package tx

import (
	"sync"
	"time"
)

// defaultDebounce matches the reference client's 2ms spacebar
// debounce window.
const defaultDebounce = 2 * time.Millisecond

// SpacebarInput is a toolkit-agnostic debounce state machine for a
// press/release input bound to CW keying. A host UI is responsible
// for calling Press/Release from its own key event handling; this
// type supplies only the debounce contract, not a binding to any
// concrete windowing toolkit.
type SpacebarInput struct {
	onDown func()
	onUp   func()
	debounce time.Duration

	mu       sync.Mutex
	last     time.Time
	pressed  bool
}

// NewSpacebarInput creates a SpacebarInput with the reference 2ms
// debounce window.
func NewSpacebarInput(onDown, onUp func()) *SpacebarInput {
	return &SpacebarInput{onDown: onDown, onUp: onUp, debounce: defaultDebounce}
}

// Press reports a key-press event. Presses arriving within the
// debounce window of the last accepted transition, or while already
// pressed, are ignored.
func (s *SpacebarInput) Press() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Sub(s.last) < s.debounce || s.pressed {
		return
	}
	s.pressed = true
	s.last = now
	if s.onDown != nil {
		s.onDown()
	}
}

// Release reports a key-release event, with the same debounce and
// already-released suppression as Press.
func (s *SpacebarInput) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Sub(s.last) < s.debounce || !s.pressed {
		return
	}
	s.pressed = false
	s.last = now
	if s.onUp != nil {
		s.onUp()
	}
}
