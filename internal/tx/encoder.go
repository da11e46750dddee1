// Package tx implements the local transmit-side input path: a key
// encoder that turns key-down/key-up calls into timestamped events,
// and a toolkit-agnostic spacebar debounce filter that a host UI can
// drive.
package tx

import (
	"errors"
	"sync"
	"time"
)

// ErrNotImplemented is returned by Encoder.SendText: auto-keyed text
// transmission is not implemented, as in the original reference
// client's TODO.
var ErrNotImplemented = errors.New("tx: SendText is not implemented")

// EventFunc is called on every key transition with the edge direction
// and its timestamp.
type EventFunc func(isDown bool, t time.Time)

// Encoder converts local key-down/key-up calls into edge events,
// suppressing repeated calls in the same direction.
type Encoder struct {
	mu     sync.Mutex
	onEdge EventFunc
	keyOn  bool
}

// NewEncoder creates an Encoder that reports edges to onEdge.
func NewEncoder(onEdge EventFunc) *Encoder {
	return &Encoder{onEdge: onEdge}
}

// KeyDown reports a key-down edge, a no-op if already down.
func (e *Encoder) KeyDown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.keyOn {
		return
	}
	e.keyOn = true
	e.emit(true, time.Now())
}

// KeyUp reports a key-up edge, a no-op if already up.
func (e *Encoder) KeyUp() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.keyOn {
		return
	}
	e.keyOn = false
	e.emit(false, time.Now())
}

func (e *Encoder) emit(isDown bool, t time.Time) {
	if e.onEdge != nil {
		e.onEdge(isDown, t)
	}
}

// SendText is a stated placeholder for an auto-keyer: converting
// arbitrary text into a key-down/key-up sequence at a target WPM.
// Not implemented.
func (e *Encoder) SendText(text string) error {
	return ErrNotImplemented
}
