// Package uibus defines the boundary between the relay core and a
// host UI: a small interface of display update methods, and a Bus
// that lets any goroutine call them safely without a GUI event loop.
package uibus

import "sync/atomic"

// Notifier is implemented by a host UI to receive live updates. Every
// method may be called from any goroutine; implementations must not
// block for long, since the caller is a worker in the hot path.
type Notifier interface {
	AppendText(s string)
	SetTitle(s string)
	SetSMeter(level, over float32)
	SetWaterfallLine(line []float32)
	SetChannelDisplay(wire int, label string)
	SetMarkerFraction(f float32)
}

// noopNotifier discards every call; it is the default Bus target
// before a real Notifier is attached.
type noopNotifier struct{}

func (noopNotifier) AppendText(string)                 {}
func (noopNotifier) SetTitle(string)                   {}
func (noopNotifier) SetSMeter(float32, float32)        {}
func (noopNotifier) SetWaterfallLine([]float32)        {}
func (noopNotifier) SetChannelDisplay(int, string)      {}
func (noopNotifier) SetMarkerFraction(float32)         {}

// Bus forwards Notifier calls from any goroutine to whichever
// Notifier is currently attached. There is no GUI thread in this
// core, so "marshal to the UI thread" degenerates to "safe to call
// from any goroutine" — the same guarantee, without an event loop.
type Bus struct {
	target atomic.Pointer[Notifier]
}

// New creates a Bus with a no-op Notifier attached.
func New() *Bus {
	b := &Bus{}
	var n Notifier = noopNotifier{}
	b.target.Store(&n)
	return b
}

// SetNotifier attaches n as the active target. Passing nil reverts to
// the no-op Notifier.
func (b *Bus) SetNotifier(n Notifier) {
	if n == nil {
		n = noopNotifier{}
	}
	b.target.Store(&n)
}

func (b *Bus) notifier() Notifier {
	return *b.target.Load()
}

func (b *Bus) AppendText(s string)                  { b.notifier().AppendText(s) }
func (b *Bus) SetTitle(s string)                     { b.notifier().SetTitle(s) }
func (b *Bus) SetSMeter(level, over float32)         { b.notifier().SetSMeter(level, over) }
func (b *Bus) SetWaterfallLine(line []float32)       { b.notifier().SetWaterfallLine(line) }
func (b *Bus) SetChannelDisplay(wire int, label string) { b.notifier().SetChannelDisplay(wire, label) }
func (b *Bus) SetMarkerFraction(f float32)           { b.notifier().SetMarkerFraction(f) }
