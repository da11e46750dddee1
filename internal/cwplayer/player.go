// Package cwplayer implements the authoritative gate-timing path: it
// consumes mark/space duration sequences extracted from the wire and
// turns them into gate-on/gate-off transitions, element symbols, and a
// steady stream of level samples for the S-meter.
package cwplayer

import (
	"sync"
	"time"
)

// GateFunc is called on gate-on (true) and gate-off (false) transitions.
type GateFunc func(on bool)

// ElementFunc is called with "." or "-" at mark-end.
type ElementFunc func(sym string)

// LevelFunc is called at roughly 60Hz with the instantaneous gate level
// (1.0 while a mark is sounding, 0.0 otherwise) and a headroom value
// reserved for future S-meter overload reporting.
type LevelFunc func(level, over float32)

// MarkFunc and SpaceFunc report the millisecond duration of a completed
// mark or space, used as adaptive-timing hints downstream.
type MarkFunc func(ms float64)
type SpaceFunc func(ms float64)

// DotEstimateFunc returns the current dot-length estimate in seconds,
// used only to classify a mark as "." or "-" at mark-end.
type DotEstimateFunc func() float64

const (
	levelEmitInterval = 16 * time.Millisecond
	idleEmitInterval  = 16 * time.Millisecond
	idleSleepSlice    = 2 * time.Millisecond
	sleepChunk        = 4 * time.Millisecond
	sleepTailBudget   = 6 * time.Millisecond
	defaultDashRatio  = 2.5
)

// Callbacks groups every notification a Player emits.
type Callbacks struct {
	OnGate   GateFunc
	OnElem   ElementFunc
	OnLevel  LevelFunc
	OnMark   MarkFunc
	OnSpace  SpaceFunc
	DotEstMs DotEstimateFunc
}

// Player is the single dedicated worker described by §4.3: it drains a
// FIFO of timing sequences in order, never starting sequence N+1 until
// every element of sequence N has completed.
type Player struct {
	cb Callbacks

	mu      sync.Mutex
	queue   [][]int
	stopped bool

	gateOn bool
	done   chan struct{}
}

// New creates a Player with the given callbacks. A nil DotEstMs defaults
// to a fixed 60ms (20 WPM) estimate.
func New(cb Callbacks) *Player {
	if cb.DotEstMs == nil {
		cb.DotEstMs = func() float64 { return 0.060 }
	}
	return &Player{cb: cb, done: make(chan struct{})}
}

// Enqueue appends a timing sequence to the FIFO. Safe to call from any
// goroutine. The queue is bounded only by memory.
func (p *Player) Enqueue(seq []int) {
	if len(seq) == 0 {
		return
	}
	cp := make([]int, len(seq))
	copy(cp, seq)
	p.mu.Lock()
	p.queue = append(p.queue, cp)
	p.mu.Unlock()
}

// Clear drops every pending sequence without playing it.
func (p *Player) Clear() {
	p.mu.Lock()
	p.queue = nil
	p.mu.Unlock()
}

// Run drives the player loop until Stop is called. It should be run in
// its own goroutine; once it observes Stop it emits a final gate-off if
// needed and returns, leaving any still-queued sequences unplayed.
func (p *Player) Run() {
	idleEmit := time.Now()
	for {
		seq, ok := p.dequeue()
		if !ok {
			if p.isStopped() {
				p.finalGateOff()
				close(p.done)
				return
			}
			now := time.Now()
			if now.Sub(idleEmit) >= idleEmitInterval {
				p.emitLevel(0.0, 0.0)
				idleEmit = now
			}
			time.Sleep(idleSleepSlice)
			continue
		}

		for _, v := range seq {
			if p.isStopped() {
				p.finalGateOff()
				close(p.done)
				return
			}
			if v == 0 {
				continue
			}
			if v > 0 {
				p.playMark(v)
			} else {
				p.playSpace(-v)
			}
		}
	}
}

// Stop requests the worker to drain no further sequences and, if the
// gate is currently on, emit a final gate-off. It blocks until Run has
// observed the request and exited.
func (p *Player) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	<-p.done
}

func (p *Player) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func (p *Player) dequeue() ([]int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil, false
	}
	seq := p.queue[0]
	p.queue = p.queue[1:]
	return seq, true
}

func (p *Player) playMark(durMs int) {
	if !p.gateOn {
		p.gateOn = true
		p.emitGate(true)
	}
	p.emitMark(float64(durMs))
	p.sleepEmittingLevel(time.Duration(durMs)*time.Millisecond, 1.0)

	dot := p.cb.DotEstMs()
	sym := "."
	if float64(durMs)/1000.0 >= defaultDashRatio*dot {
		sym = "-"
	}
	p.emitElem(sym)
}

func (p *Player) playSpace(durMs int) {
	if p.gateOn {
		p.gateOn = false
		p.emitGate(false)
	}
	p.emitSpace(float64(durMs))
	p.sleepEmittingLevel(time.Duration(durMs)*time.Millisecond, 0.0)
}

// sleepEmittingLevel sleeps for d, emitting a level sample every 16ms so
// downstream consumers see smooth movement during long marks. It
// deliberately undershoots the final sleep by up to sleepTailBudget and
// busy-waits the remainder to keep transition jitter bounded.
func (p *Player) sleepEmittingLevel(d time.Duration, level float32) {
	deadline := time.Now().Add(d)
	nextEmit := time.Now()

	for {
		now := time.Now()
		if now.After(deadline) || now.Equal(deadline) {
			break
		}
		if !now.Before(nextEmit) {
			p.emitLevel(level, 0.0)
			nextEmit = now.Add(levelEmitInterval)
		}

		remain := deadline.Sub(now)
		if remain <= sleepTailBudget {
			break
		}
		sleepFor := sleepChunk
		if remain-sleepTailBudget < sleepFor {
			sleepFor = remain - sleepTailBudget
		}
		time.Sleep(sleepFor)
	}

	for time.Now().Before(deadline) {
		// busy-wait the tail to keep transition jitter bounded.
	}
}

func (p *Player) finalGateOff() {
	if p.gateOn {
		p.gateOn = false
		p.emitGate(false)
	}
}

func (p *Player) emitGate(on bool) {
	if p.cb.OnGate != nil {
		p.cb.OnGate(on)
	}
}

func (p *Player) emitElem(sym string) {
	if p.cb.OnElem != nil {
		p.cb.OnElem(sym)
	}
}

func (p *Player) emitLevel(level, over float32) {
	if p.cb.OnLevel != nil {
		p.cb.OnLevel(level, over)
	}
}

func (p *Player) emitMark(ms float64) {
	if p.cb.OnMark != nil {
		p.cb.OnMark(ms)
	}
}

func (p *Player) emitSpace(ms float64) {
	if p.cb.OnSpace != nil {
		p.cb.OnSpace(ms)
	}
}
