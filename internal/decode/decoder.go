// Package decode implements the adaptive CW decoder: it turns either
// explicit mark/space duration hints or raw key edges into classified
// Morse elements, assembles them into characters, and tracks a dot
// estimate that adapts to the sender's speed.
package decode

import (
	"sync"
	"time"
)

const (
	minDotS = 0.020
	maxDotS = 0.150

	intraGapRatio       = 1.5
	defaultCharGapRatio = 3.5
	wordGapRatio        = 6.5
	dashRatio           = 2.4

	historyCap = 24
)

// ElementFunc is called with "." or "-" as each mark is classified.
type ElementFunc func(sym string)

// CharFunc is called with a decoded character once a gap flushes the
// element buffer.
type CharFunc func(ch rune)

// SpaceFunc is called when a gap is long enough to be a literal word
// space, in addition to the character flush that precedes it.
type SpaceFunc func()

// Callbacks groups every notification a Decoder emits.
type Callbacks struct {
	OnElement ElementFunc
	OnChar    CharFunc
	OnSpace   SpaceFunc
}

// Decoder is the adaptive CW decoder described by the design: it
// keeps a bounded history of recent dot-length marks, classifies each
// new mark against the running estimate, and flushes the current
// character buffer when a gap crosses the inter-character or
// inter-word threshold.
type Decoder struct {
	cb Callbacks

	mu           sync.Mutex
	dot          float64 // seconds
	charGapRatio float64
	history      []float64
	buf          []byte

	gateOn          bool
	lastEdge        time.Time
	haveLastEdge    bool
	flushedForGap   bool
	lastOffEdge     time.Time
	haveLastOffEdge bool
}

// New creates a Decoder seeded with a 20 WPM dot estimate (60ms).
func New(cb Callbacks) *Decoder {
	return &Decoder{cb: cb, dot: 0.060, charGapRatio: defaultCharGapRatio}
}

// CharGapRatio returns the current inter-character gap multiplier.
func (d *Decoder) CharGapRatio() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.charGapRatio
}

// SetCharGapRatio overrides the inter-character gap multiplier, used
// by AdaptiveDecoder to nudge the boundary toward what recognized
// patterns suggest.
func (d *Decoder) SetCharGapRatio(ratio float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.charGapRatio = ratio
}

// Dot returns the current dot-length estimate in seconds.
func (d *Decoder) Dot() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dot
}

// WPM returns the PARIS-standard words-per-minute estimate implied by
// the current dot length.
func (d *Decoder) WPM() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return 1.2 / d.dot
}

// HintMark feeds an explicit mark duration, bypassing key-edge
// tracking entirely. Used when the timing player (or a remote sender)
// reports mark/space durations directly.
func (d *Decoder) HintMark(ms float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completeMark(ms)
}

// HintSpace feeds an explicit space duration, treated exactly as if a
// gap of that length had elapsed between key edges.
func (d *Decoder) HintSpace(ms float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completeSpace(ms)
}

// KeyEdge reports a hard key transition at time t: isDown=true is a
// key-down (mark start, ending a space); isDown=false is a key-up
// (mark end, ending a mark).
func (d *Decoder) KeyEdge(isDown bool, t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.haveLastEdge {
		d.lastEdge = t
		d.haveLastEdge = true
		d.gateOn = isDown
		if !isDown {
			d.lastOffEdge = t
			d.haveLastOffEdge = true
		}
		return
	}

	durMs := float64(t.Sub(d.lastEdge)) / float64(time.Millisecond)
	d.lastEdge = t

	if isDown {
		// Prior state was a space; it has just ended.
		d.completeSpace(durMs)
	} else {
		// Prior state was a mark; it has just ended.
		d.completeMark(durMs)
		d.lastOffEdge = t
		d.haveLastOffEdge = true
		d.flushedForGap = false
	}
	d.gateOn = isDown
}

// IdleTick reports the passage of time with no key activity. If the
// gate has been off long enough to cross a character or word
// boundary, and no edge has already triggered that flush, it flushes
// here instead.
func (d *Decoder) IdleTick(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.gateOn || !d.haveLastOffEdge || d.flushedForGap {
		return
	}
	elapsedMs := float64(t.Sub(d.lastOffEdge)) / float64(time.Millisecond)
	if elapsedMs >= wordGapRatio*d.dot*1000 {
		d.flushChar()
		d.emitSpace()
		d.flushedForGap = true
	} else if elapsedMs >= d.charGapRatio*d.dot*1000 {
		d.flushChar()
		d.flushedForGap = true
	}
}

func (d *Decoder) completeMark(ms float64) {
	if ms <= 0 {
		return
	}
	oldDot := d.dot
	if ms <= 2*oldDot*1000 {
		d.history = append(d.history, ms/1000.0)
		if len(d.history) > historyCap {
			d.history = d.history[len(d.history)-historyCap:]
		}
		d.dot = clamp(mean(d.history), minDotS, maxDotS)
	}

	sym := "."
	if ms >= dashRatio*d.dot*1000 {
		sym = "-"
	}
	if sym == "." {
		d.buf = append(d.buf, '.')
	} else {
		d.buf = append(d.buf, '-')
	}
	d.emitElement(sym)
}

func (d *Decoder) completeSpace(ms float64) {
	if ms < intraGapRatio*d.dot*1000 {
		return
	}
	d.flushChar()
	if ms >= wordGapRatio*d.dot*1000 {
		d.emitSpace()
	}
}

func (d *Decoder) flushChar() {
	if len(d.buf) == 0 {
		return
	}
	ch := lookup(string(d.buf))
	d.buf = d.buf[:0]
	d.emitChar(ch)
}

func (d *Decoder) emitElement(sym string) {
	if d.cb.OnElement != nil {
		d.cb.OnElement(sym)
	}
}

func (d *Decoder) emitChar(ch rune) {
	if d.cb.OnChar != nil {
		d.cb.OnChar(ch)
	}
}

func (d *Decoder) emitSpace() {
	if d.cb.OnSpace != nil {
		d.cb.OnSpace()
	}
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
