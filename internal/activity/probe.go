// Package activity renders a plausible waterfall line for the
// neighbour wires around the tuned center: a real key-down or a
// genuinely elevated envelope draws a bright pulse, a merely "warm"
// envelope drives a stochastic dot/dash generator so idle channels
// stay visually quiet instead of filling the display with noise.
package activity

import (
	"math/rand"
	"sync"
	"time"
)

const (
	defaultEnvThreshold     = 0.03
	defaultScenicProbActive = 0.42
	keyHoldDuration         = 220 * time.Millisecond
	probeSeed               = 12345

	baseLineLevel   = 0.035
	centerGateDecay = 0.85
)

// Probe tracks per-wire envelope/key state and produces waterfall
// line samples from it.
type Probe struct {
	mu sync.Mutex

	center           int
	envThreshold     float64
	scenic           bool
	scenicMode       string
	scenicProbActive float64

	env          map[int]float64
	key          map[int]bool
	keyHoldUntil map[int]time.Time
	cols         map[int]int

	centerGateOn bool
	centerLevel  float64

	rng    *rand.Rand
	phase  map[int]int
	runLen map[int]int
}

// New creates a Probe centered on the given wire, with scenic
// dot/dash generation enabled by default.
func New(center int) *Probe {
	return &Probe{
		center:           center,
		envThreshold:     defaultEnvThreshold,
		scenic:           true,
		scenicMode:       "active",
		scenicProbActive: defaultScenicProbActive,
		env:              make(map[int]float64),
		key:              make(map[int]bool),
		keyHoldUntil:     make(map[int]time.Time),
		cols:             make(map[int]int),
		rng:              rand.New(rand.NewSource(probeSeed)),
		phase:            make(map[int]int),
		runLen:           make(map[int]int),
	}
}

// SetCenter updates the tuned center wire, whose column NextLine paints
// from the gate level set by UpdateCenterGate instead of its envelope.
func (p *Probe) SetCenter(w int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.center = w
}

// SetColumns maps each wire to the pixel column it occupies on the
// waterfall.
func (p *Probe) SetColumns(colsByWire map[int]int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cols = make(map[int]int, len(colsByWire))
	for w, x := range colsByWire {
		p.cols[w] = x
	}
}

// UpdateEnv records a fresh envelope reading for a side wire.
// keyOn, if non-nil, latches (or clears) the real key state and,
// when true, extends a short "breathing" hold so a real but brief
// pulse remains visible for a moment after the key event itself.
func (p *Probe) UpdateEnv(w int, env float64, keyOn *bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.env[w] = env
	now := time.Now()

	if keyOn != nil {
		if *keyOn {
			p.key[w] = true
			hold := now.Add(keyHoldDuration)
			if hold.After(p.keyHoldUntil[w]) {
				p.keyHoldUntil[w] = hold
			}
		} else {
			p.key[w] = false
		}
	}
}

// UpdateCenterGate records the tuned center wire's raw gate state.
// The center column is painted directly from this state rather than
// through the scenic/pulse machinery used for the neighbour wires.
func (p *Probe) UpdateCenterGate(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.centerGateOn = on
	if on {
		p.centerLevel = 1.0
	}
}

// NextLine renders one waterfall line of the given pixel width.
func (p *Probe) NextLine(width int) []float32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := make([]float32, width)
	for i := range line {
		line[i] = baseLineLevel
	}
	now := time.Now()

	if p.centerGateOn {
		p.centerLevel = 1.0
	} else {
		p.centerLevel *= centerGateDecay
	}
	if x, ok := p.cols[p.center]; ok {
		line[x] = float32(clip01(p.centerLevel))
	}

	for w, x := range p.cols {
		if w == p.center {
			continue
		}

		env := p.env[w]
		keyOn := p.key[w]
		holding := now.Before(p.keyHoldUntil[w])
		alive := keyOn || holding || env >= p.envThreshold
		if !alive {
			continue
		}

		if keyOn || holding {
			p.drawPulse(line, x, width, 0.90)
			continue
		}

		if p.scenic && p.scenicMode == "active" {
			p.advanceActiveGenerator(w)
			if p.phase[w] == 1 {
				e := env
				if e < 0.05 {
					e = 0.05
				}
				v := 0.22 + 0.65*e
				p.drawPulse(line, x, width, v)
			}
		}
	}

	return line
}

func (p *Probe) advanceActiveGenerator(w int) {
	if p.runLen[w] <= 0 {
		if p.phase[w] == 0 {
			if p.rng.Float64() < p.scenicProbActive {
				p.phase[w] = 1
				isDot := p.rng.Float64() < 0.65
				if isDot {
					p.runLen[w] = 1 + p.rng.Intn(2) // [1,2]
				} else {
					p.runLen[w] = 3 + p.rng.Intn(3) // [3,5]
				}
			} else {
				p.runLen[w] = 1 + p.rng.Intn(3) // [1,3]
			}
		} else {
			p.phase[w] = 0
			p.runLen[w] = 1 + p.rng.Intn(3)
		}
	}
	p.runLen[w]--
}

func (p *Probe) drawPulse(line []float32, x, width int, v float64) {
	v = clip01(v)
	halves := []int{1, 2}
	half := halves[p.rng.Intn(2)]

	x1 := x - half
	if x1 < 0 {
		x1 = 0
	}
	x2 := x + half + 1
	if x2 > width {
		x2 = width
	}
	if x2 <= x1 {
		return
	}

	span := x2 - x1
	var prof []float64
	if span == 2*half+1 {
		ramp := linspace(0.6, 1.0, half+1)
		prof = make([]float64, 0, 2*half+1)
		prof = append(prof, ramp[:len(ramp)-1]...)
		for i := len(ramp) - 1; i >= 0; i-- {
			prof = append(prof, ramp[i])
		}
	} else {
		prof = make([]float64, span)
		for i := range prof {
			prof[i] = 1.0
		}
	}

	for i := 0; i < span; i++ {
		sample := float32(v * prof[i])
		if sample > line[x1+i] {
			line[x1+i] = sample
		}
	}
}

func linspace(start, end float64, n int) []float64 {
	if n <= 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (end - start) / float64(n-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
