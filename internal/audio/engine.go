// internal/audio/engine.go
// Package audio drives the sidetone speaker output: a phase-accumulator
// sine oscillator mixed through two independent one-pole envelope
// followers (one for locally keyed TX, one for the decoded RX gate),
// soft-clipped and written to a malgo playback device.
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

var (
	ErrNotInitialized = errors.New("audio: engine not initialized")
	ErrAlreadyRunning = errors.New("audio: engine already running")
	ErrNotRunning     = errors.New("audio: engine not running")
)

const (
	minToneHz = 200.0
	maxToneHz = 1400.0

	attackSeconds  = 0.003
	minReleaseS    = 0.004
	maxReleaseS    = 0.016
	minDotSForEnv  = 0.020
	maxDotSForEnv  = 0.220
	releaseDotGain = 0.40

	txEnvMix = 0.90

	twoPi = 2.0 * math.Pi
)

// Config holds sidetone engine configuration.
type Config struct {
	DeviceIndex int    // -1 for default device
	SampleRate  uint32 // e.g., 48000
	Channels    uint32 // 1 for mono
	BufferSize  uint32 // frames per callback
	ToneHz      float64
	Volume      int // 0..100
}

// DefaultConfig returns sensible defaults for a CW sidetone.
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  48000,
		Channels:    1,
		BufferSize:  256,
		ToneHz:      600,
		Volume:      50,
	}
}

// Engine is the sidetone playback engine described by §4.8.
type Engine struct {
	config Config
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu      sync.RWMutex
	running bool

	sampleRate float64
	phase      float64
	rxEnv      float64
	txEnv      float64

	rxTarget      atomic.Value // float64
	txTarget      atomic.Value // float64
	vol           atomic.Value // float64
	toneHz        atomic.Value // float64
	attackK       atomic.Value // float64
	releaseK      atomic.Value // float64
	hardMuteUntil atomic.Value // time.Time
}

// New creates an Engine with cfg.
func New(cfg Config) *Engine {
	e := &Engine{config: cfg, sampleRate: float64(cfg.SampleRate)}
	e.rxTarget.Store(0.0)
	e.txTarget.Store(0.0)
	e.vol.Store(mapVolume(cfg.Volume))
	e.toneHz.Store(clampFloat(cfg.ToneHz, minToneHz, maxToneHz))
	e.attackK.Store(coef(attackSeconds, e.sampleRate))
	defaultRelease := clampFloat(releaseDotGain*0.060, minReleaseS, maxReleaseS)
	e.releaseK.Store(coef(defaultRelease, e.sampleRate))
	e.hardMuteUntil.Store(time.Time{})
	return e
}

// Init initializes the malgo audio context.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("audio: init context: %w", err)
	}
	e.ctx = ctx
	return nil
}

// ListDevices returns available playback devices.
func (e *Engine) ListDevices() ([]malgo.DeviceInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.ctx == nil {
		return nil, ErrNotInitialized
	}
	infos, err := e.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("audio: enumerate devices: %w", err)
	}
	return infos, nil
}

// Start begins sidetone playback.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	if e.ctx == nil {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	e.mu.Unlock()

	deviceConfig := malgo.DeviceConfig{
		DeviceType:         malgo.Playback,
		SampleRate:         e.config.SampleRate,
		PeriodSizeInFrames: e.config.BufferSize,
		Playback: malgo.SubConfig{
			Format:   malgo.FormatF32,
			Channels: e.config.Channels,
		},
	}

	var deviceID *malgo.DeviceID
	if e.config.DeviceIndex >= 0 {
		devices, err := e.ListDevices()
		if err != nil {
			return err
		}
		if e.config.DeviceIndex >= len(devices) {
			return fmt.Errorf("audio: device index %d out of range (have %d devices)",
				e.config.DeviceIndex, len(devices))
		}
		deviceID = &devices[e.config.DeviceIndex].ID
		deviceConfig.Playback.DeviceID = deviceID.Pointer()
	}

	onSendFrames := func(outputSamples, _ []byte, frameCount uint32) {
		e.renderInto(outputSamples, frameCount)
	}
	deviceCallbacks := malgo.DeviceCallbacks{Data: onSendFrames}

	device, err := malgo.InitDevice(e.ctx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("audio: init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("audio: start device: %w", err)
	}

	e.mu.Lock()
	e.device = device
	e.running = true
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = e.Stop()
	}()

	return nil
}

// Stop halts playback.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return ErrNotRunning
	}
	if e.device != nil {
		_ = e.device.Stop()
		e.device.Uninit()
		e.device = nil
	}
	e.running = false
	return nil
}

// Close releases all audio resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running && e.device != nil {
		_ = e.device.Stop()
		e.device.Uninit()
		e.device = nil
		e.running = false
	}
	if e.ctx != nil {
		if err := e.ctx.Uninit(); err != nil {
			return fmt.Errorf("audio: uninit context: %w", err)
		}
		e.ctx.Free()
		e.ctx = nil
	}
	return nil
}

// IsRunning reports whether playback is active.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// SetVolume maps a 0..100 knob to the 0.001..0.501 gain range.
func (e *Engine) SetVolume(v int) {
	e.vol.Store(mapVolume(v))
}

// SetToneHz sets the oscillator frequency, clamped to [200, 1400] Hz.
func (e *Engine) SetToneHz(hz float64) {
	e.toneHz.Store(clampFloat(hz, minToneHz, maxToneHz))
}

// SetDotSeconds derives the release time constant from the current
// dot-length estimate: clamp(0.40*dot, 4ms, 16ms), with dot itself
// first clamped to [20ms, 220ms], so the shortest release is 8ms.
// Attack stays fixed at 3ms.
func (e *Engine) SetDotSeconds(dotS float64) {
	dotS = clampFloat(dotS, minDotSForEnv, maxDotSForEnv)
	release := clampFloat(releaseDotGain*dotS, minReleaseS, maxReleaseS)
	e.attackK.Store(coef(attackSeconds, e.sampleRate))
	e.releaseK.Store(coef(release, e.sampleRate))
}

// RXKey sets the decoded-gate envelope target.
func (e *Engine) RXKey(on bool) {
	e.rxTarget.Store(boolToFloat(on))
}

// TXKey sets the locally-keyed envelope target.
func (e *Engine) TXKey(on bool) {
	e.txTarget.Store(boolToFloat(on))
}

// HardMuteUntil silences output unconditionally until d has elapsed,
// honored starting with the next callback tick. The client calls it on
// every received space and on retune.
func (e *Engine) HardMuteUntil(d time.Duration) {
	e.hardMuteUntil.Store(time.Now().Add(d))
}

func (e *Engine) renderInto(out []byte, frameCount uint32) {
	attack := e.attackK.Load().(float64)
	release := e.releaseK.Load().(float64)
	rxTgt := e.rxTarget.Load().(float64)
	txTgt := e.txTarget.Load().(float64)
	vol := e.vol.Load().(float64)
	toneHz := e.toneHz.Load().(float64)
	muted := time.Now().Before(e.hardMuteUntil.Load().(time.Time))

	phaseStep := twoPi * toneHz / e.sampleRate
	rxEnv, txEnv, phase := e.rxEnv, e.txEnv, e.phase

	for i := uint32(0); i < frameCount; i++ {
		if rxTgt > rxEnv {
			rxEnv += (rxTgt - rxEnv) * attack
		} else {
			rxEnv += (rxTgt - rxEnv) * release
		}
		if txTgt > txEnv {
			txEnv += (txTgt - txEnv) * attack
		} else {
			txEnv += (txTgt - txEnv) * release
		}

		wave := math.Sin(phase)
		phase += phaseStep
		if phase >= twoPi {
			phase -= twoPi
		}

		env := rxEnv + txEnvMix*txEnv
		sig := vol * env * wave
		if muted {
			sig = 0
		}
		sample := float32(math.Tanh(sig))
		putFloat32(out, int(i), sample)
	}

	e.rxEnv, e.txEnv, e.phase = rxEnv, txEnv, phase
}

func putFloat32(buf []byte, i int, v float32) {
	bits := math.Float32bits(v)
	off := i * 4
	buf[off] = byte(bits)
	buf[off+1] = byte(bits >> 8)
	buf[off+2] = byte(bits >> 16)
	buf[off+3] = byte(bits >> 24)
}

func mapVolume(v int) float64 {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return 0.001 + 0.50*(float64(v)/100.0)
}

func coef(tauS, sampleRate float64) float64 {
	if tauS < 1e-4 {
		tauS = 1e-4
	}
	return 1.0 - math.Exp(-1.0/(tauS*sampleRate))
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
