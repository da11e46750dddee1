// internal/audio/capture.go
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

var (
	ErrCaptureNotInitialized = errors.New("audio: capture not initialized")
	ErrCaptureAlreadyRunning = errors.New("audio: capture already running")
	ErrCaptureNotRunning     = errors.New("audio: capture not running")
)

// CaptureConfig holds loopback capture configuration, used only by the
// calibrate self-test to listen for the tone Engine just played.
type CaptureConfig struct {
	DeviceIndex int    // -1 for default device
	SampleRate  uint32 // e.g., 48000
	Channels    uint32 // 1 for mono, 2 for stereo
	BufferSize  uint32 // frames per callback
}

// DefaultCaptureConfig returns sensible defaults for a loopback self-test.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		DeviceIndex: -1,
		SampleRate:  48000,
		Channels:    1,
		BufferSize:  512,
	}
}

// SampleCallback is called directly from the audio thread with new
// captured samples. Must be non-blocking and fast.
type SampleCallback func(samples []float32)

// Capture reads back whatever the configured input device hears,
// exercising malgo's capture side the way the Engine exercises its
// playback side. calibrate feeds its output into a Detector to verify
// the sidetone actually reaches a loopback or monitoring device.
type Capture struct {
	config   CaptureConfig
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	running  bool
	mu       sync.RWMutex
	callback SampleCallback

	// Samples carries captured blocks to a consumer that can't use the
	// SampleCallback hot path directly (e.g. calibrate's main goroutine).
	Samples chan []float32
}

// NewCapture creates a Capture instance with cfg.
func NewCapture(cfg CaptureConfig) *Capture {
	return &Capture{
		config:  cfg,
		Samples: make(chan []float32, 64),
	}
}

// SetCallback sets a callback for real-time sample processing. Set
// before calling Start.
func (c *Capture) SetCallback(cb SampleCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = cb
}

// Init initializes the malgo context.
func (c *Capture) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("audio: init capture context: %w", err)
	}
	c.ctx = ctx
	return nil
}

// ListDevices returns available capture devices.
func (c *Capture) ListDevices() ([]malgo.DeviceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.ctx == nil {
		return nil, ErrCaptureNotInitialized
	}
	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("audio: enumerate capture devices: %w", err)
	}
	return infos, nil
}

// Start begins capturing audio.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrCaptureAlreadyRunning
	}
	if c.ctx == nil {
		c.mu.Unlock()
		return ErrCaptureNotInitialized
	}
	c.mu.Unlock()

	deviceConfig := malgo.DeviceConfig{
		DeviceType:         malgo.Capture,
		SampleRate:         c.config.SampleRate,
		PeriodSizeInFrames: c.config.BufferSize,
		Capture: malgo.SubConfig{
			Format:   malgo.FormatF32,
			Channels: c.config.Channels,
		},
	}

	var deviceID *malgo.DeviceID
	if c.config.DeviceIndex >= 0 {
		devices, err := c.ListDevices()
		if err != nil {
			return err
		}
		if c.config.DeviceIndex >= len(devices) {
			return fmt.Errorf("audio: capture device index %d out of range (have %d devices)",
				c.config.DeviceIndex, len(devices))
		}
		deviceID = &devices[c.config.DeviceIndex].ID
		deviceConfig.Capture.DeviceID = deviceID.Pointer()
	}

	onRecvFrames := func(_, inputSamples []byte, frameCount uint32) {
		if len(inputSamples) == 0 {
			return
		}
		samples := bytesToFloat32(inputSamples)

		c.mu.RLock()
		cb := c.callback
		c.mu.RUnlock()
		if cb != nil {
			cb(samples)
		}

		select {
		case c.Samples <- samples:
		default:
			// Consumer too slow; drop this block rather than block the audio thread.
		}
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		return fmt.Errorf("audio: init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("audio: start capture device: %w", err)
	}

	c.mu.Lock()
	c.device = device
	c.running = true
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = c.Stop()
	}()

	return nil
}

// Stop halts capture.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return ErrCaptureNotRunning
	}
	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
	c.running = false
	return nil
}

// Close releases all capture resources.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running && c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
		c.running = false
	}
	if c.ctx != nil {
		if err := c.ctx.Uninit(); err != nil {
			return fmt.Errorf("audio: uninit capture context: %w", err)
		}
		c.ctx.Free()
		c.ctx = nil
	}
	close(c.Samples)
	return nil
}

// IsRunning reports whether capture is active.
func (c *Capture) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func bytesToFloat32(data []byte) []float32 {
	n := len(data) / 4
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		off := i * 4
		bits := uint32(data[off]) |
			uint32(data[off+1])<<8 |
			uint32(data[off+2])<<16 |
			uint32(data[off+3])<<24
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}
