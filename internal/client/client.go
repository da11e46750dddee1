// Package client wires every other package into the single relay
// session described by the design: UDP transport, authoritative
// timing playback, adaptive decoding, sender classification, the
// neighbour-wire activity probe, sidetone audio, local keying, and
// the UI notification bus.
package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/n0call/cwrelay/internal/activity"
	"github.com/n0call/cwrelay/internal/audio"
	"github.com/n0call/cwrelay/internal/classifier"
	"github.com/n0call/cwrelay/internal/cwplayer"
	"github.com/n0call/cwrelay/internal/decode"
	"github.com/n0call/cwrelay/internal/relay"
	"github.com/n0call/cwrelay/internal/tx"
	"github.com/n0call/cwrelay/internal/uibus"
	"github.com/n0call/cwrelay/internal/wire"
)

var (
	ErrInvalidCenterWire = errors.New("client: center wire must be > 0")
	ErrInvalidSpan       = errors.New("client: span must be >= 0")
	ErrAlreadyRunning    = errors.New("client: already running")
	ErrNotRunning        = errors.New("client: not running")
)

const (
	waterfallTick  = 33 * time.Millisecond
	waterfallWidth = 480
	titleTick      = 500 * time.Millisecond
	idleTick       = 20 * time.Millisecond
)

// Config describes one end-to-end relay session: transport, audio,
// and identity. It is the union of every downstream package's
// configuration surface.
type Config struct {
	Host     string
	Center   int
	Span     int
	Callsign string
	Version  string

	ToneHz      float64
	Volume      int
	DeviceIndex int
}

// Client is the [C11] orchestrator: it owns one relay.Client, one
// cwplayer.Player, and the full decode/classify/display pipeline
// fed by their callbacks.
type Client struct {
	cfg Config

	relay      *relay.Client
	player     *cwplayer.Player
	decoder    *decode.Decoder
	adaptive   *decode.AdaptiveDecoder
	classifier *classifier.Classifier
	probe      *activity.Probe
	engine     *audio.Engine
	encoder    *tx.Encoder
	spacebar   *tx.SpacebarInput
	bus        *uibus.Bus

	mu            sync.Mutex
	running       bool
	stopIdle      chan struct{}
	stopWaterfall chan struct{}

	pending   pendingMark
	pendingMu sync.Mutex
}

// pendingMark carries a mark's duration and symbol from OnMark/OnElem
// (both fired at mark-end) forward to the following OnSpace, where
// the gap length completes an Element for the adaptive matcher.
type pendingMark struct {
	have   bool
	ms     float64
	isDash bool
}

// New validates cfg and builds the full pipeline. It opens no sockets
// and starts no workers; call Start for that.
func New(cfg Config) (*Client, error) {
	if cfg.Center <= 0 {
		return nil, ErrInvalidCenterWire
	}
	if cfg.Span < 0 {
		return nil, ErrInvalidSpan
	}

	c := &Client{cfg: cfg, bus: uibus.New()}

	c.decoder = decode.New(decode.Callbacks{
		OnElement: c.onDecodeElement,
		OnChar:    c.onDecodeChar,
		OnSpace:   c.onDecodeSpace,
	})
	c.adaptive = decode.NewAdaptiveDecoder(c.decoder)
	c.classifier = classifier.New()
	c.probe = activity.New(cfg.Center)
	c.probe.SetColumns(columnsFor(wire.WiresAround(cfg.Center, cfg.Span)))

	audioCfg := audio.DefaultConfig()
	if cfg.ToneHz > 0 {
		audioCfg.ToneHz = cfg.ToneHz
	}
	if cfg.Volume > 0 {
		audioCfg.Volume = cfg.Volume
	}
	audioCfg.DeviceIndex = cfg.DeviceIndex
	c.engine = audio.New(audioCfg)

	c.encoder = tx.NewEncoder(c.onKeyEdge)
	c.spacebar = tx.NewSpacebarInput(c.encoder.KeyDown, c.encoder.KeyUp)

	c.player = cwplayer.New(cwplayer.Callbacks{
		OnGate:   c.onGate,
		OnElem:   c.onElem,
		OnLevel:  c.onSMeter,
		OnMark:   c.onMark,
		OnSpace:  c.onSpace,
		DotEstMs: c.decoder.Dot,
	})

	rc, err := relay.New(relay.Config{
		Host:     cfg.Host,
		Center:   cfg.Center,
		Span:     cfg.Span,
		Callsign: cfg.Callsign,
		Version:  cfg.Version,
	}, c.player, relay.Callbacks{
		OnGate:     c.onGate,
		OnElem:     c.onElem,
		OnMark:     c.onMark,
		OnSpace:    c.onSpace,
		OnSideKey:  c.onSideKey,
		OnEnvelope: c.onEnvelope,
	})
	if err != nil {
		return nil, err
	}
	c.relay = rc

	return c, nil
}

// SetNotifier attaches a UI Notifier to receive live display updates.
// Passing nil detaches it and reverts to a no-op sink.
func (c *Client) SetNotifier(n uibus.Notifier) {
	c.bus.SetNotifier(n)
}

// Start opens the relay transport, initializes and starts the audio
// engine, and launches the player loop plus the waterfall/idle ticker
// goroutines.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.stopIdle = make(chan struct{})
	c.stopWaterfall = make(chan struct{})
	c.mu.Unlock()

	if err := c.engine.Init(); err != nil {
		return fmt.Errorf("client: init audio: %w", err)
	}
	if err := c.engine.Start(ctx); err != nil {
		return fmt.Errorf("client: start audio: %w", err)
	}

	go c.player.Run()

	if err := c.relay.Start(); err != nil {
		_ = c.engine.Stop()
		return fmt.Errorf("client: start relay: %w", err)
	}

	go c.idleLoop()
	go c.waterfallLoop()

	c.bus.SetTitle(fmt.Sprintf("wire %d", c.cfg.Center))
	return nil
}

// Retune implements the center-wire change contract: update the relay
// scan window, clear in-flight playback, and refresh the activity
// probe's center and column map.
func (c *Client) Retune(newCenter int) error {
	if newCenter <= 0 {
		return ErrInvalidCenterWire
	}
	if err := c.relay.Retune(newCenter); err != nil {
		return err
	}
	c.cfg.Center = newCenter
	c.probe.SetCenter(newCenter)
	c.probe.SetColumns(columnsFor(wire.WiresAround(newCenter, c.cfg.Span)))
	c.adaptive.Reset()
	c.engine.HardMuteUntil(50 * time.Millisecond)
	c.bus.SetTitle(fmt.Sprintf("wire %d", newCenter))
	return nil
}

// Stop tears the whole pipeline down: it stops the ticker goroutines,
// then the relay sockets, player loop, and audio device, in that order.
func (c *Client) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.running = false
	close(c.stopIdle)
	close(c.stopWaterfall)
	c.mu.Unlock()

	c.relay.Stop()
	c.player.Stop()
	if err := c.engine.Stop(); err != nil {
		return err
	}
	return c.engine.Close()
}

// KeyDown/KeyUp expose local manual keying (e.g. a spacebar or paddle
// input binding) for a future transmit path; SendText remains
// unimplemented pending a wire-level DATA-record keyer.
func (c *Client) KeyDown() { c.encoder.KeyDown() }
func (c *Client) KeyUp()   { c.encoder.KeyUp() }

func (c *Client) idleLoop() {
	t := time.NewTicker(idleTick)
	defer t.Stop()
	for {
		select {
		case <-c.stopIdle:
			return
		case now := <-t.C:
			c.decoder.IdleTick(now)
		}
	}
}

func (c *Client) waterfallLoop() {
	wfT := time.NewTicker(waterfallTick)
	titleT := time.NewTicker(titleTick)
	defer wfT.Stop()
	defer titleT.Stop()
	for {
		select {
		case <-c.stopWaterfall:
			return
		case <-wfT.C:
			c.bus.SetWaterfallLine(c.probe.NextLine(waterfallWidth))
		case <-titleT.C:
			mode, wpm := c.classifier.Get()
			c.bus.SetTitle(fmt.Sprintf("wire %d  %s  %.0f WPM", c.cfg.Center, mode, wpm))
		}
	}
}

// onGate fires on every gate-on/gate-off transition from either the
// extracted-timing path (via the player) or the fallback per-arrival
// path (via relay directly); both land here identically. It also
// feeds the decoder's edge-based estimator directly, so the fallback
// path (which never calls onMark/onSpace) still produces decoded
// text, and paints the waterfall's center column from the raw gate
// state.
func (c *Client) onGate(on bool) {
	c.engine.RXKey(on)
	c.decoder.KeyEdge(on, time.Now())
	c.probe.UpdateCenterGate(on)
}

func (c *Client) onSMeter(level, over float32) {
	c.bus.SetSMeter(level, over)
}

func (c *Client) onElem(sym string) {
	c.pendingMu.Lock()
	c.pending = pendingMark{have: true, isDash: sym == "-"}
	c.pendingMu.Unlock()
	c.bus.SetMarkerFraction(markerFraction(sym))
}

func (c *Client) onMark(ms float64) {
	c.decoder.HintMark(ms)
	c.classifier.UpdateMarkMs(ms)
	c.engine.SetDotSeconds(c.decoder.Dot())

	c.pendingMu.Lock()
	c.pending.ms = ms
	c.pendingMu.Unlock()
}

func (c *Client) onSpace(ms float64) {
	c.decoder.HintSpace(ms)
	c.classifier.UpdateSpaceMs(ms)

	muteS := math.Min(0.5, 0.9*ms/1000)
	c.engine.HardMuteUntil(time.Duration(muteS * float64(time.Second)))

	dot := c.decoder.Dot()
	isCharEnd := ms >= c.decoder.CharGapRatio()*dot*1000
	isWordEnd := ms >= 6.5*dot*1000

	c.pendingMu.Lock()
	pending := c.pending
	c.pending = pendingMark{}
	c.pendingMu.Unlock()

	if !pending.have {
		return
	}
	c.adaptive.RecordElement(decode.Element{
		IsDash:    pending.isDash,
		Duration:  time.Duration(pending.ms * float64(time.Millisecond)),
		GapAfter:  time.Duration(ms * float64(time.Millisecond)),
		IsCharEnd: isCharEnd,
		IsWordEnd: isWordEnd,
	})
}

func (c *Client) onDecodeElement(sym string) {
	// Already surfaced via the mark/element callbacks above; the
	// decoder's own element stream is only needed internally.
	_ = sym
}

func (c *Client) onDecodeChar(ch rune) {
	c.bus.AppendText(string(ch))
}

func (c *Client) onDecodeSpace() {
	c.bus.AppendText(" ")
}

func (c *Client) onSideKey(w int, on bool) {
	v := on
	c.probe.UpdateEnv(w, boolEnv(on), &v)
	c.bus.SetChannelDisplay(w, fmt.Sprintf("%d", w))
}

func (c *Client) onEnvelope(w int, env float64) {
	c.probe.UpdateEnv(w, env, nil)
}

// onKeyEdge drives the local sidetone and, like onGate, also feeds
// the decoder directly: a local keystroke is itself a CW element and
// the decoder treats it the same as a received edge.
func (c *Client) onKeyEdge(isDown bool, t time.Time) {
	c.engine.TXKey(isDown)
	c.decoder.KeyEdge(isDown, t)
}

// PressKey and ReleaseKey bind a local key input (spacebar, paddle)
// to the sidetone TX envelope, debounced per tx.SpacebarInput.
func (c *Client) PressKey()   { c.spacebar.Press() }
func (c *Client) ReleaseKey() { c.spacebar.Release() }

func columnsFor(wires []int) map[int]int {
	cols := make(map[int]int, len(wires))
	if len(wires) == 0 {
		return cols
	}
	step := waterfallWidth / len(wires)
	if step < 1 {
		step = 1
	}
	for i, w := range wires {
		cols[w] = i * step
	}
	return cols
}

func markerFraction(sym string) float32 {
	if sym == "-" {
		return 1.0
	}
	return 0.3
}

func boolEnv(on bool) float64 {
	if on {
		return 1.0
	}
	return 0.0
}
