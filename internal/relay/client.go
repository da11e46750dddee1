// Package relay implements the UDP socket manager for the CWCom/KOB
// relay protocol: one connection per subscribed wire, a primary
// receive worker that either feeds extracted timing sequences to the
// timing player or drives a per-arrival fallback gate, and a
// side-scan worker that maintains neighbour-wire activity state.
package relay

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/n0call/cwrelay/internal/cwplayer"
	"github.com/n0call/cwrelay/internal/wire"
)

var (
	ErrInvalidCenterWire = errors.New("relay: center wire must be > 0")
	ErrInvalidSpan       = errors.New("relay: span must be >= 0")
)

const (
	heartbeatInterval = 25 * time.Second
	readPollTimeout   = 6 * time.Millisecond
	decayInterval     = 16 * time.Millisecond
	sideReadTimeout   = 1 * time.Millisecond
	stopJoinDeadline  = 500 * time.Millisecond
	sideKeyTimeout    = 200 * time.Millisecond
	burstWindow       = 120 * time.Millisecond

	envDecayPrimary = 0.92
	envDecaySide    = 0.90

	minDotEstS = 0.028
	maxDotEstS = 0.320

	minThrOffS = 0.04
	maxThrOffS = 0.25
)

// Enqueuer is satisfied by *cwplayer.Player: it accepts extracted
// timing sequences for authoritative gate playback.
type Enqueuer interface {
	Enqueue(seq []int)
	Clear()
}

// Callbacks groups every notification Client emits. OnGate/OnElem are
// only used by the fallback gate path (§4.4); OnMark and OnSpace are
// accepted but never called by Client. The primary extracted-timing
// path drives gate, element, mark and space notifications indirectly,
// by way of the Enqueuer's own callbacks.
type Callbacks struct {
	OnGate  cwplayer.GateFunc
	OnElem  cwplayer.ElementFunc
	OnMark  cwplayer.MarkFunc
	OnSpace cwplayer.SpaceFunc

	OnSideKey  func(wireNum int, on bool)
	OnEnvelope func(wireNum int, env float64)
}

// Config describes one relay session.
type Config struct {
	Host     string
	Center   int
	Span     int
	Callsign string
	Version  string
}

// Client owns one UDP connection per subscribed wire and runs the
// worker set described by §4.2/§4.4/§4.5.
type Client struct {
	cfg    Config
	cb     Callbacks
	player Enqueuer

	mu         sync.Mutex
	center     int
	span       int
	centerConn *net.UDPConn
	sideConns  map[int]*net.UDPConn
	scanWires  []int

	env      map[int]float64
	keyLatch map[int]bool
	lastDat  map[int]time.Time

	dotEst float64
	cOn    bool
	cLast  time.Time
	cStart time.Time

	stopped  bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New validates cfg and constructs a Client. It does not open any
// sockets; call Start for that.
func New(cfg Config, player Enqueuer, cb Callbacks) (*Client, error) {
	if cfg.Center <= 0 {
		return nil, ErrInvalidCenterWire
	}
	if cfg.Span < 0 {
		return nil, ErrInvalidSpan
	}
	cfg.Host = wire.CleanHost(cfg.Host)

	return &Client{
		cfg:      cfg,
		cb:       cb,
		player:   player,
		center:   cfg.Center,
		span:     cfg.Span,
		sideConns: make(map[int]*net.UDPConn),
		env:       make(map[int]float64),
		keyLatch:  make(map[int]bool),
		lastDat:   make(map[int]time.Time),
		dotEst:    0.060,
	}, nil
}

// Start opens the primary socket, the side-scan sockets (if span > 0)
// and launches the primary, side-scan and heartbeat workers.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.openSocket(c.center)
	if err != nil {
		return fmt.Errorf("relay: open center socket: %w", err)
	}
	c.centerConn = conn

	c.scanWires = wire.WiresAround(c.center, c.span)
	if c.span > 0 {
		for _, w := range c.scanWires {
			if w == c.center {
				continue
			}
			sc, err := c.openSocket(w)
			if err != nil {
				continue
			}
			c.sideConns[w] = sc
			c.env[w] = 0
			c.keyLatch[w] = false
		}
	}

	c.wg.Add(3)
	go c.primaryLoop()
	go c.sideLoop()
	go c.heartbeatLoop()
	return nil
}

func (c *Client) openSocket(w int) (*net.UDPConn, error) {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, wire.Port)
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadBuffer(262144)
	c.sendConnect(conn, w)
	c.sendIdent(conn)
	return conn, nil
}

func (c *Client) sendConnect(conn *net.UDPConn, w int) {
	_, _ = conn.Write(wire.EncodeShort(wire.Connect, uint16(w)))
}

func (c *Client) sendIdent(conn *net.UDPConn) {
	_, _ = conn.Write(wire.EncodeIdentity(wire.Identity{
		Callsign: c.cfg.Callsign,
		Version:  c.cfg.Version,
	}))
}

// Retune implements §4.2/§8 scenario 6: diff the old and new scan
// window, close and reopen only the delta, and reopen the primary
// socket unconditionally.
func (c *Client) Retune(newCenter int) error {
	if newCenter <= 0 {
		return ErrInvalidCenterWire
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if newCenter == c.center {
		return nil
	}

	oldSet := make(map[int]bool, len(c.scanWires))
	for _, w := range c.scanWires {
		oldSet[w] = true
	}

	c.center = newCenter
	newWires := wire.WiresAround(c.center, c.span)
	newSet := make(map[int]bool, len(newWires))
	for _, w := range newWires {
		newSet[w] = true
	}
	c.scanWires = newWires

	for w, conn := range c.sideConns {
		if !newSet[w] {
			_, _ = conn.Write(wire.EncodeShort(wire.Disconnect, 0))
			_ = conn.Close()
			delete(c.sideConns, w)
			delete(c.env, w)
			delete(c.keyLatch, w)
			delete(c.lastDat, w)
		}
	}

	if c.span > 0 {
		for _, w := range newWires {
			if w == c.center || oldSet[w] {
				continue
			}
			sc, err := c.openSocket(w)
			if err != nil {
				continue
			}
			c.sideConns[w] = sc
			c.env[w] = 0
			c.keyLatch[w] = false
		}
	}

	if c.centerConn != nil {
		_, _ = c.centerConn.Write(wire.EncodeShort(wire.Disconnect, 0))
		_ = c.centerConn.Close()
	}
	conn, err := c.openSocket(c.center)
	if err == nil {
		c.centerConn = conn
	}

	c.cOn = false
	c.cLast = time.Time{}
	c.cStart = time.Time{}
	if c.player != nil {
		c.player.Clear()
	}
	c.emitGateLocked(false)
	return nil
}

// Stop sends DISCONNECT on every open socket, signals the workers to
// exit, and joins them with a bounded deadline before closing every
// connection.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		if c.centerConn != nil {
			_, _ = c.centerConn.Write(wire.EncodeShort(wire.Disconnect, 0))
		}
		for _, conn := range c.sideConns {
			_, _ = conn.Write(wire.EncodeShort(wire.Disconnect, 0))
		}
		c.mu.Unlock()

		joined := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(joined)
		}()
		select {
		case <-joined:
		case <-time.After(stopJoinDeadline):
		}

		c.mu.Lock()
		if c.centerConn != nil {
			_ = c.centerConn.Close()
			c.centerConn = nil
		}
		for w, conn := range c.sideConns {
			_ = conn.Close()
			delete(c.sideConns, w)
		}
		c.mu.Unlock()
	})
}

func (c *Client) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Client) primaryLoop() {
	defer c.wg.Done()
	buf := make([]byte, 1024)

	for !c.isStopped() {
		conn := c.getCenterConn()
		if conn == nil {
			time.Sleep(readPollTimeout)
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(readPollTimeout))
		n, err := conn.Read(buf)
		if err != nil {
			continue
		}
		if n < 4 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		if seq, ok := wire.ExtractTimings(data); ok {
			c.updateDotEstFromSeq(seq)
			if c.player != nil {
				c.player.Enqueue(seq)
			}
			continue
		}

		c.fallbackArrival(conn)
	}
}

func (c *Client) getCenterConn() *net.UDPConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.centerConn
}

func (c *Client) updateDotEstFromSeq(seq []int) {
	minMark := 0
	found := false
	for _, v := range seq {
		if v <= 0 {
			continue
		}
		if !found || v < minMark {
			minMark = v
			found = true
		}
	}
	if !found {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	m := float64(minMark) / 1000.0
	c.dotEst = clampFloat(0.85*c.dotEst+0.15*m, minDotEstS, maxDotEstS)
}

// fallbackArrival implements §4.4: when extraction fails, fall back
// to per-arrival gating. The byte that triggered this call has
// already been read; this drains any immediate burst, then waits up
// to thr_off for the gate to go idle before classifying the mark.
func (c *Client) fallbackArrival(conn *net.UDPConn) {
	now := time.Now()

	c.mu.Lock()
	if !c.cOn {
		c.cOn = true
		c.cStart = now
		c.emitGateLocked(true)
	}
	c.cLast = now
	dotEst := c.dotEst
	c.mu.Unlock()

	buf := make([]byte, 1024)
	drained := 0
	for drained < 8 {
		_ = conn.SetReadDeadline(time.Now().Add(time.Microsecond))
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			break
		}
		c.mu.Lock()
		c.cLast = time.Now()
		c.mu.Unlock()
		drained++
	}

	thrOff := clampFloat(1.1*dotEst, minThrOffS, maxThrOffS)
	thrOffDur := time.Duration(thrOff * float64(time.Second))
	deadline := time.Now().Add(thrOffDur)

	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(time.Millisecond))
		n, err := conn.Read(buf)
		if err == nil && n > 0 {
			now := time.Now()
			c.mu.Lock()
			c.cLast = now
			c.mu.Unlock()
			deadline = now.Add(thrOffDur)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cOn && time.Since(c.cLast) >= thrOffDur {
		c.cOn = false
		c.emitGateLocked(false)
		dur := c.cLast.Sub(c.cStart)
		if dur < 0 {
			dur = 0
		}
		durS := float64(dur) / float64(time.Second)
		sym := "."
		if durS >= 2.5*c.dotEst {
			sym = "-"
		}
		c.emitElem(sym)
	}
}

func (c *Client) sideLoop() {
	defer c.wg.Done()
	buf := make([]byte, 600)
	lastDecay := time.Now()

	for !c.isStopped() {
		now := time.Now()
		if now.Sub(lastDecay) >= decayInterval {
			c.decaySides(now)
			lastDecay = now
		}

		conns := c.sideConnsSnapshot()
		if len(conns) == 0 {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		for w, conn := range conns {
			for i := 0; i < 6; i++ {
				_ = conn.SetReadDeadline(time.Now().Add(sideReadTimeout))
				n, err := conn.Read(buf)
				if err != nil || n == 0 {
					break
				}
				c.recordSideArrival(w)
			}
		}
		time.Sleep(time.Millisecond)
	}
}

func (c *Client) sideConnsSnapshot() map[int]*net.UDPConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]*net.UDPConn, len(c.sideConns))
	for w, conn := range c.sideConns {
		out[w] = conn
	}
	return out
}

func (c *Client) decaySides(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for w := range c.env {
		c.env[w] *= envDecaySide
		if c.keyLatch[w] && now.Sub(c.lastDat[w]) > sideKeyTimeout {
			c.keyLatch[w] = false
			if c.cb.OnSideKey != nil {
				c.cb.OnSideKey(w, false)
			}
		}
		if c.cb.OnEnvelope != nil {
			c.cb.OnEnvelope(w, c.env[w])
		}
	}
}

func (c *Client) recordSideArrival(w int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	prev := c.lastDat[w]
	isBurst := !prev.IsZero() && now.Sub(prev) < burstWindow
	if isBurst {
		c.env[w] = clampFloat(0.7*c.env[w]+0.45, 0, 1)
		if !c.keyLatch[w] {
			c.keyLatch[w] = true
			if c.cb.OnSideKey != nil {
				c.cb.OnSideKey(w, true)
			}
		}
	} else {
		c.env[w] = clampFloat(0.9*c.env[w]+0.01, 0, 1)
	}
	c.lastDat[w] = now
}

func (c *Client) heartbeatLoop() {
	defer c.wg.Done()
	t := time.NewTicker(heartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			c.mu.Lock()
			if c.centerConn != nil {
				c.sendConnect(c.centerConn, c.center)
				c.sendIdent(c.centerConn)
			}
			for w, conn := range c.sideConns {
				c.sendConnect(conn, w)
				c.sendIdent(conn)
			}
			stopped := c.stopped
			c.mu.Unlock()
			if stopped {
				return
			}
		default:
			if c.isStopped() {
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
	}
}

func (c *Client) emitGateLocked(on bool) {
	if c.cb.OnGate != nil {
		c.cb.OnGate(on)
	}
}

func (c *Client) emitElem(sym string) {
	if c.cb.OnElem != nil {
		c.cb.OnElem(sym)
	}
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
