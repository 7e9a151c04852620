package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/medassist/clinical-portal/pkg/model"
	"go.uber.org/zap"
)

// ErrNotConnected is returned when a send is requested while the channel
// is neither connected nor simulated.
var ErrNotConnected = errors.New("live channel is not connected")

// Conn is the minimal surface of a live channel connection. It is
// satisfied by *websocket.Conn and by test fakes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc opens a live channel to the given URL.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// WebsocketDial is the production DialFunc backed by gorilla/websocket.
func WebsocketDial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Payload is one JSON frame on the live channel. Every frame carries a
// type discriminator; the rest of the object is type-specific.
type Payload struct {
	Type string
	Raw  json.RawMessage
}

// ManagerConfig configures a connection Manager.
type ManagerConfig struct {
	Host        string
	AuthToken   string
	DemoMode    bool          // start directly in simulated mode, no network attempt
	MaxAttempts int           // consecutive failures before permanent simulated mode
	BackoffUnit time.Duration // reconnect waits BackoffUnit * attempt
}

func (c *ManagerConfig) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffUnit <= 0 {
		c.BackoffUnit = 3 * time.Second
	}
}

// Manager owns the single live channel for one session and the single
// outstanding reconnect timer. It degrades into simulated mode after the
// configured number of consecutive failures, after which it keeps
// reporting itself as connected without transmitting anything.
//
// Transitions are serialized: one event is processed at a time, in
// arrival order. Subscribers are invoked outside the internal lock and
// must not assume they run on any particular goroutine.
type Manager struct {
	cfg    ManagerConfig
	dial   DialFunc
	logger *zap.Logger

	mu        sync.Mutex
	state     model.ConnectionState
	simulated bool
	attempts  int
	conn      Conn
	timer     *time.Timer
	timerGen  uint64 // bumping invalidates an in-flight timer callback
	dialGen   uint64 // bumping invalidates an in-flight dial

	stateSubs   []func(model.ConnectionState)
	payloadSubs []func(Payload)
}

// NewManager creates a connection Manager. dial may be nil, in which case
// the gorilla/websocket dialer is used.
func NewManager(cfg ManagerConfig, dial DialFunc, logger *zap.Logger) *Manager {
	cfg.applyDefaults()
	if dial == nil {
		dial = WebsocketDial
	}
	return &Manager{
		cfg:    cfg,
		dial:   dial,
		logger: logger,
		state:  model.StateDisconnected,
	}
}

// OnState registers a subscriber for state changes. Register before
// calling Start.
func (m *Manager) OnState(fn func(model.ConnectionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateSubs = append(m.stateSubs, fn)
}

// OnPayload registers a subscriber for inbound payloads. The manager only
// relays what arrives on the wire; it never synthesizes content.
func (m *Manager) OnPayload(fn func(Payload)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloadSubs = append(m.payloadSubs, fn)
}

// State returns the current connection state.
func (m *Manager) State() model.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Simulated reports whether the channel has degraded into simulated mode.
func (m *Manager) Simulated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.simulated
}

// Start begins the session. In demo mode it moves straight to simulated
// mode without a network attempt; otherwise it starts connecting to the
// configured endpoint. Starting an already started manager is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.state != model.StateDisconnected {
		m.mu.Unlock()
		return
	}

	if m.cfg.DemoMode {
		m.simulated = true
		notify := m.setStateLocked(model.StateSimulated)
		m.mu.Unlock()
		m.logger.Info("live channel started in demo mode, no network attempt")
		notify()
		return
	}

	notify := m.setStateLocked(model.StateConnecting)
	m.dialGen++
	gen := m.dialGen
	m.mu.Unlock()
	notify()

	go m.connect(gen)
}

// connect dials the endpoint and applies the outcome, unless the attempt
// has been invalidated by a teardown in the meantime.
func (m *Manager) connect(gen uint64) {
	url := fmt.Sprintf("ws://%s/ws/%s", m.cfg.Host, m.cfg.AuthToken)
	conn, err := m.dial(context.Background(), url)

	m.mu.Lock()
	if gen != m.dialGen {
		// Torn down while dialing; the result no longer matters.
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		notify := m.failureLocked(err)
		m.mu.Unlock()
		notify()
		return
	}

	m.conn = conn
	m.attempts = 0
	notify := m.setStateLocked(model.StateConnected)
	m.mu.Unlock()

	m.logger.Info("live channel opened", zap.String("host", m.cfg.Host))
	notify()

	go m.readLoop(conn)
}

// readLoop relays inbound frames until the connection fails or is closed.
func (m *Manager) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.closed(conn, err)
			return
		}

		var head struct {
			Type string `json:"type"`
		}
		if jerr := json.Unmarshal(data, &head); jerr != nil {
			m.logger.Warn("discarding malformed live payload", zap.Error(jerr))
			continue
		}

		m.mu.Lock()
		if m.conn != conn {
			// Stale reader after reconnect or teardown.
			m.mu.Unlock()
			return
		}
		subs := make([]func(Payload), len(m.payloadSubs))
		copy(subs, m.payloadSubs)
		m.mu.Unlock()

		payload := Payload{Type: head.Type, Raw: json.RawMessage(data)}
		for _, fn := range subs {
			fn(payload)
		}
	}
}

// closed handles a connection loss reported by the read loop.
func (m *Manager) closed(conn Conn, err error) {
	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	notify := m.failureLocked(err)
	m.mu.Unlock()
	notify()
}

// failureLocked applies one connection failure: bump the attempt counter,
// then either schedule a linear-backoff reconnect or degrade permanently
// into simulated mode. Caller holds the lock.
func (m *Manager) failureLocked(err error) func() {
	if m.simulated || m.state == model.StateDisconnected {
		return func() {}
	}

	m.attempts++
	m.logger.Warn("live channel failure",
		zap.Error(err),
		zap.Int("attempt", m.attempts),
		zap.Int("max_attempts", m.cfg.MaxAttempts),
	)

	if m.attempts >= m.cfg.MaxAttempts {
		m.simulated = true
		m.cancelTimerLocked()
		notify := m.setStateLocked(model.StateSimulated)
		m.logger.Info("live channel degraded to simulated mode")
		return notify
	}

	notify := m.setStateLocked(model.StateConnecting)

	// Only one timer may be outstanding; bumping the generation makes a
	// previously scheduled callback a no-op before replacing it.
	m.cancelTimerLocked()
	delay := m.cfg.BackoffUnit * time.Duration(m.attempts)
	gen := m.timerGen
	m.timer = time.AfterFunc(delay, func() { m.timerFired(gen) })

	m.logger.Info("reconnect scheduled", zap.Duration("delay", delay))
	return notify
}

// timerFired runs when the reconnect timer elapses. A stale generation
// means the timer was cancelled and must not mutate anything.
func (m *Manager) timerFired(gen uint64) {
	m.mu.Lock()
	if gen != m.timerGen {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	if m.simulated || m.state == model.StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.dialGen++
	dialGen := m.dialGen
	m.mu.Unlock()

	m.connect(dialGen)
}

// Send transmits a payload over the live channel. In simulated mode the
// payload is accepted without transmission so callers never block on
// network delivery. Returns ErrNotConnected while disconnected or still
// connecting.
func (m *Manager) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	m.mu.Lock()
	if m.simulated {
		m.mu.Unlock()
		m.logger.Debug("payload accepted in simulated mode")
		return nil
	}

	if m.state != model.StateConnected || m.conn == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}

	conn := m.conn
	if werr := conn.WriteMessage(websocket.TextMessage, data); werr != nil {
		m.conn = nil
		conn.Close()
		notify := m.failureLocked(werr)
		m.mu.Unlock()
		notify()
		return fmt.Errorf("failed to transmit payload: %w", werr)
	}
	m.mu.Unlock()

	return nil
}

// Teardown cancels any outstanding timer, closes the live channel if open
// and returns the manager to Disconnected. It is safe to call any number
// of times.
func (m *Manager) Teardown() {
	m.mu.Lock()
	m.cancelTimerLocked()
	m.dialGen++ // invalidate any in-flight dial
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.attempts = 0
	m.simulated = false

	notify := func() {}
	if m.state != model.StateDisconnected {
		notify = m.setStateLocked(model.StateDisconnected)
	}
	m.mu.Unlock()
	notify()
}

// cancelTimerLocked stops and forgets the outstanding reconnect timer, if
// any. Caller holds the lock.
func (m *Manager) cancelTimerLocked() {
	m.timerGen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// setStateLocked records the new state and returns the deferred
// subscriber notification, to be run after the lock is released. Caller
// holds the lock.
func (m *Manager) setStateLocked(s model.ConnectionState) func() {
	m.state = s
	subs := make([]func(model.ConnectionState), len(m.stateSubs))
	copy(subs, m.stateSubs)
	return func() {
		for _, fn := range subs {
			fn(s)
		}
	}
}
