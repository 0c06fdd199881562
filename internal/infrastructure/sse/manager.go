// Package sse maintains the client's single live connection to the gateway
// event stream. One Manager owns at most one connection at a time and drives
// an explicit fixed-delay reconnection state machine around it. All state
// transitions, callbacks and event dispatch happen on one run loop, so the
// downstream reducer needs no locking of its own.
package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gavel.live/cli/internal/core/stream"
)

// State is the connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateRetrying     State = "retrying"
	StateFailed       State = "failed"
)

// ErrNoCredential is reported when the token provider cannot supply a
// credential. It is surfaced as a connection error but never consumes the
// retry budget.
var ErrNoCredential = errors.New("no credential available")

// ErrMaxRetries is reported when the retry ceiling is exhausted. The state
// machine is terminal at that point until Reconnect is called.
var ErrMaxRetries = errors.New("max retries reached")

// TokenProvider supplies a fresh stream credential. It is consulted on every
// connection attempt; the Manager never caches tokens itself.
type TokenProvider interface {
	StreamToken(ctx context.Context) (string, error)
}

// Config configures a Manager.
type Config struct {
	// URL is the stream endpoint. The credential is appended as a `token`
	// query parameter because the transport carries no custom headers.
	URL string

	// ReconnectDelay is the fixed delay between a failure and the next
	// attempt. Defaults to 5 seconds.
	ReconnectDelay time.Duration

	// MaxAttempts is the retry ceiling. 0 means retry forever.
	MaxAttempts int

	// AutoReconnect enables the retry state machine. When false a transport
	// error drops straight back to disconnected.
	AutoReconnect bool

	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// Callbacks are invoked from the run loop. OnError fires at most once per
// failure burst: only for the failure observed while the attempt counter is
// still zero, so flapping retries do not spam the caller.
type Callbacks struct {
	OnOpen       func()
	OnEvent      func(stream.Event)
	OnError      func(error)
	OnMaxRetries func()
}

// Snapshot is a point-in-time view of the state machine for UI polling.
type Snapshot struct {
	State     State
	Status    string
	LastError string
	Attempts  int
}

type cmdKind int

const (
	cmdConnect cmdKind = iota
	cmdDisconnect
	cmdReconnect
)

type transportKind int

const (
	transportOpened transportKind = iota
	transportFrame
	transportError
)

type transportMsg struct {
	gen   uint64
	kind  transportKind
	frame stream.Frame
	err   error
}

// Manager owns the stream connection and its retry bookkeeping. All fields
// below snap are owned exclusively by the run loop.
type Manager struct {
	cfg    Config
	tokens TokenProvider
	cb     Callbacks
	logger *logrus.Logger

	cmds      chan cmdKind
	transport chan transportMsg
	stopChan  chan struct{}
	doneChan  chan struct{}
	stopOnce  sync.Once

	// run-loop state
	ctx        context.Context
	state      State
	attempts   int
	gen        uint64
	connCancel context.CancelFunc
	retryTimer *time.Timer
	retryC     <-chan time.Time

	mu   sync.RWMutex
	snap Snapshot
}

// NewManager creates a Manager. Start must be called before the command
// methods have any effect.
func NewManager(cfg Config, tokens TokenProvider, cb Callbacks) *Manager {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &Manager{
		cfg:       cfg,
		tokens:    tokens,
		cb:        cb,
		logger:    logger,
		cmds:      make(chan cmdKind),
		transport: make(chan transportMsg, 32),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
		state:     StateDisconnected,
		snap:      Snapshot{State: StateDisconnected, Status: "disconnected"},
	}
}

// Start launches the run loop. The context bounds every credential fetch and
// connection the Manager makes.
func (m *Manager) Start(ctx context.Context) {
	m.ctx = ctx
	go m.run()
}

// Stop tears the Manager down: the active connection is closed, pending
// retries are cancelled and the run loop exits.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
	<-m.doneChan
}

// Connect requests a connection. A no-op while already connected or
// connecting; from the terminal failed state only Reconnect applies.
func (m *Manager) Connect() { m.send(cmdConnect) }

// Disconnect closes the connection, cancels any pending retry and resets the
// retry state. Any in-flight transport error is treated as manual and
// ignored.
func (m *Manager) Disconnect() { m.send(cmdDisconnect) }

// Reconnect is the user-initiated retry: a disconnect followed immediately
// by a fresh connect with the attempt counter reset to zero.
func (m *Manager) Reconnect() { m.send(cmdReconnect) }

// Snapshot returns the current state, human-readable status, last error and
// attempt count.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// State returns the current connection state.
func (m *Manager) State() State {
	return m.Snapshot().State
}

func (m *Manager) send(cmd cmdKind) {
	select {
	case m.cmds <- cmd:
	case <-m.stopChan:
	}
}

func (m *Manager) run() {
	defer close(m.doneChan)
	defer m.teardown()

	for {
		select {
		case <-m.stopChan:
			return
		case <-m.ctx.Done():
			return

		case cmd := <-m.cmds:
			switch cmd {
			case cmdConnect:
				if m.state == StateFailed {
					m.logger.Debug("connect ignored in failed state, use reconnect")
					continue
				}
				m.connect(false)
			case cmdDisconnect:
				m.disconnect()
			case cmdReconnect:
				m.disconnect()
				m.connect(false)
			}

		case <-m.retryC:
			m.retryC = nil
			m.retryTimer = nil
			m.connect(true)

		case msg := <-m.transport:
			if msg.gen != m.gen {
				// Message from a connection already torn down, manually or by
				// a newer attempt. Drop it.
				continue
			}
			switch msg.kind {
			case transportOpened:
				m.handleOpened()
			case transportFrame:
				m.handleFrame(msg.frame)
			case transportError:
				m.handleFailure(msg.err)
			}
		}
	}
}

// connect performs one connection attempt. fromRetry marks attempts driven
// by the retry timer, which changes how a credential failure is handled.
func (m *Manager) connect(fromRetry bool) {
	if m.state == StateConnected || m.state == StateConnecting {
		// Exactly one connection may exist; treat as a no-op guard.
		return
	}

	m.setState(StateConnecting, "connecting", "")

	tokenCtx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
	token, err := m.tokens.StreamToken(tokenCtx)
	cancel()
	if err != nil {
		m.handleCredentialFailure(fromRetry, err)
		return
	}

	connCtx, connCancel := context.WithCancel(m.ctx)
	m.connCancel = connCancel
	go m.consume(connCtx, m.gen, m.streamURL(token))

	m.logger.WithField("attempts", m.attempts).Debug("stream connection attempt started")
}

// handleCredentialFailure reports a missing credential distinctly from
// transport errors. It never consumes the retry budget: when auto-reconnect
// is on and the attempt came off the retry timer, the next attempt is
// rescheduled at the same fixed delay with the counter untouched.
func (m *Manager) handleCredentialFailure(fromRetry bool, err error) {
	wrapped := fmt.Errorf("%w: %v", ErrNoCredential, err)
	m.logger.WithError(err).Warn("credential fetch failed")

	if m.attempts == 0 && m.cb.OnError != nil {
		m.cb.OnError(wrapped)
	}

	if fromRetry && m.cfg.AutoReconnect {
		m.setState(StateRetrying,
			fmt.Sprintf("credential unavailable, retrying in %s", m.cfg.ReconnectDelay),
			wrapped.Error())
		m.scheduleRetry()
		return
	}

	m.setState(StateDisconnected, "credential unavailable", wrapped.Error())
}

func (m *Manager) handleOpened() {
	m.attempts = 0
	m.setState(StateConnected, "connected", "")
	m.logger.Info("stream connected")
	if m.cb.OnOpen != nil {
		m.cb.OnOpen()
	}
}

func (m *Manager) handleFrame(frame stream.Frame) {
	ev, err := stream.Decode(frame)
	if err != nil {
		// Malformed payloads are dropped; the connection stays up.
		m.logger.WithError(err).WithField("event", frame.Event).Debug("dropping undecodable stream message")
		return
	}
	if m.cb.OnEvent != nil {
		m.cb.OnEvent(ev)
	}
}

// handleFailure runs the retry state machine for one transport error.
func (m *Manager) handleFailure(err error) {
	m.closeConn()
	m.logger.WithError(err).Warn("stream connection lost")

	if m.attempts == 0 && m.cb.OnError != nil {
		m.cb.OnError(err)
	}

	if !m.cfg.AutoReconnect {
		m.setState(StateDisconnected, "disconnected", err.Error())
		return
	}

	if m.cfg.MaxAttempts > 0 && m.attempts >= m.cfg.MaxAttempts {
		m.setState(StateFailed, "max retries reached, reconnect manually", ErrMaxRetries.Error())
		if m.cb.OnMaxRetries != nil {
			m.cb.OnMaxRetries()
		}
		return
	}

	m.attempts++
	ceiling := "unlimited"
	if m.cfg.MaxAttempts > 0 {
		ceiling = fmt.Sprintf("%d", m.cfg.MaxAttempts)
	}
	m.setState(StateRetrying,
		fmt.Sprintf("reconnecting in %s (attempt %d of %s)", m.cfg.ReconnectDelay, m.attempts, ceiling),
		err.Error())
	m.scheduleRetry()
}

func (m *Manager) disconnect() {
	m.closeConn()
	m.cancelRetry()
	m.attempts = 0
	m.setState(StateDisconnected, "disconnected", "")
}

func (m *Manager) scheduleRetry() {
	m.cancelRetry()
	m.retryTimer = time.NewTimer(m.cfg.ReconnectDelay)
	m.retryC = m.retryTimer.C
}

func (m *Manager) cancelRetry() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
		m.retryC = nil
	}
}

// closeConn tears down the active connection, if any, and bumps the
// generation counter so stale transport messages are ignored.
func (m *Manager) closeConn() {
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	m.gen++
}

func (m *Manager) teardown() {
	m.closeConn()
	m.cancelRetry()
	m.setState(StateDisconnected, "stopped", "")
}

func (m *Manager) setState(state State, status, lastErr string) {
	m.state = state
	m.mu.Lock()
	m.snap = Snapshot{State: state, Status: status, LastError: lastErr, Attempts: m.attempts}
	m.mu.Unlock()
}

// streamURL embeds the credential as a query parameter. The transport does
// not support custom headers, so the server authenticates the stream from
// the URL.
func (m *Manager) streamURL(token string) string {
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		return m.cfg.URL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// consume dials the stream and pumps frames into the run loop. It runs per
// connection attempt; everything it posts is tagged with the generation it
// was started under.
func (m *Manager) consume(ctx context.Context, gen uint64, streamURL string) {
	post := func(msg transportMsg) {
		msg.gen = gen
		select {
		case m.transport <- msg:
		case <-ctx.Done():
		case <-m.stopChan:
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		post(transportMsg{kind: transportError, err: fmt.Errorf("building stream request: %w", err)})
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := m.cfg.HTTPClient.Do(req)
	if err != nil {
		post(transportMsg{kind: transportError, err: fmt.Errorf("stream dial failed: %w", err)})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))
		post(transportMsg{kind: transportError, err: fmt.Errorf("stream dial failed: status %d", resp.StatusCode)})
		return
	}

	post(transportMsg{kind: transportOpened})

	scanner := stream.NewScanner(resp.Body)
	for {
		frame, err := scanner.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errors.New("stream closed by server")
			}
			post(transportMsg{kind: transportError, err: err})
			return
		}
		post(transportMsg{kind: transportFrame, frame: frame})
	}
}
