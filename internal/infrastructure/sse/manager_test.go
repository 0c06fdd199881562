package sse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gavel.live/cli/internal/core/stream"
)

// staticTokens is a controllable TokenProvider stub
type staticTokens struct {
	mu    sync.Mutex
	token string
	err   error
}

func (s *staticTokens) StreamToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

func (s *staticTokens) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// recorder collects callback invocations thread-safely
type recorder struct {
	mu         sync.Mutex
	opens      int
	events     []stream.Event
	errs       []error
	maxRetries int
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnOpen: func() {
			r.mu.Lock()
			r.opens++
			r.mu.Unlock()
		},
		OnEvent: func(ev stream.Event) {
			r.mu.Lock()
			r.events = append(r.events, ev)
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
		OnMaxRetries: func() {
			r.mu.Lock()
			r.maxRetries++
			r.mu.Unlock()
		},
	}
}

func (r *recorder) openCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens
}

func (r *recorder) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) errCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func (r *recorder) maxRetryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxRetries
}

// streamingHandler serves the given frames then holds the stream open until
// the client goes away
func streamingHandler(t *testing.T, dials *atomic.Int64, frames ...string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)

		if r.URL.Query().Get("token") == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)

		for _, frame := range frames {
			fmt.Fprint(w, frame)
			flusher.Flush()
		}

		<-r.Context().Done()
	}
}

func startManager(t *testing.T, cfg Config, tokens TokenProvider, cb Callbacks) *Manager {
	t.Helper()
	m := NewManager(cfg, tokens, cb)
	m.Start(context.Background())
	t.Cleanup(m.Stop)
	return m
}

// TestManager_Connect_DeliversEvents tests the happy path end to end
func TestManager_Connect_DeliversEvents(t *testing.T) {
	var dials atomic.Int64
	srv := httptest.NewServer(streamingHandler(t, &dials,
		"data: {\"type\":\"connected\",\"userId\":\"alice\"}\n\n",
		"event: bid.placed\ndata: {\"type\":\"bid.placed\",\"data\":{\"auctionId\":\"a1\",\"newPrice\":150}}\n\n",
	))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	m := startManager(t, Config{
		URL:            srv.URL,
		ReconnectDelay: 20 * time.Millisecond,
		AutoReconnect:  true,
		MaxAttempts:    5,
	}, &staticTokens{token: "tok"}, rec.callbacks())

	m.Connect()

	require.Eventually(t, func() bool {
		return rec.eventCount() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, rec.openCount())
	assert.Equal(t, StateConnected, m.State())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, stream.ActionStreamConnected, rec.events[0].Action())
	assert.Equal(t, "alice", rec.events[0].UserID)
	assert.Equal(t, stream.ActionBidPlaced, rec.events[1].Action())
}

// TestManager_Connect_NoOpWhileConnected tests the single-connection guard
func TestManager_Connect_NoOpWhileConnected(t *testing.T) {
	var dials atomic.Int64
	srv := httptest.NewServer(streamingHandler(t, &dials,
		"data: {\"type\":\"connected\"}\n\n",
	))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	m := startManager(t, Config{
		URL:            srv.URL,
		ReconnectDelay: 20 * time.Millisecond,
		AutoReconnect:  true,
	}, &staticTokens{token: "tok"}, rec.callbacks())

	m.Connect()
	require.Eventually(t, func() bool {
		return m.State() == StateConnected
	}, 2*time.Second, 5*time.Millisecond)

	m.Connect()
	m.Connect()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), dials.Load())
	assert.Equal(t, 1, rec.openCount())
}

// TestManager_MalformedFramesDroppedWithoutDisconnect tests decode-failure
// tolerance
func TestManager_MalformedFramesDroppedWithoutDisconnect(t *testing.T) {
	var dials atomic.Int64
	srv := httptest.NewServer(streamingHandler(t, &dials,
		"data: {not json}\n\n",
		"data: {\"type\":\"connected\"}\n\n",
	))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	m := startManager(t, Config{
		URL:            srv.URL,
		ReconnectDelay: 20 * time.Millisecond,
		AutoReconnect:  true,
	}, &staticTokens{token: "tok"}, rec.callbacks())

	m.Connect()

	require.Eventually(t, func() bool {
		return rec.eventCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, 0, rec.errCount())
}

// TestManager_RetryBudget_TerminalAfterCeiling tests the full retry ladder:
// with a ceiling of K every failure burst schedules exactly K retries, then
// the machine parks in the terminal failed state
func TestManager_RetryBudget_TerminalAfterCeiling(t *testing.T) {
	var dials atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	m := startManager(t, Config{
		URL:            srv.URL,
		ReconnectDelay: 20 * time.Millisecond,
		AutoReconnect:  true,
		MaxAttempts:    2,
	}, &staticTokens{token: "tok"}, rec.callbacks())

	m.Connect()

	require.Eventually(t, func() bool {
		return m.State() == StateFailed
	}, 2*time.Second, 5*time.Millisecond)

	// Initial attempt plus exactly MaxAttempts retries
	assert.Equal(t, int64(3), dials.Load())
	assert.Equal(t, 1, rec.maxRetryCount())

	// One error callback for the whole burst
	assert.Equal(t, 1, rec.errCount())

	snap := m.Snapshot()
	assert.Contains(t, snap.Status, "reconnect manually")
	assert.Equal(t, ErrMaxRetries.Error(), snap.LastError)

	// Terminal: Connect is ignored...
	m.Connect()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int64(3), dials.Load())
	assert.Equal(t, StateFailed, m.State())

	// ...only Reconnect leaves the failed state
	m.Reconnect()
	require.Eventually(t, func() bool {
		return dials.Load() >= 4
	}, 2*time.Second, 5*time.Millisecond)
}

// TestManager_AttemptsResetOnSuccessfulOpen tests that a successful
// connection restores the full retry budget
func TestManager_AttemptsResetOnSuccessfulOpen(t *testing.T) {
	var dials atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := dials.Add(1)
		if n == 1 {
			// First dial fails, forcing one retry
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: {\"type\":\"connected\"}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	m := startManager(t, Config{
		URL:            srv.URL,
		ReconnectDelay: 20 * time.Millisecond,
		AutoReconnect:  true,
		MaxAttempts:    3,
	}, &staticTokens{token: "tok"}, rec.callbacks())

	m.Connect()

	require.Eventually(t, func() bool {
		return m.State() == StateConnected
	}, 2*time.Second, 5*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, 0, snap.Attempts)
	assert.Equal(t, 1, rec.openCount())
}

// TestManager_Disconnect_CancelsPendingRetry tests manual teardown during a
// retry burst
func TestManager_Disconnect_CancelsPendingRetry(t *testing.T) {
	var dials atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	m := startManager(t, Config{
		URL:            srv.URL,
		ReconnectDelay: 200 * time.Millisecond,
		AutoReconnect:  true,
		MaxAttempts:    10,
	}, &staticTokens{token: "tok"}, rec.callbacks())

	m.Connect()

	require.Eventually(t, func() bool {
		return m.State() == StateRetrying
	}, 2*time.Second, 5*time.Millisecond)

	m.Disconnect()
	assert.Eventually(t, func() bool {
		return m.State() == StateDisconnected
	}, 2*time.Second, 5*time.Millisecond)

	// The pending retry never fires
	dialed := dials.Load()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, dialed, dials.Load())

	// Retry bookkeeping is reset
	assert.Equal(t, 0, m.Snapshot().Attempts)
}

// TestManager_ServerClose_TriggersRetryState tests that a server-side stream
// close enters the retry machine
func TestManager_ServerClose_TriggersRetryState(t *testing.T) {
	var dials atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: {\"type\":\"connected\"}\n\n")
		w.(http.Flusher).Flush()
		// Close immediately: the client observes EOF
	}))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	m := startManager(t, Config{
		URL:            srv.URL,
		ReconnectDelay: 20 * time.Millisecond,
		AutoReconnect:  true,
		MaxAttempts:    100,
	}, &staticTokens{token: "tok"}, rec.callbacks())

	m.Connect()

	require.Eventually(t, func() bool {
		return rec.openCount() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.GreaterOrEqual(t, dials.Load(), int64(2))
}

// TestManager_NoAutoReconnect_DropsToDisconnected tests the machine with
// retries disabled
func TestManager_NoAutoReconnect_DropsToDisconnected(t *testing.T) {
	var dials atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	m := startManager(t, Config{
		URL:            srv.URL,
		ReconnectDelay: 20 * time.Millisecond,
		AutoReconnect:  false,
	}, &staticTokens{token: "tok"}, rec.callbacks())

	m.Connect()

	require.Eventually(t, func() bool {
		return m.State() == StateDisconnected && rec.errCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int64(1), dials.Load())
	assert.Equal(t, 0, rec.maxRetryCount())
}

// TestManager_CredentialFailure_SurfacedWithoutRetryBudget tests the
// distinct no-credential path
func TestManager_CredentialFailure_SurfacedWithoutRetryBudget(t *testing.T) {
	rec := &recorder{}
	tokens := &staticTokens{}
	tokens.setErr(errors.New("not signed in"))

	m := startManager(t, Config{
		URL:            "http://127.0.0.1:1", // never dialed
		ReconnectDelay: 20 * time.Millisecond,
		AutoReconnect:  true,
		MaxAttempts:    3,
	}, tokens, rec.callbacks())

	m.Connect()

	require.Eventually(t, func() bool {
		return rec.errCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	err := rec.errs[0]
	rec.mu.Unlock()
	assert.ErrorIs(t, err, ErrNoCredential)

	// A manual connect without a credential parks in disconnected, budget
	// untouched
	require.Eventually(t, func() bool {
		snap := m.Snapshot()
		return snap.State == StateDisconnected && snap.Attempts == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, m.Snapshot().Status, "credential unavailable")
}

// TestManager_CredentialFailureDuringRetry_ReschedulesWithoutConsuming tests
// that a token outage mid-burst keeps retrying at the fixed delay without
// spending attempts
func TestManager_CredentialFailureDuringRetry_ReschedulesWithoutConsuming(t *testing.T) {
	var dials atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	tokens := &staticTokens{token: "tok"}

	m := startManager(t, Config{
		URL:            srv.URL,
		ReconnectDelay: 30 * time.Millisecond,
		AutoReconnect:  true,
		MaxAttempts:    50,
	}, tokens, rec.callbacks())

	m.Connect()
	require.Eventually(t, func() bool {
		return m.State() == StateRetrying
	}, 2*time.Second, 5*time.Millisecond)

	// Token source goes dark: retries keep rescheduling, attempts frozen
	tokens.setErr(errors.New("identity service down"))
	require.Eventually(t, func() bool {
		return m.Snapshot().Status == fmt.Sprintf("credential unavailable, retrying in %s", 30*time.Millisecond)
	}, 2*time.Second, 5*time.Millisecond)
	frozen := m.Snapshot().Attempts

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, frozen, m.Snapshot().Attempts)
	assert.Equal(t, StateRetrying, m.State())

	// Token comes back, the machine dials again
	dialed := dials.Load()
	tokens.setErr(nil)
	require.Eventually(t, func() bool {
		return dials.Load() > dialed
	}, 2*time.Second, 5*time.Millisecond)
}

// TestManager_StreamURL_EmbedsTokenAsQueryParameter tests credential
// placement
func TestManager_StreamURL_EmbedsTokenAsQueryParameter(t *testing.T) {
	tokenSeen := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case tokenSeen <- r.URL.Query().Get("token"):
		default:
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	m := startManager(t, Config{
		URL:            srv.URL + "/events?channel=auctions",
		ReconnectDelay: 20 * time.Millisecond,
	}, &staticTokens{token: "jwt-id-token"}, rec.callbacks())

	m.Connect()

	select {
	case tok := <-tokenSeen:
		assert.Equal(t, "jwt-id-token", tok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream was never dialed")
	}
}

// TestManager_Stop_TearsDownCleanly tests shutdown
func TestManager_Stop_TearsDownCleanly(t *testing.T) {
	var dials atomic.Int64
	srv := httptest.NewServer(streamingHandler(t, &dials,
		"data: {\"type\":\"connected\"}\n\n",
	))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	m := NewManager(Config{
		URL:            srv.URL,
		ReconnectDelay: 20 * time.Millisecond,
		AutoReconnect:  true,
	}, &staticTokens{token: "tok"}, rec.callbacks())
	m.Start(context.Background())

	m.Connect()
	require.Eventually(t, func() bool {
		return m.State() == StateConnected
	}, 2*time.Second, 5*time.Millisecond)

	m.Stop()
	assert.Equal(t, StateDisconnected, m.State())

	// Stop is idempotent
	m.Stop()
}
