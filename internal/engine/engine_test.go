package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketdesk/pocketdesk/internal/client"
	"github.com/pocketdesk/pocketdesk/internal/credstore"
	"github.com/pocketdesk/pocketdesk/internal/mirror"
	"github.com/pocketdesk/pocketdesk/internal/protocol"
	"github.com/pocketdesk/pocketdesk/internal/resilience"
)

// fakeDesktop is a protocol-conformant desktop host for engine tests.
type fakeDesktop struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu             sync.Mutex
	snapshotCalls  int
	snapshotStatus int           // 0 means success
	snapshotDelay  time.Duration // applied to refresh fetches after the first
	seq            uint64
	conn           *websocket.Conn
}

func newFakeDesktop(t *testing.T) *fakeDesktop {
	t.Helper()
	d := &fakeDesktop{seq: 10}
	mux := http.NewServeMux()
	mux.HandleFunc("/mobile/v1/state/snapshot", d.handleSnapshot)
	mux.HandleFunc("/mobile/v1/stream", d.handleStream)
	d.srv = httptest.NewServer(mux)
	t.Cleanup(d.srv.Close)
	return d
}

func (d *fakeDesktop) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	d.snapshotCalls++
	calls := d.snapshotCalls
	status := d.snapshotStatus
	delay := d.snapshotDelay
	seq := d.seq
	d.mu.Unlock()

	if calls > 1 && delay > 0 {
		time.Sleep(delay)
	}
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "unauthorized"})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data": map[string]any{
			"version":     protocol.Version,
			"sequence":    seq,
			"generatedAt": time.Now().Format(time.RFC3339),
			"state": map[string]any{
				"activeTabId": "ws-a",
				"workspaces": []map[string]any{
					{"id": "ws-a", "projectPath": "/alpha", "terminals": []map[string]any{{"id": "term-1"}}},
				},
			},
		},
	})
}

func (d *fakeDesktop) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (d *fakeDesktop) push(t *testing.T, seq uint64, eventType string, payload any) {
	t.Helper()
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.conn != nil
	}, 2*time.Second, 10*time.Millisecond, "no stream connected")

	frame := map[string]any{
		"version":     protocol.Version,
		"sequence":    seq,
		"eventType":   eventType,
		"generatedAt": time.Now().Format(time.RFC3339),
	}
	if payload != nil {
		frame["payload"] = payload
	}
	data, err := json.Marshal(frame)
	require.NoError(t, err)

	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func (d *fakeDesktop) creds() *protocol.Credentials {
	wsURL := "ws" + strings.TrimPrefix(d.srv.URL, "http")
	return &protocol.Credentials{
		DeviceID: "dev-1",
		Token:    "tok-1",
		BaseURL:  d.srv.URL + "/mobile/v1",
		WSURL:    wsURL + "/mobile/v1",
	}
}

func (d *fakeDesktop) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotCalls
}

func newTestEngine(t *testing.T, d *fakeDesktop) (*Engine, *credstore.Memory, *resilience.Backoff) {
	t.Helper()
	creds := credstore.NewMemory()
	require.NoError(t, creds.Save(context.Background(), d.creds()))

	backoff := resilience.NewBackoffWithJitter(func() float64 { return 0 })
	eng := New(client.New(), mirror.NewStore(), creds, WithBackoff(backoff))
	t.Cleanup(eng.Stop)
	return eng, creds, backoff
}

func waitStatus(t *testing.T, changes <-chan StatusChange, want Status) StatusChange {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case change := <-changes:
			if change.Status == want {
				return change
			}
		case <-deadline:
			t.Fatalf("status %s never reached", want)
		}
	}
}

func TestEngineConnectsAndAppliesEvents(t *testing.T) {
	d := newFakeDesktop(t)
	eng, _, _ := newTestEngine(t, d)

	statuses := make(chan StatusChange, 16)
	defer eng.SubscribeStatus(func(c StatusChange) { statuses <- c })()

	paired, err := eng.Start(context.Background())
	require.NoError(t, err)
	require.True(t, paired)

	waitStatus(t, statuses, StatusConnecting)
	waitStatus(t, statuses, StatusConnected)
	assert.Equal(t, uint64(10), eng.Store().Watermark())
	assert.Equal(t, "ws-a", eng.Store().Mirror().Active.ActiveWorkspaceID)

	d.push(t, 11, protocol.EventTerminalSummary, map[string]any{"activeTerminalId": "term-2"})
	require.Eventually(t, func() bool {
		return eng.Store().Mirror().Active.ActiveTerminalID == "term-2"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(11), eng.Store().Watermark())

	// A stale redelivery changes nothing.
	d.push(t, 11, protocol.EventTerminalSummary, map[string]any{"activeTerminalId": "term-stale"})
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "term-2", eng.Store().Mirror().Active.ActiveTerminalID)
}

func TestEngineRefreshOnStalenessEvent(t *testing.T) {
	d := newFakeDesktop(t)
	eng, _, _ := newTestEngine(t, d)

	statuses := make(chan StatusChange, 16)
	defer eng.SubscribeStatus(func(c StatusChange) { statuses <- c })()

	_, err := eng.Start(context.Background())
	require.NoError(t, err)
	waitStatus(t, statuses, StatusConnected)
	require.Equal(t, 1, d.calls())

	// Bump the desktop sequence so the refreshed snapshot moves the
	// watermark forward.
	d.mu.Lock()
	d.seq = 20
	d.mu.Unlock()

	d.push(t, 12, protocol.EventResnapshotRequired, nil)
	require.Eventually(t, func() bool {
		return eng.Store().Watermark() == 20 && !eng.Store().NeedsRefresh()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, d.calls())
}

func TestEngineCoalescesConcurrentRefreshes(t *testing.T) {
	d := newFakeDesktop(t)
	d.mu.Lock()
	d.snapshotDelay = 200 * time.Millisecond
	d.mu.Unlock()

	eng, _, _ := newTestEngine(t, d)
	statuses := make(chan StatusChange, 16)
	defer eng.SubscribeStatus(func(c StatusChange) { statuses <- c })()

	_, err := eng.Start(context.Background())
	require.NoError(t, err)
	waitStatus(t, statuses, StatusConnected)
	require.Equal(t, 1, d.calls())

	// Two staleness events while the first refresh is still in flight
	// must not produce a second concurrent fetch.
	d.push(t, 11, protocol.EventSnapshotUpdated, nil)
	d.push(t, 12, protocol.EventResnapshotRequired, nil)

	require.Eventually(t, func() bool {
		return !eng.Store().NeedsRefresh()
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, d.calls())
}

func TestEngineAuthTrapdoor(t *testing.T) {
	d := newFakeDesktop(t)
	d.mu.Lock()
	d.snapshotStatus = http.StatusUnauthorized
	d.mu.Unlock()

	eng, creds, backoff := newTestEngine(t, d)

	statuses := make(chan StatusChange, 16)
	pairings := make(chan string, 16)
	defer eng.SubscribeStatus(func(c StatusChange) { statuses <- c })()
	defer eng.SubscribePairing(func(msg string) { pairings <- msg })()

	_, err := eng.Start(context.Background())
	require.NoError(t, err)

	change := waitStatus(t, statuses, StatusAuthFailed)
	require.NotEmpty(t, change.Message)

	var pairingMsg string
	select {
	case pairingMsg = <-pairings:
	case <-time.After(2 * time.Second):
		t.Fatal("pairing channel never heard about the auth failure")
	}

	// The same human-readable string reaches both channels.
	assert.Equal(t, change.Message, pairingMsg)

	// Persisted and in-memory credentials are gone, the mirror is reset,
	// and the attempt counter is back to zero.
	stored, err := creds.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.Equal(t, uint64(0), eng.Store().Watermark())
	assert.Empty(t, eng.Store().Mirror().Workspaces)
	assert.Equal(t, 0, backoff.Attempt())

	status, stable := eng.Status()
	assert.Equal(t, StatusAuthFailed, status)
	assert.False(t, stable)

	// The trapdoor is one-way: no retry ever fires.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, d.calls())
}

func TestEngineRetriesTransientSnapshotFailure(t *testing.T) {
	d := newFakeDesktop(t)
	d.mu.Lock()
	d.snapshotStatus = http.StatusServiceUnavailable
	d.mu.Unlock()

	eng, _, backoff := newTestEngine(t, d)
	statuses := make(chan StatusChange, 16)
	defer eng.SubscribeStatus(func(c StatusChange) { statuses <- c })()

	_, err := eng.Start(context.Background())
	require.NoError(t, err)

	// A transient failure schedules a retry and reports it; it does not
	// take the trapdoor.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case change := <-statuses:
			require.NotEqual(t, StatusAuthFailed, change.Status)
			if change.Message != "" {
				assert.Contains(t, change.Message, "snapshot fetch failed")
				assert.Equal(t, 1, backoff.Attempt())
				return
			}
		case <-deadline:
			t.Fatal("transient failure never surfaced")
		}
	}
}

func TestEngineReconnectsAfterSocketLoss(t *testing.T) {
	d := newFakeDesktop(t)
	eng, _, _ := newTestEngine(t, d)

	statuses := make(chan StatusChange, 32)
	defer eng.SubscribeStatus(func(c StatusChange) { statuses <- c })()

	_, err := eng.Start(context.Background())
	require.NoError(t, err)
	waitStatus(t, statuses, StatusConnected)

	// Kill the socket from the desktop side.
	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	d.mu.Unlock()
	require.NotNil(t, conn)
	conn.Close()

	waitStatus(t, statuses, StatusDisconnected)
	// First backoff delay is one second with zero jitter.
	waitStatus(t, statuses, StatusConnected)
	assert.GreaterOrEqual(t, d.calls(), 2)
}

func TestEngineStopDoesNotRetry(t *testing.T) {
	d := newFakeDesktop(t)
	eng, creds, _ := newTestEngine(t, d)

	statuses := make(chan StatusChange, 16)
	defer eng.SubscribeStatus(func(c StatusChange) { statuses <- c })()

	_, err := eng.Start(context.Background())
	require.NoError(t, err)
	waitStatus(t, statuses, StatusConnected)
	calls := d.calls()

	eng.Stop()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, calls, d.calls())

	// Stop keeps the pairing.
	stored, err := creds.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestEngineForgetClearsEverything(t *testing.T) {
	d := newFakeDesktop(t)
	eng, creds, _ := newTestEngine(t, d)

	statuses := make(chan StatusChange, 16)
	defer eng.SubscribeStatus(func(c StatusChange) { statuses <- c })()

	_, err := eng.Start(context.Background())
	require.NoError(t, err)
	waitStatus(t, statuses, StatusConnected)

	require.NoError(t, eng.Forget(context.Background()))

	stored, err := creds.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.Equal(t, uint64(0), eng.Store().Watermark())

	status, _ := eng.Status()
	assert.Equal(t, StatusDisconnected, status)
}

func TestEngineStartWithoutPairing(t *testing.T) {
	eng := New(client.New(), mirror.NewStore(), credstore.NewMemory())
	paired, err := eng.Start(context.Background())
	require.NoError(t, err)
	assert.False(t, paired)
}
