package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pocketdesk/pocketdesk/internal/client"
	"github.com/pocketdesk/pocketdesk/internal/credstore"
	"github.com/pocketdesk/pocketdesk/internal/infrastructure/logging"
	"github.com/pocketdesk/pocketdesk/internal/infrastructure/monitoring"
	"github.com/pocketdesk/pocketdesk/internal/mirror"
	"github.com/pocketdesk/pocketdesk/internal/protocol"
	"github.com/pocketdesk/pocketdesk/internal/resilience"
)

// Status is the engine's connection state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusAuthFailed   Status = "auth_failed"
)

// StatusChange is delivered to connection-status subscribers.
type StatusChange struct {
	Status Status
	// Stable is true once the connection has survived the stabilization
	// window and the backoff counter has been reset.
	Stable bool
	// Message carries a human-readable transient or fatal error, empty on
	// clean transitions.
	Message string
}

// stabilizationWindow is how long a connection must stay up before the
// retry counter resets.
const stabilizationWindow = 30 * time.Second

// Engine drives the sync lifecycle. All exported methods are safe for
// concurrent use.
type Engine struct {
	client  *client.Client
	store   *mirror.Store
	creds   credstore.Store
	log     *logging.Logger
	metrics *monitoring.Metrics
	backoff *resilience.Backoff

	mu sync.Mutex
	// gen invalidates asynchronous continuations: every goroutine and timer
	// captures the generation it was started under and discards its result
	// if the engine has moved on.
	gen         uint64
	status      Status
	stable      bool
	stream      *client.Stream
	retryTimer  *time.Timer
	stableTimer *time.Timer
	refreshing  bool
	ctx         context.Context
	cancel      context.CancelFunc

	statusSubs  map[int]func(StatusChange)
	pairingSubs map[int]func(string)
	nextSub     int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger wires a logger.
func WithLogger(log *logging.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics wires metrics collectors.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithBackoff injects a backoff schedule, deterministic in tests.
func WithBackoff(b *resilience.Backoff) Option {
	return func(e *Engine) { e.backoff = b }
}

// New builds an engine around a sync client, a mirror store, and a
// credential store.
func New(c *client.Client, store *mirror.Store, creds credstore.Store, opts ...Option) *Engine {
	e := &Engine{
		client:      c,
		store:       store,
		creds:       creds,
		log:         logging.Nop(),
		backoff:     resilience.NewBackoff(),
		status:      StatusDisconnected,
		statusSubs:  make(map[int]func(StatusChange)),
		pairingSubs: make(map[int]func(string)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the mirror store for read access and subscriptions.
func (e *Engine) Store() *mirror.Store {
	return e.store
}

// Status returns the current connection status and stability.
func (e *Engine) Status() (Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, e.stable
}

// Start loads stored credentials and, when present, begins connecting.
// Returns true when a stored pairing was found.
func (e *Engine) Start(ctx context.Context) (bool, error) {
	stored, err := e.creds.Load(ctx)
	if err != nil {
		return false, err
	}
	if stored == nil {
		return false, nil
	}
	e.client.SetCredentials(stored)

	e.mu.Lock()
	gen := e.beginSessionLocked()
	e.mu.Unlock()

	go e.connect(gen)
	return true, nil
}

// Pair runs the pairing exchange, persists the credentials, and connects.
func (e *Engine) Pair(ctx context.Context, host, pairCode, deviceName string) (*protocol.Credentials, error) {
	creds, err := e.client.Pair(ctx, host, pairCode, deviceName)
	if err != nil {
		e.notifyPairing(err.Error())
		return nil, err
	}
	if err := e.creds.Save(ctx, creds); err != nil {
		// Pairing succeeded; a save failure costs a re-pair after restart,
		// not the session.
		e.log.Warn("failed to persist credentials", zap.Error(err))
	}

	e.mu.Lock()
	gen := e.beginSessionLocked()
	e.mu.Unlock()

	go e.connect(gen)
	return creds, nil
}

// SendCommand dispatches an action through the sync client. A 401 takes
// the same trapdoor as any other auth failure; application-level "failed"
// results are returned to the caller and affect nothing else.
func (e *Engine) SendCommand(ctx context.Context, actionType string, payload map[string]any) (*protocol.CommandResult, error) {
	result, err := e.client.SendCommand(ctx, actionType, payload)
	if err != nil && client.IsAuthError(err) {
		e.authFailure()
		return nil, err
	}
	return result, err
}

// SendCommandWithCreds installs credentials and dispatches in one step, for
// one-shot callers that skip Start.
func (e *Engine) SendCommandWithCreds(ctx context.Context, creds *protocol.Credentials, actionType string, payload map[string]any) (*protocol.CommandResult, error) {
	e.client.SetCredentials(creds)
	return e.SendCommand(ctx, actionType, payload)
}

// Stop tears the connection down but keeps the pairing. Used when the app
// backgrounds.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.teardownLocked()
	e.status = StatusDisconnected
	e.stable = false
	e.mu.Unlock()

	e.metrics.SetConnected(false)
	e.notifyStatus(StatusChange{Status: StatusDisconnected})
}

// Forget tears everything down and destroys the pairing: timers first, then
// the socket, then credentials and mirror. The ordering matters; a socket
// close callback firing after credentials are cleared must not re-arm a
// reconnect against nothing.
func (e *Engine) Forget(ctx context.Context) error {
	e.mu.Lock()
	e.teardownLocked()
	e.status = StatusDisconnected
	e.stable = false
	e.mu.Unlock()

	err := e.creds.Clear(ctx)
	e.client.SetCredentials(nil)
	e.store.Reset()
	e.backoff.Reset()

	e.metrics.SetConnected(false)
	e.notifyStatus(StatusChange{Status: StatusDisconnected})
	return err
}

// SubscribeStatus registers a connection-status callback and returns its
// cancellation handle.
func (e *Engine) SubscribeStatus(fn func(StatusChange)) func() {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.statusSubs[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.statusSubs, id)
		e.mu.Unlock()
	}
}

// SubscribePairing registers a pairing-status callback and returns its
// cancellation handle. It receives human-readable pairing errors, including
// the auth-trapdoor message.
func (e *Engine) SubscribePairing(fn func(string)) func() {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.pairingSubs[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.pairingSubs, id)
		e.mu.Unlock()
	}
}

// beginSessionLocked tears down any previous session and opens a new
// generation. Callers hold e.mu.
func (e *Engine) beginSessionLocked() uint64 {
	e.teardownLocked()
	e.gen++
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e.gen
}

// teardownLocked cancels timers, invalidates continuations, and closes the
// socket without letting its close handler schedule a retry. Callers hold
// e.mu.
func (e *Engine) teardownLocked() {
	e.gen++
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
	if e.stableTimer != nil {
		e.stableTimer.Stop()
		e.stableTimer = nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.stream != nil {
		// Close never fires OnClose; the stream checks its shutdown flag
		// before invoking callbacks.
		_ = e.stream.Close()
		e.stream = nil
	}
	e.refreshing = false
}

// current reports whether a continuation started under gen may still apply
// its result.
func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen == e.gen
}

func (e *Engine) notifyStatus(change StatusChange) {
	e.mu.Lock()
	subs := make([]func(StatusChange), 0, len(e.statusSubs))
	for _, fn := range e.statusSubs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()
	for _, fn := range subs {
		fn(change)
	}
}

func (e *Engine) notifyPairing(msg string) {
	e.mu.Lock()
	subs := make([]func(string), 0, len(e.pairingSubs))
	for _, fn := range e.pairingSubs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()
	for _, fn := range subs {
		fn(msg)
	}
}
