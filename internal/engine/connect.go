package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pocketdesk/pocketdesk/internal/client"
	"github.com/pocketdesk/pocketdesk/internal/mirror"
	"github.com/pocketdesk/pocketdesk/internal/protocol"
)

// authFailureMessage is delivered verbatim to both the connection-status
// and pairing-status channels when the trapdoor fires.
const authFailureMessage = "authentication failed: this device is no longer paired. Pair it again from the desktop."

// connect drives one connection attempt: snapshot first, then the realtime
// stream resuming at the snapshot's sequence.
func (e *Engine) connect(gen uint64) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	ctx := e.ctx
	e.status = StatusConnecting
	e.stable = false
	e.mu.Unlock()
	e.notifyStatus(StatusChange{Status: StatusConnecting})

	snap, err := e.client.FetchSnapshot(ctx)
	if !e.current(gen) {
		return
	}
	if err != nil {
		if client.IsAuthError(err) {
			e.authFailure()
			return
		}
		e.log.Warn("snapshot fetch failed", zap.Error(err))
		e.scheduleRetry(gen, "snapshot fetch failed: "+err.Error())
		return
	}

	e.store.InstallSnapshot(snap)
	e.metrics.RecordSnapshot(e.store.Watermark())
	e.log.Info("snapshot installed",
		zap.Uint64("sequence", snap.Sequence),
		zap.Int("workspaces", len(snap.State.Workspaces)))

	stream, err := e.client.Connect(ctx, client.StreamConfig{
		Since:   e.store.Watermark(),
		OnEvent: func(ev *protocol.Event) { e.onEvent(gen, ev) },
		OnError: func(err error) { e.onFrameError(gen, err) },
		OnClose: func(err error) { e.onStreamClose(gen, err) },
	})
	if !e.current(gen) {
		if stream != nil {
			_ = stream.Close()
		}
		return
	}
	if err != nil {
		if client.IsAuthError(err) {
			e.authFailure()
			return
		}
		e.log.Warn("realtime subscription failed", zap.Error(err))
		e.scheduleRetry(gen, "realtime subscription failed: "+err.Error())
		return
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		_ = stream.Close()
		return
	}
	e.stream = stream
	e.status = StatusConnected
	e.stable = false
	e.stableTimer = time.AfterFunc(stabilizationWindow, func() { e.markStable(gen) })
	e.mu.Unlock()

	e.metrics.SetConnected(true)
	e.notifyStatus(StatusChange{Status: StatusConnected})
}

// scheduleRetry arms the single reconnect timer. A second call while one is
// pending is a no-op; overlapping timers would multiply into parallel
// connection attempts.
func (e *Engine) scheduleRetry(gen uint64, msg string) {
	e.mu.Lock()
	if gen != e.gen || e.retryTimer != nil {
		e.mu.Unlock()
		return
	}
	delay := e.backoff.Next()
	status := e.status
	e.retryTimer = time.AfterFunc(delay, func() {
		e.mu.Lock()
		if gen != e.gen {
			e.mu.Unlock()
			return
		}
		e.retryTimer = nil
		e.mu.Unlock()
		e.connect(gen)
	})
	e.mu.Unlock()

	e.metrics.RecordReconnect()
	e.log.Info("reconnect scheduled",
		zap.Duration("delay", delay),
		zap.Int("attempt", e.backoff.Attempt()),
		zap.String("reason", msg))
	e.notifyStatus(StatusChange{Status: status, Message: msg})
}

// markStable fires after the stabilization window: the connection held, so
// the next failure starts backoff from scratch.
func (e *Engine) markStable(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.status != StatusConnected {
		e.mu.Unlock()
		return
	}
	e.stable = true
	e.stableTimer = nil
	e.mu.Unlock()

	e.backoff.Reset()
	e.notifyStatus(StatusChange{Status: StatusConnected, Stable: true})
}

// onEvent feeds one validated frame through the reducer.
func (e *Engine) onEvent(gen uint64, ev *protocol.Event) {
	if !e.current(gen) {
		return
	}
	outcome := e.store.ApplyEvent(ev)
	e.metrics.RecordEvent(outcome.String())
	e.metrics.SetWatermark(e.store.Watermark())

	if outcome == mirror.OutcomeRefreshRequested {
		e.triggerRefresh(gen)
	}
}

// onFrameError surfaces a malformed frame. Logging alone would leave the
// user staring at a stuck screen with no explanation, so the status channel
// hears about it too.
func (e *Engine) onFrameError(gen uint64, err error) {
	if !e.current(gen) {
		return
	}
	e.metrics.RecordMalformedFrame()
	e.log.Error("malformed realtime frame", zap.Error(err))

	e.mu.Lock()
	status := e.status
	e.mu.Unlock()
	e.notifyStatus(StatusChange{Status: status, Message: "desktop sent a malformed update: " + err.Error()})
}

// onStreamClose handles socket loss while still paired: drop to
// disconnected and arm one retry.
func (e *Engine) onStreamClose(gen uint64, err error) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.stream = nil
	e.status = StatusDisconnected
	e.stable = false
	if e.stableTimer != nil {
		e.stableTimer.Stop()
		e.stableTimer = nil
	}
	e.mu.Unlock()

	e.metrics.SetConnected(false)
	e.log.Warn("realtime stream closed", zap.Error(err))
	e.notifyStatus(StatusChange{Status: StatusDisconnected, Message: "connection lost"})
	e.scheduleRetry(gen, "connection lost")
}

// triggerRefresh answers a staleness event with one snapshot re-fetch.
// Concurrent triggers while a fetch is outstanding coalesce into no-ops.
func (e *Engine) triggerRefresh(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.refreshing {
		e.mu.Unlock()
		return
	}
	e.refreshing = true
	ctx := e.ctx
	e.mu.Unlock()

	e.metrics.RecordRefresh()
	go func() {
		snap, err := e.client.FetchSnapshot(ctx)

		e.mu.Lock()
		if gen != e.gen {
			e.mu.Unlock()
			return
		}
		e.refreshing = false
		e.mu.Unlock()

		if err != nil {
			if client.IsAuthError(err) {
				e.authFailure()
				return
			}
			// The refresh flag stays raised; the next staleness event or
			// reconnect retries the fetch.
			e.log.Warn("snapshot refresh failed", zap.Error(err))
			return
		}
		e.store.InstallSnapshot(snap)
		e.metrics.RecordSnapshot(e.store.Watermark())
	}()
}

// authFailure is the one-way trapdoor. Order matters: retries and the
// socket die first, then credentials, then the mirror, so nothing observes
// half-cleared state and re-arms itself.
func (e *Engine) authFailure() {
	e.mu.Lock()
	if e.status == StatusAuthFailed {
		e.mu.Unlock()
		return
	}
	e.teardownLocked()
	e.status = StatusAuthFailed
	e.stable = false
	e.mu.Unlock()

	clearCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.creds.Clear(clearCtx); err != nil {
		e.log.Warn("failed to clear stored credentials", zap.Error(err))
	}
	e.client.SetCredentials(nil)
	e.store.Reset()
	e.backoff.Reset()

	e.metrics.RecordAuthFailure()
	e.metrics.SetConnected(false)
	e.log.Error("authentication failed, pairing revoked")

	e.notifyStatus(StatusChange{Status: StatusAuthFailed, Message: authFailureMessage})
	e.notifyPairing(authFailureMessage)
}
