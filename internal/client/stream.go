package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/pocketdesk/pocketdesk/internal/protocol"
)

// StreamConfig configures a realtime subscription. Callbacks are invoked
// from the stream's read goroutine, one at a time.
type StreamConfig struct {
	// Since resumes the event stream after this sequence number.
	Since uint64
	// OnOpen fires once the subscription is established.
	OnOpen func()
	// OnEvent receives every validated inbound event.
	OnEvent func(*protocol.Event)
	// OnError receives frame parse/validation failures. Malformed frames
	// are not silently dropped; a quiet skip here shows up later as an
	// inexplicably stale screen.
	OnError func(error)
	// OnClose fires when the socket closes for any reason other than an
	// explicit Close call.
	OnClose func(error)
}

// Stream is a live realtime subscription. Close is the cancellation handle.
type Stream struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Connect opens the realtime subscription. The bearer token and resume
// sequence travel as query parameters; the protocol version rides the
// handshake headers. A 401 on the handshake is classified like any other
// auth failure.
func (c *Client) Connect(ctx context.Context, cfg StreamConfig) (*Stream, error) {
	creds, err := c.requireCreds()
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("token", creds.Token)
	q.Set("since", strconv.FormatUint(cfg.Since, 10))
	wsURL := creds.WSURL + "/stream?" + q.Encode()

	header := http.Header{}
	header.Set(protocol.VersionHeader, strconv.Itoa(protocol.Version))

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, &RequestError{Status: resp.StatusCode, Message: "realtime subscription refused"}
		}
		return nil, fmt.Errorf("realtime dial: %w", err)
	}

	s := &Stream{conn: conn, done: make(chan struct{})}
	if cfg.OnOpen != nil {
		cfg.OnOpen()
	}
	go s.readLoop(cfg)
	return s, nil
}

func (s *Stream) readLoop(cfg StreamConfig) {
	defer close(s.done)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			// Explicit shutdown is checked before the close callback can
			// re-arm reconnect logic against a socket we tore down ourselves.
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed && cfg.OnClose != nil {
				cfg.OnClose(err)
			}
			return
		}

		ev, err := protocol.DecodeEvent(data)
		if err != nil {
			if cfg.OnError != nil {
				cfg.OnError(err)
			}
			continue
		}
		if cfg.OnEvent != nil {
			cfg.OnEvent(ev)
		}
	}
}

// Close tears the subscription down without firing OnClose. Safe to call
// more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// Best effort: tell the peer we are going away before slamming the TCP
	// connection shut.
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

// Done is closed once the read loop has exited.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}
