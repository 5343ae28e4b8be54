package client

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/pocketdesk/pocketdesk/internal/protocol"
)

const (
	requestTimeout   = 15 * time.Second
	handshakeTimeout = 10 * time.Second

	// Command dispatch ceiling. Screen taps burst; sustained flooding is a
	// client bug the desktop should never have to absorb.
	commandRPS   = 10
	commandBurst = 20
)

// Client speaks the mobile sync protocol to one desktop host.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	dialer  *websocket.Dialer

	mu    sync.RWMutex
	creds *protocol.Credentials
}

// Option customizes a Client.
type Option func(*Client)

// WithCredentials sets stored credentials at construction.
func WithCredentials(creds *protocol.Credentials) Option {
	return func(c *Client) { c.creds = creds }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.resty.SetTimeout(d) }
}

// New builds a client with transport-level retries for transient network
// failures. Protocol and auth errors are never retried here; retrying a
// structurally wrong payload or a dead token cannot succeed.
func New(opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New().
		SetTimeout(requestTimeout).
		SetHeader("User-Agent", "PocketDesk/1.0").
		SetHeader(protocol.VersionHeader, strconv.Itoa(protocol.Version)).
		SetTransport(retryClient.HTTPClient.Transport)

	c := &Client{
		resty:   restyClient,
		limiter: rate.NewLimiter(rate.Limit(commandRPS), commandBurst),
		dialer:  &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetCredentials installs credentials for authenticated calls.
func (c *Client) SetCredentials(creds *protocol.Credentials) {
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()
}

// Credentials returns the installed credentials, or nil when unpaired.
func (c *Client) Credentials() *protocol.Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

func (c *Client) requireCreds() (*protocol.Credentials, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.creds == nil {
		return nil, fmt.Errorf("not paired: no credentials installed")
	}
	return c.creds, nil
}

// envelope is the REST response wrapper used by every desktop endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// decodeEnvelope classifies a REST response. Non-2xx becomes a RequestError;
// a 2xx without a success payload is a protocol error, not something to
// retry.
func decodeEnvelope(resp *resty.Response) (json.RawMessage, error) {
	if resp.IsError() {
		var env envelope
		msg := ""
		if err := protocol.Unmarshal(resp.Body(), &env); err == nil {
			msg = env.Error
		}
		return nil, &RequestError{Status: resp.StatusCode(), Message: msg}
	}
	var env envelope
	if err := protocol.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("%w: malformed response envelope: %v", protocol.ErrInvalidMessage, err)
	}
	if !env.Success || len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: response missing success payload: %s", protocol.ErrInvalidMessage, env.Error)
	}
	return env.Data, nil
}
