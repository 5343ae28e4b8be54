package client

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pocketdesk/pocketdesk/internal/protocol"
)

// NormalizeHost turns user input (bare host, host:port, or full URL) into an
// http(s) origin. A missing scheme defaults to http, a missing port to the
// well-known pairing port.
func NormalizeHost(host string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("empty host")
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", host, err)
	}
	switch u.Scheme {
	case "http", "https":
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("invalid host %q", host)
	}
	if u.Port() == "" {
		u.Host = fmt.Sprintf("%s:%d", u.Hostname(), protocol.DefaultPairingPort)
	}
	return u.Scheme + "://" + u.Host, nil
}

// CanonicalBaseURL strips trailing slashes and enforces the mobile API
// prefix, so stored credentials always address the same mount point no
// matter how the desktop spelled its response.
func CanonicalBaseURL(raw string) string {
	raw = strings.TrimRight(raw, "/")
	if !strings.HasSuffix(raw, protocol.APIPrefix) {
		raw += protocol.APIPrefix
	}
	return raw
}

// CanonicalWSURL canonicalizes the realtime endpoint. When the desktop
// omitted it, the base URL is reused with its scheme swapped to ws(s).
func CanonicalWSURL(raw, baseURL string) string {
	if raw == "" {
		raw = baseURL
	}
	raw = CanonicalBaseURL(raw)
	switch {
	case strings.HasPrefix(raw, "https://"):
		raw = "wss://" + strings.TrimPrefix(raw, "https://")
	case strings.HasPrefix(raw, "http://"):
		raw = "ws://" + strings.TrimPrefix(raw, "http://")
	}
	return raw
}
