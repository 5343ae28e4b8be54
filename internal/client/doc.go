// Package client speaks the mobile sync protocol to a desktop host.
//
// It exposes four operations: Pair (exchange a pairing code for device
// credentials), FetchSnapshot (authenticated full-state fetch), SendCommand
// (action dispatch with a generated action id), and Connect (realtime event
// subscription over websocket).
//
// HTTP calls go through resty on a retryablehttp transport, so transient
// transport failures retry below this package while protocol and auth
// errors surface immediately. Command dispatch is rate limited; a burst of
// screen taps must not flood the desktop.
//
// Every payload is schema-validated on both send and receipt. A 401 is the
// sole trigger for auth-error classification; the connection layer above
// turns it into a full re-pair.
package client
