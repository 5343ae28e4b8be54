// Package engine owns the connection lifecycle between the companion and
// the desktop: pairing, snapshot installs, the realtime stream, and
// recovery when any of it fails.
//
// The engine is the sole writer of the mirror store and the sole owner of
// the websocket. Screens call Pair, SendCommand, and the read accessors;
// they never touch the socket.
//
// Recovery policy:
//   - Transport failures retry on an exponential backoff schedule. One
//     retry timer may be pending at a time.
//   - 30 seconds of uninterrupted connection resets the backoff, so a
//     brief flap after long uptime starts from a one second delay again.
//   - Staleness events trigger a single in-flight snapshot re-fetch;
//     concurrent triggers coalesce into a no-op.
//   - A 401 anywhere is a one-way trapdoor: timers and socket torn down,
//     credentials cleared everywhere, mirror reset, and the same message
//     delivered to the connection and pairing status channels. The user
//     must re-pair.
//
// Cancellation is cooperative. Every asynchronous continuation re-checks
// the engine generation before applying its result, so a slow fetch that
// lands after teardown is discarded rather than applied against a new
// session.
package engine
