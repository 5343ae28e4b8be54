// Package protocol defines the versioned wire protocol spoken between the
// phone companion and the desktop host.
//
// Five message shapes cross the wire: Snapshot (full workspace state),
// Event (incremental update), Command (phone-initiated action request),
// CommandResult (desktop's answer), and Credentials (issued once by the
// pairing exchange). Snapshots and events share one monotonically
// increasing sequence space per desktop source.
//
// Every message carries an explicit version field pinned to Version. A
// mismatch is a compatibility error, never coerced. Validation is
// synchronous and pure: a message that fails Validate is rejected outright.
//
// Encoding is JSON via sonic; frames above MaxFrameSize are rejected
// before parsing.
package protocol
