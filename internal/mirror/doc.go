// Package mirror holds the client's local reconstruction of desktop
// workspace state and the reducer that keeps it consistent.
//
// The reducer is a pure function of (state, event): it never touches the
// network and never blocks. Events below the sequence watermark are dropped
// unconditionally, which makes the engine safe under redelivery and
// reordering. Structural events the desktop cannot express incrementally
// (snapshot.updated, sync.resnapshot_required) raise a refresh flag instead
// of patching; the connection layer answers with a full snapshot fetch.
//
// Store is the single-writer container around the reducer. Screens read it
// through accessors and subscribe for changes; only the connection layer
// writes to it.
package mirror
