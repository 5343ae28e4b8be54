// Package id provides prefixed ID generation for client-originated
// identifiers. Prefixes keep traces readable when ids from several sources
// interleave in desktop logs.
package id

import (
	"github.com/google/uuid"
)

// ActionID identifies one command attempt. Unique per attempt, used for
// tracing, never for dedup on the wire.
type ActionID string

const actionPrefix = "act"

// NewActionID generates a fresh action id.
func NewActionID() ActionID {
	return ActionID(actionPrefix + "_" + uuid.NewString())
}

func (id ActionID) String() string { return string(id) }
