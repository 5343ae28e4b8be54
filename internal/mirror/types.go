package mirror

import (
	"github.com/pocketdesk/pocketdesk/internal/protocol"
)

// ActiveContext summarizes what is focused on the desktop right now. It is
// derived from the workspace tree when a snapshot installs, then patched by
// summary events between snapshots.
type ActiveContext struct {
	ActiveWorkspaceID        string `json:"activeWorkspaceId,omitempty"`
	ActiveTerminalID         string `json:"activeTerminalId,omitempty"`
	ActiveEmbeddedTerminalID string `json:"activeEmbeddedTerminalId,omitempty"`
	ActiveSessionID          string `json:"activeSessionId,omitempty"`
	ProjectPath              string `json:"projectPath,omitempty"`
	WorkspaceCount           int    `json:"workspaceCount"`
	TerminalCount            int    `json:"terminalCount"`
}

// Mirror is the client-local reconstruction of desktop state. Instances are
// treated as immutable: the reducer returns a new Mirror on change and the
// same pointer when an event turns out to be a no-op.
type Mirror struct {
	Workspaces        []protocol.Workspace `json:"workspaces"`
	ActiveWorkspaceID string               `json:"activeWorkspaceId,omitempty"`
	UtilityOverlay    string               `json:"utilityOverlay,omitempty"`
	Active            ActiveContext        `json:"activeContext"`
}

// State couples the mirror with its sequence watermark and the pending
// refresh flag. The watermark is the highest sequence accepted so far;
// snapshots and events share one numbering space.
type State struct {
	Mirror       *Mirror
	Watermark    uint64
	NeedsRefresh bool
}

// Empty returns the state before any snapshot has installed.
func Empty() State {
	return State{Mirror: &Mirror{}}
}

// Outcome reports what the reducer did with an event.
type Outcome int

const (
	// OutcomeDropped: sequence at or below the watermark, nothing changed.
	OutcomeDropped Outcome = iota
	// OutcomeApplied: the mirror changed.
	OutcomeApplied
	// OutcomeNoChange: accepted, watermark advanced, mirror identical.
	OutcomeNoChange
	// OutcomeRefreshRequested: accepted, mirror untouched, refresh flag raised.
	OutcomeRefreshRequested
	// OutcomeIgnored: accepted but the event type is unknown to this client.
	OutcomeIgnored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDropped:
		return "dropped"
	case OutcomeApplied:
		return "applied"
	case OutcomeNoChange:
		return "no_change"
	case OutcomeRefreshRequested:
		return "refresh_requested"
	case OutcomeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}
