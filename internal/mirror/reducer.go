package mirror

import (
	"github.com/pocketdesk/pocketdesk/internal/protocol"
)

// contextPatch is the field subset a partial-update event may carry.
// Pointer fields distinguish "absent" from "set to empty": absent fields
// leave the mirror untouched.
type contextPatch struct {
	ActiveWorkspaceID        *string `json:"activeWorkspaceId"`
	ActiveTabID              *string `json:"activeTabId"`
	UtilityOverlay           *string `json:"utilityOverlay"`
	ActiveTerminalID         *string `json:"activeTerminalId"`
	ActiveEmbeddedTerminalID *string `json:"activeEmbeddedTerminalId"`
	ActiveSessionID          *string `json:"activeSessionId"`
	ProjectPath              *string `json:"projectPath"`
	WorkspaceCount           *int    `json:"workspaceCount"`
	TerminalCount            *int    `json:"terminalCount"`
}

// Apply folds one event into the state. It is pure: no I/O, no clocks.
// Events at or below the watermark are dropped before dispatch, whatever
// their payload claims; the stream may redeliver and reorder.
func Apply(s State, ev *protocol.Event) (State, Outcome) {
	if ev.Sequence <= s.Watermark {
		return s, OutcomeDropped
	}
	s.Watermark = ev.Sequence

	switch ev.EventType {
	case protocol.EventSnapshotUpdated, protocol.EventResnapshotRequired:
		// Structural truth changed in ways too broad to patch. The mirror
		// stays as-is until a fresh snapshot replaces it.
		s.NeedsRefresh = true
		return s, OutcomeRefreshRequested

	case protocol.EventWorkspaceStateChanged:
		patch, err := decodePatch(ev.Payload)
		if err != nil {
			return s, OutcomeNoChange
		}
		return patchMirror(s, patch, fullPatchFields)

	case protocol.EventTerminalSummary:
		patch, err := decodePatch(ev.Payload)
		if err != nil {
			return s, OutcomeNoChange
		}
		return patchMirror(s, patch, terminalSummaryFields)

	case protocol.EventSessionSummary:
		patch, err := decodePatch(ev.Payload)
		if err != nil {
			return s, OutcomeNoChange
		}
		return patchMirror(s, patch, sessionSummaryFields)

	default:
		// Unknown types are accepted so redelivery does not reprocess them;
		// anything they carried is reconciled by the next snapshot.
		return s, OutcomeIgnored
	}
}

// fieldMask limits which patch fields an event type may touch.
type fieldMask uint16

const (
	fieldWorkspace fieldMask = 1 << iota
	fieldOverlay
	fieldTerminal
	fieldEmbedded
	fieldSession
	fieldProjectPath
	fieldCounts
)

const (
	fullPatchFields       = fieldWorkspace | fieldOverlay | fieldTerminal | fieldEmbedded | fieldSession | fieldProjectPath | fieldCounts
	terminalSummaryFields = fieldWorkspace | fieldTerminal | fieldEmbedded
	sessionSummaryFields  = fieldWorkspace | fieldTerminal | fieldSession | fieldProjectPath
)

func decodePatch(raw []byte) (*contextPatch, error) {
	var patch contextPatch
	if len(raw) == 0 {
		return &patch, nil
	}
	if err := protocol.Unmarshal(raw, &patch); err != nil {
		return nil, err
	}
	return &patch, nil
}

// patchMirror merges the masked subset of patch fields into the mirror.
// Fields absent from the payload keep their previous values. When the merge
// changes nothing the input mirror pointer is returned unchanged.
func patchMirror(s State, patch *contextPatch, mask fieldMask) (State, Outcome) {
	next := *s.Mirror

	if mask&fieldWorkspace != 0 {
		// The desktop has emitted both spellings over time; activeTabId is
		// the tab-bar view of the same datum.
		if patch.ActiveWorkspaceID != nil {
			next.ActiveWorkspaceID = *patch.ActiveWorkspaceID
			next.Active.ActiveWorkspaceID = *patch.ActiveWorkspaceID
		} else if patch.ActiveTabID != nil {
			next.ActiveWorkspaceID = *patch.ActiveTabID
			next.Active.ActiveWorkspaceID = *patch.ActiveTabID
		}
	}
	if mask&fieldOverlay != 0 && patch.UtilityOverlay != nil {
		next.UtilityOverlay = *patch.UtilityOverlay
	}
	if mask&fieldTerminal != 0 && patch.ActiveTerminalID != nil {
		next.Active.ActiveTerminalID = *patch.ActiveTerminalID
	}
	if mask&fieldEmbedded != 0 && patch.ActiveEmbeddedTerminalID != nil {
		next.Active.ActiveEmbeddedTerminalID = *patch.ActiveEmbeddedTerminalID
	}
	if mask&fieldSession != 0 && patch.ActiveSessionID != nil {
		next.Active.ActiveSessionID = *patch.ActiveSessionID
	}
	if mask&fieldProjectPath != 0 && patch.ProjectPath != nil {
		next.Active.ProjectPath = *patch.ProjectPath
	}
	if mask&fieldCounts != 0 {
		if patch.WorkspaceCount != nil {
			next.Active.WorkspaceCount = *patch.WorkspaceCount
		}
		if patch.TerminalCount != nil {
			next.Active.TerminalCount = *patch.TerminalCount
		}
	}

	if next.ActiveWorkspaceID == s.Mirror.ActiveWorkspaceID &&
		next.UtilityOverlay == s.Mirror.UtilityOverlay &&
		next.Active == s.Mirror.Active {
		return s, OutcomeNoChange
	}
	s.Mirror = &next
	return s, OutcomeApplied
}

// Install replaces the mirror wholesale with a snapshot. The watermark takes
// the max of the snapshot sequence and the current value; it never regresses.
// Installing clears any pending refresh.
func Install(s State, snap *protocol.Snapshot) State {
	m := &Mirror{
		Workspaces:     snap.State.Workspaces,
		UtilityOverlay: snap.State.UtilityOverlay,
		Active:         Derive(&snap.State),
	}
	m.ActiveWorkspaceID = m.Active.ActiveWorkspaceID

	s.Mirror = m
	if snap.Sequence > s.Watermark {
		s.Watermark = snap.Sequence
	}
	s.NeedsRefresh = false
	return s
}
