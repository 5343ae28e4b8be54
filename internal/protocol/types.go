package protocol

import (
	"encoding/json"
	"time"
)

// Version is the current protocol version. Both sides pin it; neither side
// guesses compatibility across versions.
const Version = 1

// VersionHeader carries the protocol version on every authenticated request.
const VersionHeader = "X-PocketDesk-Protocol"

// APIPrefix is the mobile API mount point on the desktop host.
const APIPrefix = "/mobile/v1"

// DefaultPairingPort is used when the pairing host omits a port.
const DefaultPairingPort = 8765

// Event types emitted by the desktop source.
const (
	EventWorkspaceStateChanged = "workspace.state_changed"
	EventTerminalSummary       = "terminal.state_summary"
	EventSessionSummary        = "provider_session.state_summary"
	EventSnapshotUpdated       = "snapshot.updated"
	EventResnapshotRequired    = "sync.resnapshot_required"
)

// Action types accepted by the desktop.
const (
	ActionWorkspaceActivate = "workspace.activate"
	ActionTerminalInput     = "terminal.input"
	ActionSessionStart      = "session.start"
	ActionSessionResume     = "session.resume"
	ActionSessionCancel     = "session.cancel"
)

// Command result statuses.
const (
	StatusAccepted  = "accepted"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Snapshot is a full point-in-time serialization of the desktop workspace
// tree. The client never mutates one; it only replaces its mirror wholesale.
type Snapshot struct {
	Version     int           `json:"version"`
	Sequence    uint64        `json:"sequence"`
	GeneratedAt time.Time     `json:"generatedAt"`
	State       WorkspaceTree `json:"state"`
}

// Event is an incremental update. Payload shape depends on EventType and is
// decoded by the consumer, not here.
type Event struct {
	Version     int             `json:"version"`
	Sequence    uint64          `json:"sequence"`
	EventType   string          `json:"eventType"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Command requests a state change on the desktop. ActionID is
// client-generated, unique per attempt, used for tracing only.
type Command struct {
	Version    int            `json:"version"`
	ActionID   string         `json:"actionId"`
	ActionType string         `json:"actionType"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// CommandResult is the desktop's answer to a Command.
type CommandResult struct {
	Version  int             `json:"version"`
	ActionID string          `json:"actionId"`
	Status   string          `json:"status"`
	Sequence uint64          `json:"sequence"`
	Error    string          `json:"error,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Credentials identify a paired device. Issued once by the pairing exchange
// and persisted opaquely by the credential store.
type Credentials struct {
	DeviceID string `json:"deviceId"`
	Token    string `json:"token"`
	BaseURL  string `json:"baseUrl"`
	WSURL    string `json:"wsUrl"`
}

// WorkspaceTree is the state carried inside a Snapshot: an ordered list of
// workspaces, the id of the active tab, and an optional utility overlay
// indicator (settings, pairing screen, etc.).
type WorkspaceTree struct {
	Workspaces     []Workspace `json:"workspaces"`
	ActiveTabID    string      `json:"activeTabId,omitempty"`
	UtilityOverlay string      `json:"utilityOverlay,omitempty"`
}

// Workspace is one open project on the desktop.
type Workspace struct {
	ID               string     `json:"id"`
	Name             string     `json:"name,omitempty"`
	ProjectPath      string     `json:"projectPath,omitempty"`
	ActiveTerminalID string     `json:"activeTerminalId,omitempty"`
	Terminals        []Terminal `json:"terminals,omitempty"`
}

// Terminal is a terminal tab inside a workspace. It may host split panes
// and an attached coding-agent session.
type Terminal struct {
	ID           string      `json:"id"`
	Title        string      `json:"title,omitempty"`
	ActivePaneID string      `json:"activePaneId,omitempty"`
	Panes        []Pane      `json:"panes,omitempty"`
	Session      *SessionRef `json:"session,omitempty"`
}

// Pane is a split within a terminal tab. EmbeddedTerminalID points at the
// pty-backed terminal rendered inside the pane, when there is one.
type Pane struct {
	ID                 string      `json:"id"`
	EmbeddedTerminalID string      `json:"embeddedTerminalId,omitempty"`
	Session            *SessionRef `json:"session,omitempty"`
}

// SessionRef points at a coding-agent session attached to a terminal or pane.
type SessionRef struct {
	SessionID   string `json:"sessionId,omitempty"`
	ProjectPath string `json:"projectPath,omitempty"`
	Status      string `json:"status,omitempty"`
}
