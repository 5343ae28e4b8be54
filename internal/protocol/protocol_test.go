package protocol

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSnapshot() *Snapshot {
	return &Snapshot{
		Version:     Version,
		Sequence:    42,
		GeneratedAt: time.Now(),
		State: WorkspaceTree{
			ActiveTabID: "ws-1",
			Workspaces: []Workspace{
				{
					ID: "ws-1",
					Terminals: []Terminal{
						{ID: "term-1", Panes: []Pane{{ID: "pane-1"}}},
					},
				},
			},
		},
	}
}

func TestSnapshotValidate(t *testing.T) {
	snap := validSnapshot()
	assert.NoError(t, snap.Validate())

	wrongVersion := validSnapshot()
	wrongVersion.Version = 99
	err := wrongVersion.Validate()
	assert.ErrorIs(t, err, ErrVersionMismatch)

	missingID := validSnapshot()
	missingID.State.Workspaces[0].ID = ""
	assert.ErrorIs(t, missingID.Validate(), ErrInvalidMessage)

	noTimestamp := validSnapshot()
	noTimestamp.GeneratedAt = time.Time{}
	assert.ErrorIs(t, noTimestamp.Validate(), ErrInvalidMessage)
}

func TestEventValidate(t *testing.T) {
	ev := &Event{Version: Version, Sequence: 1, EventType: EventTerminalSummary, GeneratedAt: time.Now()}
	assert.NoError(t, ev.Validate())

	assert.ErrorIs(t, (&Event{Version: 2, EventType: "x", GeneratedAt: time.Now()}).Validate(), ErrVersionMismatch)
	assert.ErrorIs(t, (&Event{Version: Version, GeneratedAt: time.Now()}).Validate(), ErrInvalidMessage)
}

func TestCommandValidate(t *testing.T) {
	cmd := &Command{Version: Version, ActionID: "act_1", ActionType: ActionWorkspaceActivate}
	assert.NoError(t, cmd.Validate())

	assert.ErrorIs(t, (&Command{Version: Version, ActionType: "x"}).Validate(), ErrInvalidMessage)
	assert.ErrorIs(t, (&Command{Version: Version, ActionID: "act_1"}).Validate(), ErrInvalidMessage)
}

func TestCommandResultValidate(t *testing.T) {
	for _, status := range []string{StatusAccepted, StatusCompleted, StatusFailed} {
		r := &CommandResult{Version: Version, ActionID: "act_1", Status: status}
		assert.NoError(t, r.Validate())
	}
	r := &CommandResult{Version: Version, ActionID: "act_1", Status: "maybe"}
	assert.ErrorIs(t, r.Validate(), ErrInvalidMessage)
}

func TestCredentialsValidate(t *testing.T) {
	creds := &Credentials{DeviceID: "d", Token: "t", BaseURL: "http://x/mobile/v1", WSURL: "ws://x/mobile/v1"}
	assert.NoError(t, creds.Validate())

	missing := &Credentials{DeviceID: "d", Token: "", BaseURL: "b", WSURL: "w"}
	assert.ErrorIs(t, missing.Validate(), ErrInvalidMessage)
}

func TestDecodeEvent(t *testing.T) {
	frame := []byte(`{"version":1,"sequence":7,"eventType":"terminal.state_summary","generatedAt":"2026-08-27T10:00:00Z","payload":{"activeTerminalId":"t1"}}`)
	ev, err := DecodeEvent(frame)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), ev.Sequence)
	assert.Equal(t, EventTerminalSummary, ev.EventType)

	_, err = DecodeEvent([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = DecodeEvent([]byte(`{"version":3,"sequence":7,"eventType":"x","generatedAt":"2026-08-27T10:00:00Z"}`))
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestDecodeSnapshotRoundTrip(t *testing.T) {
	data, err := Marshal(validSnapshot())
	require.NoError(t, err)

	snap, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), snap.Sequence)
	assert.Equal(t, "ws-1", snap.State.ActiveTabID)
}

func TestUnmarshalRejectsOversizedFrames(t *testing.T) {
	huge := []byte(`{"pad":"` + strings.Repeat("x", MaxFrameSize) + `"}`)
	var v map[string]any
	assert.ErrorIs(t, Unmarshal(huge, &v), ErrFrameTooLarge)
}
