package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pocketdesk/pocketdesk/internal/protocol"
)

func TestDeriveEmptyTree(t *testing.T) {
	ctx := Derive(&protocol.WorkspaceTree{})
	assert.Equal(t, ActiveContext{}, ctx)
}

func TestDeriveFallsBackToFirstWorkspace(t *testing.T) {
	tree := protocol.WorkspaceTree{
		ActiveTabID: "ws-gone",
		Workspaces: []protocol.Workspace{
			{ID: "ws-1", ProjectPath: "/p1"},
			{ID: "ws-2", ProjectPath: "/p2"},
		},
	}
	ctx := Derive(&tree)
	assert.Equal(t, "ws-1", ctx.ActiveWorkspaceID)
	assert.Equal(t, "/p1", ctx.ProjectPath)
	assert.Equal(t, 2, ctx.WorkspaceCount)
}

func TestDeriveMatchesActiveTab(t *testing.T) {
	tree := protocol.WorkspaceTree{
		ActiveTabID: "ws-2",
		Workspaces: []protocol.Workspace{
			{ID: "ws-1"},
			{ID: "ws-2", ProjectPath: "/p2"},
		},
	}
	ctx := Derive(&tree)
	assert.Equal(t, "ws-2", ctx.ActiveWorkspaceID)
	assert.Equal(t, "/p2", ctx.ProjectPath)
}

func TestDeriveTerminalAndPaneFallbacks(t *testing.T) {
	tree := protocol.WorkspaceTree{
		Workspaces: []protocol.Workspace{
			{
				ID:          "ws-1",
				ProjectPath: "/workspace",
				// ActiveTerminalID points nowhere; first terminal wins.
				ActiveTerminalID: "term-gone",
				Terminals: []protocol.Terminal{
					{
						ID: "term-1",
						// No active pane recorded; first pane with an
						// embedded terminal wins.
						Panes: []protocol.Pane{
							{ID: "pane-1"},
							{ID: "pane-2", EmbeddedTerminalID: "embed-2"},
						},
					},
				},
			},
		},
	}
	ctx := Derive(&tree)
	assert.Equal(t, "term-1", ctx.ActiveTerminalID)
	assert.Equal(t, "embed-2", ctx.ActiveEmbeddedTerminalID)
	assert.Equal(t, "/workspace", ctx.ProjectPath)
	assert.Equal(t, 1, ctx.TerminalCount)
}

func TestDeriveSessionChain(t *testing.T) {
	tests := []struct {
		name        string
		terminal    protocol.Terminal
		wantSession string
		wantPath    string
	}{
		{
			name: "terminal session wins",
			terminal: protocol.Terminal{
				ID:      "term-1",
				Session: &protocol.SessionRef{SessionID: "sess-term", ProjectPath: "/from-term"},
				Panes: []protocol.Pane{
					{ID: "pane-1", Session: &protocol.SessionRef{SessionID: "sess-pane", ProjectPath: "/from-pane"}},
				},
			},
			wantSession: "sess-term",
			wantPath:    "/from-term",
		},
		{
			name: "pane session next",
			terminal: protocol.Terminal{
				ID: "term-1",
				Panes: []protocol.Pane{
					{ID: "pane-1", EmbeddedTerminalID: "e1",
						Session: &protocol.SessionRef{SessionID: "sess-pane", ProjectPath: "/from-pane"}},
				},
			},
			wantSession: "sess-pane",
			wantPath:    "/from-pane",
		},
		{
			name: "workspace path is the floor",
			terminal: protocol.Terminal{
				ID: "term-1",
			},
			wantSession: "",
			wantPath:    "/from-workspace",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := protocol.WorkspaceTree{
				Workspaces: []protocol.Workspace{
					{ID: "ws-1", ProjectPath: "/from-workspace", Terminals: []protocol.Terminal{tt.terminal}},
				},
			}
			ctx := Derive(&tree)
			assert.Equal(t, tt.wantSession, ctx.ActiveSessionID)
			assert.Equal(t, tt.wantPath, ctx.ProjectPath)
		})
	}
}

func TestDeriveSessionWithoutPathKeepsWorkspacePath(t *testing.T) {
	tree := protocol.WorkspaceTree{
		Workspaces: []protocol.Workspace{
			{
				ID:          "ws-1",
				ProjectPath: "/workspace",
				Terminals: []protocol.Terminal{
					{ID: "term-1", Session: &protocol.SessionRef{SessionID: "sess-1"}},
				},
			},
		},
	}
	ctx := Derive(&tree)
	assert.Equal(t, "sess-1", ctx.ActiveSessionID)
	assert.Equal(t, "/workspace", ctx.ProjectPath)
}
