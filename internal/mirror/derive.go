package mirror

import (
	"github.com/pocketdesk/pocketdesk/internal/protocol"
)

// Derive computes the active context structurally from a workspace tree.
// Every step falls back rather than failing: the mirror always carries a
// best-effort focus even when the desktop left fields unset.
func Derive(tree *protocol.WorkspaceTree) ActiveContext {
	ctx := ActiveContext{WorkspaceCount: len(tree.Workspaces)}
	for i := range tree.Workspaces {
		ctx.TerminalCount += len(tree.Workspaces[i].Terminals)
	}

	ws := activeWorkspace(tree)
	if ws == nil {
		return ctx
	}
	ctx.ActiveWorkspaceID = ws.ID
	ctx.ProjectPath = ws.ProjectPath

	term := activeTerminal(ws)
	if term == nil {
		return ctx
	}
	ctx.ActiveTerminalID = term.ID

	pane := activePane(term)
	if pane != nil {
		ctx.ActiveEmbeddedTerminalID = pane.EmbeddedTerminalID
	}

	// Session id and project path resolve through the same chain: the
	// terminal's attached session wins, then the pane's, then the workspace.
	if term.Session != nil && term.Session.SessionID != "" {
		ctx.ActiveSessionID = term.Session.SessionID
		if term.Session.ProjectPath != "" {
			ctx.ProjectPath = term.Session.ProjectPath
		}
	} else if pane != nil && pane.Session != nil && pane.Session.SessionID != "" {
		ctx.ActiveSessionID = pane.Session.SessionID
		if pane.Session.ProjectPath != "" {
			ctx.ProjectPath = pane.Session.ProjectPath
		}
	}
	return ctx
}

// activeWorkspace matches the stored active tab, falling back to the first
// workspace when the id is absent or stale.
func activeWorkspace(tree *protocol.WorkspaceTree) *protocol.Workspace {
	if len(tree.Workspaces) == 0 {
		return nil
	}
	if tree.ActiveTabID != "" {
		for i := range tree.Workspaces {
			if tree.Workspaces[i].ID == tree.ActiveTabID {
				return &tree.Workspaces[i]
			}
		}
	}
	return &tree.Workspaces[0]
}

func activeTerminal(ws *protocol.Workspace) *protocol.Terminal {
	if len(ws.Terminals) == 0 {
		return nil
	}
	if ws.ActiveTerminalID != "" {
		for i := range ws.Terminals {
			if ws.Terminals[i].ID == ws.ActiveTerminalID {
				return &ws.Terminals[i]
			}
		}
	}
	return &ws.Terminals[0]
}

// activePane prefers the terminal's recorded active pane, then the first
// pane that actually hosts an embedded terminal.
func activePane(term *protocol.Terminal) *protocol.Pane {
	if term.ActivePaneID != "" {
		for i := range term.Panes {
			if term.Panes[i].ID == term.ActivePaneID {
				return &term.Panes[i]
			}
		}
	}
	for i := range term.Panes {
		if term.Panes[i].EmbeddedTerminalID != "" {
			return &term.Panes[i]
		}
	}
	return nil
}
