package protocol

// Validate checks a Snapshot against the schema. Zero sequence is legal: a
// freshly started desktop begins numbering at 0.
func (s *Snapshot) Validate() error {
	if s.Version != Version {
		return versionError(s.Version)
	}
	if s.GeneratedAt.IsZero() {
		return invalid("snapshot missing generatedAt")
	}
	for i, ws := range s.State.Workspaces {
		if ws.ID == "" {
			return invalid("workspace %d missing id", i)
		}
		for j, term := range ws.Terminals {
			if term.ID == "" {
				return invalid("workspace %s terminal %d missing id", ws.ID, j)
			}
			for k, pane := range term.Panes {
				if pane.ID == "" {
					return invalid("terminal %s pane %d missing id", term.ID, k)
				}
			}
		}
	}
	return nil
}

// Validate checks an Event against the schema.
func (e *Event) Validate() error {
	if e.Version != Version {
		return versionError(e.Version)
	}
	if e.EventType == "" {
		return invalid("event missing eventType")
	}
	if e.GeneratedAt.IsZero() {
		return invalid("event %s missing generatedAt", e.EventType)
	}
	return nil
}

// Validate checks an outbound Command. The desktop performs its own
// validation too; this catches client bugs before they reach the wire.
func (c *Command) Validate() error {
	if c.Version != Version {
		return versionError(c.Version)
	}
	if c.ActionID == "" {
		return invalid("command missing actionId")
	}
	if c.ActionType == "" {
		return invalid("command missing actionType")
	}
	return nil
}

// Validate checks a CommandResult.
func (r *CommandResult) Validate() error {
	if r.Version != Version {
		return versionError(r.Version)
	}
	if r.ActionID == "" {
		return invalid("command result missing actionId")
	}
	switch r.Status {
	case StatusAccepted, StatusCompleted, StatusFailed:
	default:
		return invalid("command result has unknown status %q", r.Status)
	}
	return nil
}

// Validate checks pairing-issued credentials.
func (c *Credentials) Validate() error {
	if c.DeviceID == "" {
		return invalid("credentials missing deviceId")
	}
	if c.Token == "" {
		return invalid("credentials missing token")
	}
	if c.BaseURL == "" {
		return invalid("credentials missing baseUrl")
	}
	if c.WSURL == "" {
		return invalid("credentials missing wsUrl")
	}
	return nil
}
