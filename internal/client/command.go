package client

import (
	"context"
	"fmt"

	"github.com/pocketdesk/pocketdesk/internal/protocol"
	"github.com/pocketdesk/pocketdesk/internal/shared/id"
)

// SendCommand dispatches an action request and returns the desktop's
// result. The request is validated before it leaves and the result before
// it is returned; a status of "failed" is the caller's problem, not a
// connection problem.
func (c *Client) SendCommand(ctx context.Context, actionType string, payload map[string]any) (*protocol.CommandResult, error) {
	creds, err := c.requireCreds()
	if err != nil {
		return nil, err
	}

	cmd := protocol.Command{
		Version:    protocol.Version,
		ActionID:   id.NewActionID().String(),
		ActionType: actionType,
		Payload:    payload,
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("command rate limit: %w", err)
	}

	resp, err := c.resty.R().
		SetContext(ctx).
		SetAuthToken(creds.Token).
		SetBody(cmd).
		Post(creds.BaseURL + "/actions")
	if err != nil {
		return nil, fmt.Errorf("command dispatch: %w", err)
	}

	data, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}

	var result protocol.CommandResult
	if err := protocol.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: malformed command result: %v", protocol.ErrInvalidMessage, err)
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}
