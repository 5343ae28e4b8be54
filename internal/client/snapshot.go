package client

import (
	"context"
	"fmt"

	"github.com/pocketdesk/pocketdesk/internal/protocol"
)

// FetchSnapshot performs the authenticated full-state fetch. The body is
// schema-validated; a snapshot that does not validate is rejected, never
// installed on guesswork.
func (c *Client) FetchSnapshot(ctx context.Context) (*protocol.Snapshot, error) {
	creds, err := c.requireCreds()
	if err != nil {
		return nil, err
	}

	resp, err := c.resty.R().
		SetContext(ctx).
		SetAuthToken(creds.Token).
		Get(creds.BaseURL + "/state/snapshot")
	if err != nil {
		return nil, fmt.Errorf("snapshot fetch: %w", err)
	}

	data, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeSnapshot(data)
}
