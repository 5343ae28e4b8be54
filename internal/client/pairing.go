package client

import (
	"context"
	"fmt"

	"github.com/pocketdesk/pocketdesk/internal/protocol"
)

// pairRequest is the pairing exchange body.
type pairRequest struct {
	PairCode   string `json:"pairCode"`
	DeviceName string `json:"deviceName"`
}

// pairData is the success payload of the pairing exchange.
type pairData struct {
	Version  int    `json:"version"`
	DeviceID string `json:"deviceId"`
	Token    string `json:"token"`
	BaseURL  string `json:"baseUrl"`
	WSURL    string `json:"wsUrl"`
}

// Pair exchanges a pairing code for device credentials. The returned
// credentials are canonicalized and installed on the client; persisting
// them is the caller's business.
func (c *Client) Pair(ctx context.Context, host, pairCode, deviceName string) (*protocol.Credentials, error) {
	origin, err := NormalizeHost(host)
	if err != nil {
		return nil, err
	}

	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(pairRequest{PairCode: pairCode, DeviceName: deviceName}).
		Post(origin + protocol.APIPrefix + "/pair")
	if err != nil {
		return nil, fmt.Errorf("pairing request: %w", err)
	}

	data, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}

	var pd pairData
	if err := protocol.Unmarshal(data, &pd); err != nil {
		return nil, fmt.Errorf("%w: malformed pairing payload: %v", protocol.ErrInvalidMessage, err)
	}
	if pd.Version != protocol.Version {
		return nil, fmt.Errorf("%w: desktop speaks version %d, this client speaks %d",
			protocol.ErrVersionMismatch, pd.Version, protocol.Version)
	}

	baseURL := pd.BaseURL
	if baseURL == "" {
		baseURL = origin
	}
	creds := &protocol.Credentials{
		DeviceID: pd.DeviceID,
		Token:    pd.Token,
		BaseURL:  CanonicalBaseURL(baseURL),
	}
	creds.WSURL = CanonicalWSURL(pd.WSURL, creds.BaseURL)

	if err := creds.Validate(); err != nil {
		return nil, err
	}
	c.SetCredentials(creds)
	return creds, nil
}
