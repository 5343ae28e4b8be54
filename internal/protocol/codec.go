package protocol

import (
	"github.com/bytedance/sonic"
)

// MaxFrameSize bounds any single wire frame. Snapshots of large workspaces
// stay well under this; anything bigger is a malfunctioning peer.
const MaxFrameSize = 1 * 1024 * 1024

var codec = sonic.ConfigStd

// Marshal encodes a protocol message to JSON.
func Marshal(v any) ([]byte, error) {
	return codec.Marshal(v)
}

// Unmarshal decodes JSON into a protocol message. Size is checked first;
// parsing a hostile multi-megabyte frame is more expensive than refusing it.
func Unmarshal(data []byte, v any) error {
	if len(data) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	return codec.Unmarshal(data, v)
}

// DecodeEvent parses and validates a realtime frame.
func DecodeEvent(data []byte) (*Event, error) {
	var ev Event
	if err := Unmarshal(data, &ev); err != nil {
		return nil, invalid("malformed event frame: %v", err)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}

// DecodeSnapshot parses and validates a snapshot body.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := Unmarshal(data, &snap); err != nil {
		return nil, invalid("malformed snapshot: %v", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}
