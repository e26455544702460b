package telephony

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Media stream frames follow the Twilio Media Streams wire protocol:
// JSON messages over WebSocket with base64-encoded audio payloads.

// StreamEvent is the "event" discriminator on a stream frame.
type StreamEvent string

const (
	StreamEventConnected StreamEvent = "connected"
	StreamEventStart     StreamEvent = "start"
	StreamEventMedia     StreamEvent = "media"
	StreamEventStop      StreamEvent = "stop"
	StreamEventMark      StreamEvent = "mark"
)

// StreamFrame is one inbound message on a media stream connection.
type StreamFrame struct {
	Event     StreamEvent `json:"event"`
	StreamSID string      `json:"streamSid,omitempty"`

	Start *StreamStart `json:"start,omitempty"`
	Media *StreamMedia `json:"media,omitempty"`
	Mark  *StreamMark  `json:"mark,omitempty"`
}

// StreamStart carries the metadata of a newly opened stream.
type StreamStart struct {
	StreamSID  string            `json:"streamSid"`
	CallSID    string            `json:"callSid"`
	Parameters map[string]string `json:"customParameters,omitempty"`
}

// StreamMedia carries one base64-encoded audio chunk.
type StreamMedia struct {
	Payload string `json:"payload"`
}

// StreamMark signals that previously sent audio finished playing.
type StreamMark struct {
	Name string `json:"name"`
}

// ParseStreamFrame decodes one WebSocket text message.
func ParseStreamFrame(data []byte) (*StreamFrame, error) {
	var frame StreamFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("telephony: malformed stream frame: %w", err)
	}
	if frame.Event == "" {
		return nil, fmt.Errorf("telephony: stream frame missing event")
	}
	return &frame, nil
}

// AudioPayload decodes the frame's media payload. Returns nil for
// frames without media.
func (f *StreamFrame) AudioPayload() ([]byte, error) {
	if f.Media == nil || f.Media.Payload == "" {
		return nil, nil
	}
	audio, err := base64.StdEncoding.DecodeString(f.Media.Payload)
	if err != nil {
		return nil, fmt.Errorf("telephony: bad media payload: %w", err)
	}
	return audio, nil
}

// MediaFrame encodes an outbound audio chunk for the stream.
func MediaFrame(streamSID string, audio []byte) ([]byte, error) {
	return json.Marshal(StreamFrame{
		Event:     StreamEventMedia,
		StreamSID: streamSID,
		Media:     &StreamMedia{Payload: base64.StdEncoding.EncodeToString(audio)},
	})
}

// MarkFrame encodes a playback marker; the carrier echoes it back as a
// mark event once audio sent before it has played out.
func MarkFrame(streamSID, name string) ([]byte, error) {
	return json.Marshal(StreamFrame{
		Event:     StreamEventMark,
		StreamSID: streamSID,
		Mark:      &StreamMark{Name: name},
	})
}
