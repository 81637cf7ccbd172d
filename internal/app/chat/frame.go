package chat

import (
	"bytes"
	"time"

	json "github.com/goccy/go-json"
)

// Frame is one chat message on the wire. Seq starts at 1 per channel.
type Frame struct {
	Seq    uint64 `json:"seq"`
	Text   string `json:"text"`
	SentAt int64  `json:"sent_at,omitempty"`
}

func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// Decode parses a frame. Payloads that are not JSON objects are taken as bare
// text from peers that do not frame their messages; they carry Seq 0.
func Decode(b []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Frame{Text: string(b)}, nil
	}
	var f Frame
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func (f Frame) Time() time.Time {
	if f.SentAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(f.SentAt)
}
