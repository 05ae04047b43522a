package hub

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/abrezinsky/planningpoker/internal/models"
)

// Frame is an event encoded once for every transport
type Frame struct {
	Type models.EventType
	sse  []byte
	ws   []byte
}

// NewFrame encodes evt as an SSE frame and a WebSocket JSON envelope
func NewFrame(evt models.Event) (Frame, error) {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return Frame{}, err
	}
	envelope, err := json.Marshal(models.WSMessage{Type: evt.Type, Payload: json.RawMessage(data)})
	if err != nil {
		return Frame{}, err
	}

	var b bytes.Buffer
	b.WriteString("event: ")
	b.WriteString(string(evt.Type))
	b.WriteString("\ndata: ")
	b.Write(data)
	b.WriteByte('\n')
	if evt.ID != "" {
		b.WriteString("id: ")
		b.WriteString(evt.ID)
		b.WriteByte('\n')
	}
	if evt.Retry > 0 {
		b.WriteString("retry: ")
		b.WriteString(strconv.Itoa(evt.Retry))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	return Frame{Type: evt.Type, sse: b.Bytes(), ws: envelope}, nil
}

// SSE returns the text/event-stream encoding
func (f Frame) SSE() []byte { return f.sse }

// JSON returns the WebSocket envelope
func (f Frame) JSON() []byte { return f.ws }
