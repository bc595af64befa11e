package notify

import (
	"context"
	"encoding/json"
	"io"

	"varsle/models"
)

// Stream writes notifications as JSON lines to a writer. Used by the watch
// command to observe deliveries without a webhook endpoint.
type Stream struct {
	enc *json.Encoder
}

func NewStream(w io.Writer) *Stream {
	return &Stream{enc: json.NewEncoder(w)}
}

func (s *Stream) Send(_ context.Context, notification models.Notification) error {
	return s.enc.Encode(notification)
}
