// Package wire encodes events into the text-stream frame format pushed to
// clients. One frame per event:
//
//	id: <event-id>
//	event: <EVENT_TYPE>
//	data: {...}
//
// terminated by a blank line.
package wire

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/galleralive/realtime/pkg/domain"
	"github.com/galleralive/realtime/pkg/errors"
)

// Encode serializes an event into a single wire frame. The data field inlines
// the payload fields next to timestamp, priority and metadata.
func Encode(ev domain.Event) ([]byte, error) {
	body, err := encodeData(ev)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "ENCODE_ERROR", "failed to encode event data")
	}

	var buf bytes.Buffer
	buf.WriteString("id: ")
	buf.WriteString(ev.ID)
	buf.WriteString("\nevent: ")
	buf.WriteString(string(ev.Type))
	buf.WriteString("\ndata: ")
	buf.Write(body)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

func encodeData(ev domain.Event) ([]byte, error) {
	fields := make(map[string]any)

	if ev.Payload != nil {
		raw, err := json.Marshal(ev.Payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}

	fields["timestamp"] = ev.Timestamp.UTC().Format(time.RFC3339Nano)
	fields["priority"] = string(ev.Priority)
	if !ev.Metadata.IsZero() {
		fields["metadata"] = ev.Metadata
	}

	return json.Marshal(fields)
}
