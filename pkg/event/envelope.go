// Package event defines the JSON envelope that wraps every inter-service
// message on the pipeline topics, plus the typed payloads carried inside it.
package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Event types carried on the pipeline topics.
const (
	TypeRawPrices        = "raw_prices"
	TypeRecommendedPrice = "recommended_price"
)

// ErrMalformedEnvelope marks messages whose outer envelope cannot be parsed.
// These are logged and dropped rather than dead-lettered: without a valid
// envelope there is nothing to reprocess.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is the standard wrapper around every inter-service message.
type Envelope struct {
	EventType string
	Timestamp time.Time
	Data      json.RawMessage
	Metadata  map[string]string
}

// wire is the serialized form of an Envelope. The timestamp travels as an
// ISO-8601 string.
type wire struct {
	EventType *string           `json:"event_type"`
	Timestamp *string           `json:"timestamp"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata"`
}

// New builds an envelope around the given payload, stamping UTC now.
func New(eventType string, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return &Envelope{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Metadata:  map[string]string{},
	}, nil
}

// Marshal serializes the envelope to a single-line JSON record.
func (e *Envelope) Marshal() ([]byte, error) {
	eventType := e.EventType
	timestamp := e.Timestamp.UTC().Format(time.RFC3339Nano)

	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	data := e.Data
	if data == nil {
		data = json.RawMessage("{}")
	}

	out, err := json.Marshal(wire{
		EventType: &eventType,
		Timestamp: &timestamp,
		Data:      data,
		Metadata:  metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	return out, nil
}

// Parse deserializes an envelope, failing with ErrMalformedEnvelope when
// event_type, timestamp or data is absent or of the wrong shape.
func Parse(raw []byte) (*Envelope, error) {
	var w wire
	err := json.Unmarshal(raw, &w)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	if w.EventType == nil || *w.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_type", ErrMalformedEnvelope)
	}

	if w.Timestamp == nil {
		return nil, fmt.Errorf("%w: missing timestamp", ErrMalformedEnvelope)
	}

	timestamp, err := parseTimestamp(*w.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp %q", ErrMalformedEnvelope, *w.Timestamp)
	}

	if len(w.Data) == 0 || string(w.Data) == "null" {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedEnvelope)
	}

	if w.Data[0] != '{' {
		return nil, fmt.Errorf("%w: data is not an object", ErrMalformedEnvelope)
	}

	metadata := w.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	return &Envelope{
		EventType: *w.EventType,
		Timestamp: timestamp,
		Data:      w.Data,
		Metadata:  metadata,
	}, nil
}

// parseTimestamp accepts RFC3339 as well as zone-less ISO-8601 timestamps
// (as emitted by upstream systems); the latter are interpreted as UTC.
func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err == nil {
		return t.UTC(), nil
	}

	t, err = time.ParseInLocation("2006-01-02T15:04:05.999999999", value, time.UTC)
	if err == nil {
		return t, nil
	}

	return time.Time{}, err
}
