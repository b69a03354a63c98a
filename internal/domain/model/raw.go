package model

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// RawActivity is an untrusted row as delivered by the bulk fetch or the
// change stream. Location keeps whatever JSON shape the row carried.
type RawActivity struct {
	ID        FlexID          `json:"id"`
	Title     string          `json:"title"`
	Category  string          `json:"category"`
	Type      string          `json:"type,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	TimeStart string          `json:"time_start"`
	TimeEnd   string          `json:"time_end"`
	Price     json.Number     `json:"price,omitempty"`
	Unit      string          `json:"unit"`
	Location  json.RawMessage `json:"location,omitempty"`
	Latitude  json.RawMessage `json:"latitude,omitempty"`
	Longitude json.RawMessage `json:"longitude,omitempty"`
	Photos    []string        `json:"photos,omitempty"`
	CreatedAt string          `json:"created_at"`
	UserID    FlexID          `json:"user_id"`
}

// FlexID accepts identifiers encoded as JSON strings or numbers.
type FlexID string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("identifier: %w", err)
	}
	*f = FlexID(n.String())
	return nil
}

// DecodedLocation returns the row's location as a generic JSON value
// ([]any, map[string]any, string, float64, nil). When the location column is
// empty the latitude/longitude columns are folded into an object.
func (r *RawActivity) DecodedLocation() (any, error) {
	if len(r.Location) > 0 && string(r.Location) != "null" {
		var v any
		if err := json.Unmarshal(r.Location, &v); err != nil {
			return nil, fmt.Errorf("decode location: %w", err)
		}
		return v, nil
	}
	if len(r.Latitude) == 0 && len(r.Longitude) == 0 {
		return nil, nil
	}
	obj := make(map[string]any, 2)
	for key, raw := range map[string]json.RawMessage{"latitude": r.Latitude, "longitude": r.Longitude} {
		if len(raw) == 0 {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		obj[key] = v
	}
	return obj, nil
}

// ResolvedKind returns Kind, falling back to the legacy "type" column.
func (r *RawActivity) ResolvedKind() string {
	if r.Kind != "" {
		return r.Kind
	}
	return r.Type
}

// Operation is the change stream verb.
type Operation string

// Change operations.
const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ErrUnknownOperation is returned for change events with an unsupported verb.
var ErrUnknownOperation = errors.New("unknown change operation")

// ParseOperation normalizes INSERT/Insert/insert to an Operation.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(s))); op {
	case OpInsert, OpUpdate, OpDelete:
		return op, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
	}
}

// ChangeEvent is one push-stream mutation.
type ChangeEvent struct {
	// DeliveryID identifies the delivery for redelivery dedupe; may be empty.
	DeliveryID string      `json:"delivery_id,omitempty"`
	Operation  Operation   `json:"operation"`
	Row        RawActivity `json:"row"`
}

// UnmarshalJSON accepts any casing of the operation verb.
func (e *ChangeEvent) UnmarshalJSON(data []byte) error {
	var wire struct {
		DeliveryID string      `json:"delivery_id"`
		Operation  string      `json:"operation"`
		Row        RawActivity `json:"row"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	op, err := ParseOperation(wire.Operation)
	if err != nil {
		return err
	}
	e.DeliveryID = wire.DeliveryID
	e.Operation = op
	e.Row = wire.Row
	return nil
}
