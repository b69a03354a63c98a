// Package types contains the read shapes shared by the service and the API.
package types

import "github.com/okian/nearby/internal/domain/model"

// Result is a filtered view of one committed generation.
type Result struct {
	Generation uint64           `json:"generation"`
	Activities []model.Activity `json:"activities"`
}

// Marker is an activity as drawn on the map.
type Marker struct {
	ID    string  `json:"id"`
	Color string  `json:"color"`
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

// Stats describes the running service.
type Stats struct {
	Started       bool    `json:"started"`
	Session       string  `json:"session,omitempty"`
	Generation    uint64  `json:"generation"`
	Activities    int     `json:"activities"`
	QueueLength   int     `json:"queueLength"`
	QueueCapacity int     `json:"queueCapacity"`
	DedupeSize    int64   `json:"dedupeSize"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// Empty reports whether the result holds no activities.
func (r *Result) Empty() bool {
	return len(r.Activities) == 0
}
