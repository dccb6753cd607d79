package model

import "time"

type Event struct {
	ID             string    `json:"id"`
	SeriesID       string    `json:"series_id,omitempty"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Color          string    `json:"color"`
	AllDay         bool      `json:"all_day"`
	AllWeek        bool      `json:"all_week"`
	RecurrenceRule string    `json:"recurrence_rule,omitempty"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Duration returns End - Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Valid reports whether the event ends strictly after it starts.
func (e Event) Valid() bool {
	return e.End.After(e.Start)
}

// Overlaps reports whether the event intersects the half-open range [start, end).
func (e Event) Overlaps(start, end time.Time) bool {
	return e.Start.Before(end) && start.Before(e.End)
}
