package model

import "time"

type Task struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	ProjectID string     `json:"project_id,omitempty"`
	DueDate   *time.Time `json:"due_date"`
	DueRaw    string     `json:"-"`
	Completed bool       `json:"completed"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
