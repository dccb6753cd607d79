// Package overdue derives the urgency of a task from its due date and the
// configured soft and hard deadline offsets.
package overdue

import (
	"strings"
	"time"

	"github.com/dukerupert/daygrid/internal/model"
)

type Status string

const (
	StatusOnTime      Status = "on_time"
	StatusSoftOverdue Status = "soft_overdue"
	StatusHardOverdue Status = "hard_overdue"
)

// Rank orders statuses by severity: on_time < soft_overdue < hard_overdue.
func (s Status) Rank() int {
	switch s {
	case StatusSoftOverdue:
		return 1
	case StatusHardOverdue:
		return 2
	}
	return 0
}

// Flag marks results the caller should treat as advisory.
type Flag uint8

const (
	FlagMissingDue Flag = 1 << iota
	FlagUnparseableDue
)

func (f Flag) String() string {
	switch f {
	case 0:
		return ""
	case FlagMissingDue:
		return "missing_due"
	case FlagUnparseableDue:
		return "unparseable_due"
	}
	return "unknown"
}

func (f Flag) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Offsets are whole days before (soft) and after (hard) the due date.
type Offsets struct {
	SoftDays int
	HardDays int
}

func (o Offsets) normalized() Offsets {
	o.SoftDays = max(o.SoftDays, 0)
	o.HardDays = max(o.HardDays, 0)
	return o
}

type Result struct {
	Status       Status     `json:"status"`
	Days         int        `json:"days"`
	SoftDeadline *time.Time `json:"soft_deadline,omitempty"`
	HardDeadline *time.Time `json:"hard_deadline,omitempty"`
	Flag         Flag       `json:"flag,omitempty"`
}

// Classify computes the task's status at now. Deadlines are recomputed on every
// call: soft = due - SoftDays, hard = due + HardDays. Days counts whole days
// past the deadline that was crossed, or whole days remaining until the due
// date when on time. A task without a usable due date is on time with zero
// days and a flag.
func Classify(task model.Task, now time.Time, offsets Offsets) Result {
	if task.DueDate == nil || task.DueDate.IsZero() {
		flag := FlagMissingDue
		if strings.TrimSpace(task.DueRaw) != "" {
			flag = FlagUnparseableDue
		}
		return Result{Status: StatusOnTime, Flag: flag}
	}

	offsets = offsets.normalized()
	due := *task.DueDate
	soft := due.AddDate(0, 0, -offsets.SoftDays)
	hard := due.AddDate(0, 0, offsets.HardDays)

	res := Result{SoftDeadline: &soft, HardDeadline: &hard}
	switch {
	case now.After(hard):
		res.Status = StatusHardOverdue
		res.Days = wholeDays(now.Sub(hard))
	case now.After(soft):
		res.Status = StatusSoftOverdue
		res.Days = wholeDays(now.Sub(soft))
	default:
		res.Status = StatusOnTime
		res.Days = max(wholeDays(due.Sub(now)), 0)
	}
	return res
}

func wholeDays(d time.Duration) int {
	return int(d / (24 * time.Hour))
}

// TaskWithStatus pairs a task with its classification.
type TaskWithStatus struct {
	model.Task
	Result
}

// ClassifyAll classifies every open task, preserving order. Completed tasks are skipped.
func ClassifyAll(tasks []model.Task, now time.Time, offsets Offsets) []TaskWithStatus {
	out := make([]TaskWithStatus, 0, len(tasks))
	for _, t := range tasks {
		if t.Completed {
			continue
		}
		out = append(out, TaskWithStatus{Task: t, Result: Classify(t, now, offsets)})
	}
	return out
}
