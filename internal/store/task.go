package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/daygrid/internal/model"
)

const taskColumns = `id, title, project_id, due, completed, version, created_at, updated_at`

// Due dates are stored as text in one of these layouts. Anything else is kept
// verbatim and loads with a nil DueDate.
var dueLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

// FormatDue renders a due date the way the store saves it.
func FormatDue(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ParseDue parses stored due text. It returns nil for empty or unrecognized text.
func ParseDue(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dueLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func dueText(t model.Task) string {
	if t.DueDate != nil {
		return FormatDue(t.DueDate)
	}
	return t.DueRaw
}

func scanTask(row scanner) (model.Task, error) {
	var t model.Task
	var completed int
	err := row.Scan(&t.ID, &t.Title, &t.ProjectID, &t.DueRaw, &completed, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	t.Completed = completed != 0
	t.DueDate = ParseDue(t.DueRaw)
	return t, err
}

func (s *TaskStore) Create(t model.Task) (*model.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		t.ID, t.Title, t.ProjectID, dueText(t), boolInt(t.Completed), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetByID(t.ID)
}

func (s *TaskStore) GetByID(id string) (*model.Task, error) {
	t, err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return &t, nil
}

// List returns all tasks, open ones first, ordered by creation.
func (s *TaskStore) List() ([]model.Task, error) {
	return s.list(`SELECT ` + taskColumns + ` FROM tasks ORDER BY completed ASC, created_at ASC, id ASC`)
}

func (s *TaskStore) ListOpen() ([]model.Task, error) {
	return s.list(`SELECT ` + taskColumns + ` FROM tasks WHERE completed = 0 ORDER BY created_at ASC, id ASC`)
}

func (s *TaskStore) list(query string) ([]model.Task, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Update overwrites t's fields and bumps its version. A non-zero t.Version
// must match the stored one.
func (s *TaskStore) Update(t model.Task) (*model.Task, error) {
	res, err := s.db.Exec(
		`UPDATE tasks SET title = ?, project_id = ?, due = ?, completed = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND (? = 0 OR version = ?)`,
		t.Title, t.ProjectID, dueText(t), boolInt(t.Completed), time.Now().UTC(), t.ID, t.Version, t.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		existing, err := s.GetByID(t.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrVersionConflict
		}
		return nil, nil
	}
	return s.GetByID(t.ID)
}

func (s *TaskStore) SetCompleted(id string, completed bool) (*model.Task, error) {
	_, err := s.db.Exec(
		`UPDATE tasks SET completed = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		boolInt(completed), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("set task completed: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) Delete(id string) error {
	_, err := s.db.Exec("DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
