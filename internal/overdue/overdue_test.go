package overdue

import (
	"encoding/json"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/dukerupert/daygrid/internal/model"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func taskDue(due time.Time) model.Task {
	return model.Task{ID: "t1", Title: "File taxes", DueDate: &due}
}

var offsets = Offsets{SoftDays: 3, HardDays: 7}

func TestClassifySoftOverdue(t *testing.T) {
	r := Classify(taskDue(date(2024, 1, 10)), date(2024, 1, 8), offsets)
	if r.Status != StatusSoftOverdue || r.Days != 1 {
		t.Errorf("Classify = %s/%d, want soft_overdue/1", r.Status, r.Days)
	}
	if !r.SoftDeadline.Equal(date(2024, 1, 7)) {
		t.Errorf("SoftDeadline = %v, want 2024-01-07", r.SoftDeadline)
	}
}

func TestClassifyHardOverdue(t *testing.T) {
	r := Classify(taskDue(date(2024, 1, 10)), date(2024, 1, 20), offsets)
	if r.Status != StatusHardOverdue || r.Days != 3 {
		t.Errorf("Classify = %s/%d, want hard_overdue/3", r.Status, r.Days)
	}
	if !r.HardDeadline.Equal(date(2024, 1, 17)) {
		t.Errorf("HardDeadline = %v, want 2024-01-17", r.HardDeadline)
	}
}

func TestClassifyOnTime(t *testing.T) {
	tests := []struct {
		now  time.Time
		days int
	}{
		{date(2024, 1, 1), 9},
		{date(2024, 1, 1).Add(13 * time.Hour), 8},
		{date(2024, 1, 7), 3}, // exactly at the soft deadline is still on time
	}
	for _, tt := range tests {
		r := Classify(taskDue(date(2024, 1, 10)), tt.now, offsets)
		if r.Status != StatusOnTime || r.Days != tt.days {
			t.Errorf("Classify(now=%v) = %s/%d, want on_time/%d", tt.now, r.Status, r.Days, tt.days)
		}
	}
}

func TestClassifyBoundaries(t *testing.T) {
	due := date(2024, 1, 10)
	if r := Classify(taskDue(due), date(2024, 1, 17), offsets); r.Status != StatusSoftOverdue {
		t.Errorf("at hard deadline = %s, want soft_overdue", r.Status)
	}
	if r := Classify(taskDue(due), date(2024, 1, 17).Add(time.Second), offsets); r.Status != StatusHardOverdue || r.Days != 0 {
		t.Errorf("just past hard deadline = %s/%d, want hard_overdue/0", r.Status, r.Days)
	}
}

func TestClassifyNegativeOffsetsClampToZero(t *testing.T) {
	due := date(2024, 1, 10)
	r := Classify(taskDue(due), date(2024, 1, 11), Offsets{SoftDays: -4, HardDays: -2})
	if r.Status != StatusHardOverdue || r.Days != 1 {
		t.Errorf("Classify = %s/%d, want hard_overdue/1", r.Status, r.Days)
	}
}

func TestClassifyMissingDueDate(t *testing.T) {
	r := Classify(model.Task{ID: "t2"}, date(2024, 1, 1), offsets)
	if r.Status != StatusOnTime || r.Days != 0 || r.Flag != FlagMissingDue {
		t.Errorf("Classify = %+v, want on_time/0 with missing flag", r)
	}

	r = Classify(model.Task{ID: "t3", DueRaw: "next blursday"}, date(2024, 1, 1), offsets)
	if r.Status != StatusOnTime || r.Days != 0 || r.Flag != FlagUnparseableDue {
		t.Errorf("Classify = %+v, want on_time/0 with unparseable flag", r)
	}
}

func TestClassifyMonotonic(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for iter := 0; iter < 200; iter++ {
		due := date(2024, 1, 1).Add(time.Duration(rng.IntN(365*24)) * time.Hour)
		off := Offsets{SoftDays: rng.IntN(10), HardDays: rng.IntN(10)}
		task := taskDue(due)

		now := due.AddDate(0, 0, -20)
		prev := StatusOnTime
		for step := 0; step < 200; step++ {
			now = now.Add(time.Duration(1+rng.IntN(12*60)) * time.Minute)
			r := Classify(task, now, off)
			if r.Status.Rank() < prev.Rank() {
				t.Fatalf("due %v offsets %+v: status went %s -> %s at %v", due, off, prev, r.Status, now)
			}
			if r.Days < 0 {
				t.Fatalf("negative days %d at %v", r.Days, now)
			}
			prev = r.Status
		}
	}
}

func TestClassifyAllSkipsCompleted(t *testing.T) {
	due := date(2024, 1, 10)
	tasks := []model.Task{
		{ID: "a", DueDate: &due},
		{ID: "b", DueDate: &due, Completed: true},
		{ID: "c"},
	}
	got := ClassifyAll(tasks, date(2024, 1, 20), offsets)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("ClassifyAll = %+v, want a, c", got)
	}
	if got[0].Status != StatusHardOverdue {
		t.Errorf("a = %s, want hard_overdue", got[0].Status)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		r    Result
		want string
	}{
		{Result{Status: StatusHardOverdue, Days: 1}, "1 day overdue"},
		{Result{Status: StatusHardOverdue, Days: 3}, "3 days overdue"},
		{Result{Status: StatusSoftOverdue, Days: 1}, "1 day past soft deadline"},
		{Result{Status: StatusSoftOverdue, Days: 2}, "2 days past soft deadline"},
		{Result{Status: StatusOnTime, Days: 0}, "due today"},
		{Result{Status: StatusOnTime, Days: 1}, "due in 1 day"},
		{Result{Status: StatusOnTime, Days: 5}, "due in 5 days"},
		{Result{Status: StatusOnTime, Flag: FlagMissingDue}, "no due date"},
		{Result{Status: StatusOnTime, Flag: FlagUnparseableDue}, "unreadable due date"},
	}
	for _, tt := range tests {
		if got := Label(tt.r); got != tt.want {
			t.Errorf("Label(%+v) = %q, want %q", tt.r, got, tt.want)
		}
	}
}

func TestStatusTitle(t *testing.T) {
	if got := StatusSoftOverdue.Title(); got != "Soft Overdue" {
		t.Errorf("Title = %q, want Soft Overdue", got)
	}
}

func TestResultJSON(t *testing.T) {
	b, err := json.Marshal(Result{Status: StatusOnTime, Flag: FlagUnparseableDue})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	want := `{"status":"on_time","days":0,"flag":"unparseable_due"}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
}
