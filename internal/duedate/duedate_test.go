package duedate

import (
	"testing"
	"time"
)

func TestResolveExact(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	p := New(ny)
	now := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-01-10", time.Date(2024, 1, 10, 0, 0, 0, 0, ny)},
		{"2024-01-10T17:30", time.Date(2024, 1, 10, 17, 30, 0, 0, ny)},
		{"2024-01-10T17:00:00Z", time.Date(2024, 1, 10, 17, 0, 0, 0, time.UTC)},
		{"  2024-02-29  ", time.Date(2024, 2, 29, 0, 0, 0, 0, ny)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := p.Resolve(tt.input, now)
			if !ok {
				t.Fatalf("Resolve(%q) not ok", tt.input)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Resolve(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveNaturalLanguage(t *testing.T) {
	p := New(time.UTC)
	now := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)

	got, ok := p.Resolve("tomorrow", now)
	if !ok {
		t.Fatal("tomorrow not resolved")
	}
	if y, m, d := got.Date(); y != 2024 || m != time.January || d != 9 {
		t.Errorf("tomorrow = %v, want 2024-01-09", got)
	}
}

func TestResolveRejects(t *testing.T) {
	p := New(nil)
	now := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)

	for _, input := range []string{"", "   ", "xyzzy"} {
		if got, ok := p.Resolve(input, now); ok {
			t.Errorf("Resolve(%q) = %v, want not ok", input, got)
		}
	}
}
