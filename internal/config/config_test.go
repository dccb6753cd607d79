package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Listen != ":8080" || cfg.Engine != DefaultEngine() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadYAMLKeepsUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daygrid.yaml")
	data := "listen: 127.0.0.1:9000\nengine:\n  row_height_px: 60\n  drag_enabled: false\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Listen != "127.0.0.1:9000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Engine.RowHeightPx != 60 || cfg.Engine.DragEnabled {
		t.Errorf("engine = %+v, want row height 60 and drag disabled", cfg.Engine)
	}
	if !cfg.Engine.ResizeEnabled || cfg.Engine.HardOffsetDays != DefaultHardOffsetDays {
		t.Errorf("unset engine fields lost their defaults: %+v", cfg.Engine)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DAYGRID_PORT", "9090")
	t.Setenv("DAYGRID_LOG_FORMAT", "json")
	t.Setenv("DAYGRID_SOFT_OFFSET_DAYS", "5")
	t.Setenv("DAYGRID_RESIZE_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q, want :9090", cfg.Listen)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
	if cfg.Engine.SoftOffsetDays != 5 || cfg.Engine.ResizeEnabled {
		t.Errorf("engine = %+v", cfg.Engine)
	}
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("DAYGRID_DRAG_ENABLED", "maybe")
	if _, err := Load(""); err == nil {
		t.Error("expected error for invalid boolean")
	}
}

func TestLoadRejectsBadSchedule(t *testing.T) {
	t.Setenv("DAYGRID_TICK_SCHEDULE", "every now and then")
	if _, err := Load(""); err == nil {
		t.Error("expected error for invalid tick schedule")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "daygrid.yaml")
	cfg := Default()
	cfg.Timezone = "America/Chicago"
	cfg.Engine.MaxOccurrences = 50

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("perm = %v, want 0600", info.Mode().Perm())
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.Timezone != "America/Chicago" || got.Engine.MaxOccurrences != 50 {
		t.Errorf("round trip = %+v", got)
	}
}

func TestNormalizeRepairsEngine(t *testing.T) {
	e := Engine{RowHeightPx: -1, StartHour: 5, EndHour: 3, SoftOffsetDays: -2, MaxOccurrences: 0}.Normalized()
	d := DefaultEngine()
	if e.RowHeightPx != d.RowHeightPx || e.StartHour != 0 || e.EndHour != 24 {
		t.Errorf("grid not repaired: %+v", e)
	}
	if e.SoftOffsetDays != 0 || e.MaxOccurrences != d.MaxOccurrences || e.TickSchedule != d.TickSchedule {
		t.Errorf("engine = %+v", e)
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultEngine().Validate(); err != nil {
		t.Errorf("default engine invalid: %v", err)
	}
	bad := DefaultEngine()
	bad.EndHour = 30
	bad.MaxOccurrences = -1
	if err := bad.Validate(); err == nil {
		t.Error("expected validation error")
	}
}

func TestApplyValuesRoundTrip(t *testing.T) {
	e := DefaultEngine()
	e.RowHeightPx = 37.5
	e.StartHour = 6
	e.DragEnabled = false
	e.TickSchedule = "*/5 * * * *"

	got, err := DefaultEngine().Apply(e.Values())
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if got != e {
		t.Errorf("Apply(Values()) = %+v, want %+v", got, e)
	}
	if len(e.Values()) != len(EngineKeys) {
		t.Errorf("Values has %d keys, want %d", len(e.Values()), len(EngineKeys))
	}
}

func TestApplyKeepsValidValues(t *testing.T) {
	got, err := DefaultEngine().Apply(map[string]string{
		KeyStartHour:   "7",
		KeyEndHour:     "late",
		"unrelated":    "x",
		KeyDragEnabled: "0",
	})
	if err == nil {
		t.Error("expected error for invalid end hour")
	}
	if got.StartHour != 7 || got.EndHour != 24 || got.DragEnabled {
		t.Errorf("Apply = %+v", got)
	}
}

type fakeSettings struct {
	values map[string]string
	err    error
	calls  int
}

func (f *fakeSettings) GetEngineSettings() (map[string]string, error) {
	f.calls++
	return f.values, f.err
}

func TestSettingsSourceReadsEveryCall(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fs := &fakeSettings{values: map[string]string{}}
	src := NewSettingsSource(DefaultEngine(), fs, logger)

	if !src.Engine().DragEnabled {
		t.Fatal("drag should start enabled")
	}
	fs.values[KeyDragEnabled] = "false"
	if src.Engine().DragEnabled {
		t.Error("runtime override not picked up")
	}
	if fs.calls != 2 {
		t.Errorf("settings read %d times, want 2", fs.calls)
	}

	fs.err = errors.New("database is locked")
	if e := src.Engine(); e != src.Base() {
		t.Errorf("on read error Engine() = %+v, want base", e)
	}
}

func TestStaticNormalizes(t *testing.T) {
	if got := Static(Engine{}).Engine(); got.Grid().Valid() != nil {
		t.Errorf("Static(zero).Engine() grid invalid: %+v", got)
	}
}
