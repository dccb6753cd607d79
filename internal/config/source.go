package config

import "log/slog"

// Source supplies the engine configuration. Callers ask for it on every
// operation instead of holding on to a copy, so runtime changes take effect
// immediately.
type Source interface {
	Engine() Engine
}

// Static is a fixed Source.
type Static Engine

func (s Static) Engine() Engine {
	return Engine(s).Normalized()
}

// SettingsReader is the part of the settings store a SettingsSource needs.
type SettingsReader interface {
	GetEngineSettings() (map[string]string, error)
}

// SettingsSource layers the overrides stored in the settings table on top of
// a base configuration. The table is read on every call.
type SettingsSource struct {
	base     Engine
	settings SettingsReader
	logger   *slog.Logger
}

func NewSettingsSource(base Engine, settings SettingsReader, logger *slog.Logger) *SettingsSource {
	return &SettingsSource{
		base:     base.Normalized(),
		settings: settings,
		logger:   logger.With("component", "config"),
	}
}

func (s *SettingsSource) Base() Engine {
	return s.base
}

func (s *SettingsSource) Engine() Engine {
	values, err := s.settings.GetEngineSettings()
	if err != nil {
		s.logger.Error("failed to read engine settings, using base config", "error", err)
		return s.base
	}
	e, err := s.base.Apply(values)
	if err != nil {
		s.logger.Warn("ignoring invalid engine settings", "error", err)
	}
	return e.Normalized()
}
