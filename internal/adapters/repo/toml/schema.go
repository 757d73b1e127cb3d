package toml

import (
	"fmt"

	"github.com/bnema/opennow-cli/internal/domain"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version int          `toml:"version"`
	Stream  streamSchema `toml:"stream"`
	Server  serverSchema `toml:"server"`
}

type streamSchema struct {
	Resolution     string `toml:"resolution,omitempty"`
	FPS            int    `toml:"fps,omitempty"`
	Codec          string `toml:"codec,omitempty"`
	MaxBitrateMbps int    `toml:"max_bitrate_mbps,omitempty"`
}

type serverSchema struct {
	Selected string `toml:"selected,omitempty"`
	// AutoSelect is a pointer so an absent key keeps the default.
	AutoSelect *bool `toml:"auto_select,omitempty"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}

	defaults := domain.DefaultStreamSettings()
	if s.Stream.Resolution == "" {
		s.Stream.Resolution = defaults.Resolution
	}
	if s.Stream.FPS <= 0 {
		s.Stream.FPS = defaults.FPS
	}
	if s.Stream.Codec == "" {
		s.Stream.Codec = defaults.Codec
	}
	if s.Stream.MaxBitrateMbps <= 0 {
		s.Stream.MaxBitrateMbps = defaults.MaxBitrateMbps
	}
	if s.Server.AutoSelect == nil {
		auto := defaults.AutoServerSelection
		s.Server.AutoSelect = &auto
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported settings schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

func toSchema(settings domain.StreamSettings) fileSchema {
	auto := settings.AutoServerSelection
	file := fileSchema{
		Version: currentSchemaVersion,
		Stream: streamSchema{
			Resolution:     settings.Resolution,
			FPS:            settings.FPS,
			Codec:          settings.Codec,
			MaxBitrateMbps: settings.MaxBitrateMbps,
		},
		Server: serverSchema{
			Selected:   settings.SelectedServer,
			AutoSelect: &auto,
		},
	}
	file.applyDefaults()

	return file
}

func fromSchema(file fileSchema) domain.StreamSettings {
	file.applyDefaults()

	return domain.StreamSettings{
		Resolution:          file.Stream.Resolution,
		FPS:                 file.Stream.FPS,
		Codec:               file.Stream.Codec,
		MaxBitrateMbps:      file.Stream.MaxBitrateMbps,
		SelectedServer:      file.Server.Selected,
		AutoServerSelection: *file.Server.AutoSelect,
	}
}
