package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the settings file looked up in the working directory.
const DefaultFile = ".hedgehog.yml"

// Runner kinds.
const (
	RunnerPool        = "pool"
	RunnerCooperative = "cooperative"
)

// Defaults applied to unset fields.
const (
	DefaultEchoStep     = 1
	DefaultTickInterval = 100 * time.Millisecond
	DefaultDataDir      = ".hedgehog"
	DefaultClientName   = "hedgehog"
	DefaultLogMaxSizeMB = 10
	DefaultLogBackups   = 3
)

// Settings holds persistent defaults loaded from a config file.
type Settings struct {
	EchoStep     uint32        `yaml:"echo_step"`
	TickInterval time.Duration `yaml:"tick_interval"`
	Runner       string        `yaml:"runner"`   // "pool" or "cooperative"
	DataDir      string        `yaml:"data_dir"` // holds app.db
	ClientName   string        `yaml:"client_name"`

	Log *LogConfig `yaml:"log,omitempty"`
}

// LogConfig sends log records to a rotating file.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

// LoadSettings reads a YAML config file into Settings and fills defaults.
// If the file does not exist, it returns default Settings and nil error.
func LoadSettings(path string) (*Settings, error) {
	var s Settings

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &s, nil
}

// ApplyDefaults fills every unset field.
func (s *Settings) ApplyDefaults() {
	if s.EchoStep == 0 {
		s.EchoStep = DefaultEchoStep
	}
	if s.TickInterval <= 0 {
		s.TickInterval = DefaultTickInterval
	}
	if s.Runner == "" {
		s.Runner = RunnerPool
	}
	if s.DataDir == "" {
		s.DataDir = DefaultDataDir
	}
	if s.ClientName == "" {
		s.ClientName = DefaultClientName
	}
	if s.Log != nil {
		if s.Log.MaxSizeMB <= 0 {
			s.Log.MaxSizeMB = DefaultLogMaxSizeMB
		}
		if s.Log.MaxBackups <= 0 {
			s.Log.MaxBackups = DefaultLogBackups
		}
	}
}

// Validate checks field values.
func (s *Settings) Validate() error {
	switch s.Runner {
	case RunnerPool, RunnerCooperative:
	default:
		return fmt.Errorf("unknown runner %q (want %s or %s)", s.Runner, RunnerPool, RunnerCooperative)
	}
	if s.TickInterval < 10*time.Millisecond {
		return fmt.Errorf("tick_interval %v is below 10ms", s.TickInterval)
	}
	return nil
}

// LogFile returns the configured log file, or "" when logging to stderr.
func (s *Settings) LogFile() string {
	if s.Log == nil {
		return ""
	}
	return s.Log.File
}

// DatabasePath returns the UI field store inside DataDir.
func (s *Settings) DatabasePath() string {
	return filepath.Join(s.DataDir, "app.db")
}
