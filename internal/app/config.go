package app

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Commands the App can run.
const (
	CommandGenerate = "generate"
	CommandRun      = "run"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command string
	// Root is the project directory holding config/, data/ and encoding.json.
	Root string
	// Args are dataset ids for generate and configuration paths for run.
	Args []string

	GridPath     string // optional HCL sweep file
	EncodingPath string

	OneHot  bool
	Verbose bool
	Workers int

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.Command {
	case CommandGenerate, CommandRun:
	default:
		return nil, fmt.Errorf("unknown command %q", cfg.Command)
	}
	if len(cfg.Args) == 0 {
		if cfg.Command == CommandGenerate {
			return nil, errors.New("at least one dataset id is required")
		}
		return nil, errors.New("at least one configuration path is required")
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.EncodingPath == "" {
		cfg.EncodingPath = filepath.Join(cfg.Root, "encoding.json")
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.MongoURI != "" {
		if cfg.MongoDatabase == "" {
			cfg.MongoDatabase = "hpsweep"
		}
		if cfg.MongoCollection == "" {
			cfg.MongoCollection = "runs"
		}
	}
	return &cfg, nil
}
