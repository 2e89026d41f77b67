package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// RoutesPath points at a single .hcl route manifest or a directory of
	// them.
	RoutesPath string

	LogFormat string
	LogLevel  string

	// TaskBudget is the number of turn boundaries a render may span before
	// its remaining work counts as dynamic; 0 means the default.
	TaskBudget int
	// AllowEmptyShell accepts dynamic routes that render no static
	// document shell.
	AllowEmptyShell bool
	// Dev renders routes through the restart-on-cold-cache coordinator
	// instead of the two-pass prerenderer.
	Dev bool

	// Concurrency bounds how many routes render at once.
	Concurrency int
	// ReportPort serves the classification report over HTTP. 0 is
	// disabled.
	ReportPort int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.RoutesPath == "" {
		return nil, errors.New("RoutesPath is a required configuration field and cannot be empty")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &cfg, nil
}
