package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/renderloop/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app
// config, a boolean indicating if the program should exit cleanly, or an
// ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("renderloop", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
Renderloop - A staged prerender engine for route manifests.

Usage:
  renderloop [options] [ROUTES_PATH]

Arguments:
  ROUTES_PATH
    Path to a single .hcl route manifest or a directory containing them.

Options:
`)
		flagSet.PrintDefaults()
	}

	routesFlag := flagSet.String("routes", "", "Path to the route manifest file or directory.")
	rFlag := flagSet.String("r", "", "Path to the route manifest file or directory (shorthand).")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	budgetFlag := flagSet.Int("task-budget", 0, "Turn boundaries a render may span before counting as dynamic. 0 uses the default.")
	emptyShellFlag := flagSet.Bool("allow-empty-shell", false, "Accept dynamic routes that render no static document shell.")
	devFlag := flagSet.Bool("dev", false, "Render through the development coordinator (restart on cold cache).")
	concurrencyFlag := flagSet.Int("concurrency", 4, "Number of routes rendered concurrently.")
	reportPortFlag := flagSet.Int("report-port", 0, "Port for the HTTP classification report server. 0 is disabled.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *routesFlag != "" {
		path = *routesFlag
	} else if *rFlag != "" {
		path = *rFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *budgetFlag < 0 {
		return nil, false, &ExitError{Code: 2, Message: "invalid task-budget: must not be negative"}
	}

	config, err := app.NewConfig(app.Config{
		RoutesPath:      path,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		TaskBudget:      *budgetFlag,
		AllowEmptyShell: *emptyShellFlag,
		Dev:             *devFlag,
		Concurrency:     *concurrencyFlag,
		ReportPort:      *reportPortFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
