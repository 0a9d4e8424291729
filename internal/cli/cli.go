package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/projforge/internal/app"
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

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("projforge", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
projforge - generates project and solution files from declarative descriptors.

Usage:
  projforge [options] [DEFINITION_PATH]

Arguments:
  DEFINITION_PATH
    Path to a single .hcl file, a directory searched recursively for .hcl
    files, or a glob such as "defs/**/*.hcl".

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to the definition file or directory.")
	cFlag := flagSet.String("c", "", "Path to the definition file or directory (shorthand).")
	outputFlag := flagSet.String("output", ".", "Directory generated files are written under.")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent workers. 0 uses one per CPU.")
	serialFlag := flagSet.Bool("serial", false, "Run every task on a single goroutine.")
	onlyFlag := flagSet.String("only", "", "Glob selecting the descriptor types to generate, e.g. 'lib*'.")
	reportFlag := flagSet.String("report", "", "Write a YAML report of the run to this path.")
	metricsFlag := flagSet.String("metrics-file", "", "Write Prometheus metrics of the run to this path.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	extendedFlag := flagSet.Bool("resolver-extended", false, "Also expand '%(...)' and '$(...)' placeholders.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *configFlag != "" {
		path = *configFlag
	} else if *cFlag != "" {
		path = *cFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Definition path determined.", "path", path)

	if path == "" {
		slog.Debug("No definition path provided, printing usage and exiting.")
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
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		DefinitionPath:   path,
		OutputDir:        *outputFlag,
		Only:             *onlyFlag,
		ReportPath:       *reportFlag,
		MetricsFile:      *metricsFlag,
		LogFormat:        logFormat,
		LogLevel:         logLevel,
		WorkerCount:      *workersFlag,
		Serial:           *serialFlag,
		ResolverExtended: *extendedFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
