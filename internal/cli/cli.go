// Package cli parses command-line arguments for the capturerun tool.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/SamuelMarks/taskflow/internal/app"
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
// Config, a boolean indicating if the program should exit cleanly, or an
// ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("capturerun", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
capturerun - compiles declarative capture pipelines and offloads them
across a simulated lane pool.

Usage:
  capturerun [options] [PIPELINE_PATH]

Arguments:
  PIPELINE_PATH
    Path to a .hcl file declaring one or more pipeline blocks.

Options:
`)
		flagSet.PrintDefaults()
	}

	pipelineFlag := flagSet.String("pipeline", "", "Path to the pipeline file.")
	pFlag := flagSet.String("p", "", "Path to the pipeline file (shorthand).")
	lanesFlag := flagSet.Int("lanes", 0, "Override the lane pool size for every pipeline. 0 keeps per-pipeline values.")
	repeatsFlag := flagSet.Int("repeats", 0, "Override the offload repeat count for every pipeline. 0 keeps per-pipeline values.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *pipelineFlag != "" {
		path = *pipelineFlag
	} else if *pFlag != "" {
		path = *pFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	if *lanesFlag < 0 {
		return nil, false, &ExitError{Code: 2, Message: "invalid lanes: must not be negative"}
	}
	if *repeatsFlag < 0 {
		return nil, false, &ExitError{Code: 2, Message: "invalid repeats: must not be negative"}
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

	return &app.Config{
		PipelinePath: path,
		Lanes:        *lanesFlag,
		Repeats:      *repeatsFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
	}, false, nil
}
