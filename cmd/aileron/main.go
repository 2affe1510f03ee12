// Command aileron answers aircraft design questions against the legacy
// design archive and generates DATCOM input cases from natural-language
// requirements.
//
// Usage:
//
//	aileron query "主翼面積12平方公尺、展弦比7.5，生成DATCOM輸入檔"
//	aileron chat --collection aerodynamics
//	aileron serve --addr :8080
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/aileronlabs/aileron/pkg/config"
	"github.com/aileronlabs/aileron/pkg/logger"
)

// Exit codes. Wrappers and CI scripts rely on the distinction between
// a mistyped invocation, a broken config and an engine failure.
const (
	exitUsage   = 2
	exitConfig  = 3
	exitRuntime = 4
)

// CLI defines the command-line interface.
type CLI struct {
	Query       QueryCmd       `cmd:"" help:"Answer a single question."`
	Chat        ChatCmd        `cmd:"" help:"Interactive question loop."`
	Collections CollectionsCmd `cmd:"" help:"List collections with document counts."`
	Tools       ToolsCmd       `cmd:"" help:"List the registered tools."`
	Serve       ServeCmd       `cmd:"" help:"Start the HTTP API server."`
	Version     VersionCmd     `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error). Defaults from config."`
	LogFormat string `help:"Log format (simple, verbose, json). Defaults from config."`
	Debug     bool   `help:"Shorthand for --log-level=debug."`
}

// initLogger applies the CLI log flags over the config file settings.
// It runs once before config loading so early failures are logged, and
// again after loading to pick up file settings the flags left alone.
func (cli *CLI) initLogger(cfg *config.Config) {
	level := cli.LogLevel
	format := cli.LogFormat
	if cfg != nil {
		if level == "" {
			level = cfg.Logging.Level
		}
		if format == "" {
			format = cfg.Logging.Format
		}
	}
	if cli.Debug {
		level = "debug"
	}
	if format == "" {
		format = "simple"
	}
	logger.Init(logger.ParseLevel(level), os.Stderr, format)
}

// usageError marks a failure caused by how the command was invoked
// rather than by the engine or its backends.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func usageErrorf(format string, args ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func exitCode(err error) int {
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		return exitUsage
	}
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		return exitConfig
	}
	return exitRuntime
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("aileron"),
		kong.Description("Aircraft design archive query engine with DATCOM case generation."),
		kong.UsageOnError(),
		kong.Exit(func(code int) {
			// kong exits non-zero on parse and usage errors only.
			if code != 0 {
				code = exitUsage
			}
			os.Exit(code)
		}),
	)

	cli.initLogger(nil)

	if err := ctx.Run(&cli); err != nil {
		ctx.Errorf("%v", err)
		os.Exit(exitCode(err))
	}
}
