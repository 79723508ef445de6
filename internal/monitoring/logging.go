// Package monitoring - logging.go configures the global zerolog logger.
//
// DESIGN: Every package logs through github.com/rs/zerolog/log. SetupLogging
// is called once from main and swaps the global logger according to
// config.MonitoringConfig:
//   - level:  debug | info | warn | error (default info)
//   - format: json | console; empty picks console on a TTY, json otherwise
//   - output: stdout | stderr | a file path (appended)
package monitoring

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/etendo/erp-gateway/internal/config"
)

// SetupLogging installs the global logger. The returned closer releases
// the log file, if one was opened.
func SetupLogging(cfg config.MonitoringConfig) (io.Closer, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	out, closer, isTTY, err := openLogOutput(cfg.LogOutput)
	if err != nil {
		return nil, err
	}

	var w io.Writer = out
	if useConsole(cfg.LogFormat, isTTY) {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: !isTTY}
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return closer, nil
}

func parseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

func useConsole(format string, isTTY bool) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		return true
	case "json":
		return false
	default:
		return isTTY
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openLogOutput(output string) (*os.File, io.Closer, bool, error) {
	switch strings.ToLower(strings.TrimSpace(output)) {
	case "", "stdout":
		return os.Stdout, nopCloser{}, term.IsTerminal(int(os.Stdout.Fd())), nil
	case "stderr":
		return os.Stderr, nopCloser{}, term.IsTerminal(int(os.Stderr.Fd())), nil
	}

	if err := os.MkdirAll(filepath.Dir(output), 0750); err != nil {
		return nil, nil, false, fmt.Errorf("create log dir: %w", err)
	}
	// #nosec G304 -- operator-supplied log path
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, false, fmt.Errorf("open log file: %w", err)
	}
	return f, f, false, nil
}
