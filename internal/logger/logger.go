package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	logPrefix     = "regenforce-"
	logSuffix     = ".log"
	retentionDays = 30
)

// Output destinations.
const (
	OutputStderr = "stderr"
	OutputStdout = "stdout"
	OutputFile   = "file"
)

// Formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// current is the process logger. It discards everything until Init runs.
var current atomic.Pointer[zerolog.Logger]

func init() {
	nop := zerolog.Nop()
	current.Store(&nop)
}

// Options configures the logger initialization.
type Options struct {
	Level  string // debug, info, warn, error. Default: info
	Format string // console or json. Default: console
	Output string // stderr, stdout or file. Default: stderr
	LogDir string // Directory for log files when Output is file. Default: ~/.regenforce/logs
}

// Init configures logging. Call from main() before any log calls.
func Init(opts Options) error {
	var w io.Writer
	switch opts.Output {
	case "", OutputStderr:
		w = os.Stderr
	case OutputStdout:
		w = os.Stdout
	case OutputFile:
		f, err := openLogFile(opts.LogDir)
		if err != nil {
			return err
		}
		w = f
	default:
		return fmt.Errorf("logger: unknown output %q", opts.Output)
	}

	switch opts.Format {
	case "", FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: opts.Output == OutputFile}
	case FormatJSON:
	default:
		return fmt.Errorf("logger: unknown format %q", opts.Format)
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		level = parsed
	}

	l := zerolog.New(w).Level(level).With().Timestamp().Logger()
	current.Store(&l)
	return nil
}

// Set replaces the process logger. Tests use it to capture output.
func Set(l zerolog.Logger) {
	current.Store(&l)
}

// L returns the process logger.
func L() *zerolog.Logger {
	return current.Load()
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return L().With().Str("component", name).Logger()
}

func openLogFile(logDir string) (*os.File, error) {
	if logDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		logDir = filepath.Join(home, ".regenforce", "logs")
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	// Clean up old logs (best-effort, ignore errors)
	cleanOldLogs(logDir, time.Now())

	filename := filepath.Join(logDir, logPrefix+time.Now().Format("2006-01-02")+logSuffix)
	return os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// cleanOldLogs removes log files older than retentionDays.
func cleanOldLogs(logDir string, now time.Time) {
	cutoff := now.AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, logPrefix) || !strings.HasSuffix(name, logSuffix) {
			continue
		}

		// Parse date from filename: regenforce-2024-01-05.log
		dateStr := strings.TrimPrefix(strings.TrimSuffix(name, logSuffix), logPrefix)
		logDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}

		if logDate.Before(cutoff) {
			os.Remove(filepath.Join(logDir, name))
		}
	}
}
