package logging

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"syscall"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys shared by every component that logs about an environment.
const (
	FieldEnvironment = "environment"
	FieldProcess     = "process"
	FieldRole        = "role"
)

// Format selects how entries are encoded.
type Format string

const (
	// FormatAuto writes console output to a terminal and JSON anywhere else.
	FormatAuto    Format = "auto"
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Logger wraps zap.Logger with the pieces the server needs around it.
type Logger struct {
	*zap.Logger
}

// Config defines logger configuration.
type Config struct {
	// Level is "debug", "info", "warn" or "error". Empty means debug in
	// development and info otherwise.
	Level  string
	Format Format
	// Development picks console output under FormatAuto and adds stack
	// traces from warn upwards.
	Development bool
	// Output receives entries. Nil means stdout.
	Output io.Writer
}

// New creates a logger.
func New(cfg Config) (*Logger, error) {
	level, err := parseLevel(cfg.Level, cfg.Development)
	if err != nil {
		return nil, err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	tty := isTerminal(out)

	format, err := resolveFormat(cfg.Format, cfg.Development, tty)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(newEncoder(format, tty), zapcore.Lock(zapcore.AddSync(out)), level)
	opts := []zap.Option{
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	} else {
		opts = append(opts, zap.AddStacktrace(zapcore.DPanicLevel))
	}
	return &Logger{Logger: zap.New(core, opts...)}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// WithEnvironment tags every entry of l with the environment id.
func WithEnvironment(l *zap.Logger, environmentID string) *zap.Logger {
	return l.With(zap.String(FieldEnvironment, environmentID))
}

// ForProcess returns the logger for one spawned process: a child named after
// its role ("install", "dev", "shell") carrying the process id.
func ForProcess(l *zap.Logger, role, processID string) *zap.Logger {
	return l.Named(role).With(zap.String(FieldRole, role), zap.String(FieldProcess, processID))
}

// StdLog returns a standard library logger writing at error level, for
// net/http's ErrorLog.
func (l *Logger) StdLog(name string) *log.Logger {
	std, err := zap.NewStdLogAt(l.Logger.Named(name), zapcore.ErrorLevel)
	if err != nil {
		return zap.NewStdLog(l.Logger.Named(name))
	}
	return std
}

// Close flushes buffered entries. Terminals and pipes reject fsync; that
// error is not reported.
func (l *Logger) Close() error {
	err := l.Logger.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF) {
		return nil
	}
	return err
}

func parseLevel(level string, development bool) (zapcore.Level, error) {
	if level == "" {
		if development {
			return zapcore.DebugLevel, nil
		}
		return zapcore.InfoLevel, nil
	}
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

func resolveFormat(f Format, development, tty bool) (Format, error) {
	switch f {
	case FormatJSON, FormatConsole:
		return f, nil
	case FormatAuto, "":
		if development || tty {
			return FormatConsole, nil
		}
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("log format %q: want auto, json or console", f)
	}
}

// isTerminal reports whether w is a file attached to a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newEncoder(f Format, color bool) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.MessageKey = "message"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder

	if f == FormatJSON {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeDuration = zapcore.StringDurationEncoder
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(ec)
}
