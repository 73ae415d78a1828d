package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/edgebench/internal/errors"
	"github.com/rs/zerolog"
)

const (
	logFileName     = "experiment.log"
	defaultFilePerm = 0o644
	defaultDirPerm  = 0o755
)

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// Logger is an explicitly constructed zerolog wrapper that is handed to
// every component needing it.
type Logger struct {
	log  zerolog.Logger
	file *os.File
}

// Options configures a Logger.
type Options struct {
	Level  string
	Out    io.Writer
	LogDir string
}

// New creates a Logger writing human readable lines to opts.Out (stdout if
// nil) and, when LogDir is set, JSON lines to LogDir/experiment.log.
func New(opts Options) (*Logger, error) {
	errFactory := errors.New()

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	console := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}

	writers := []io.Writer{console}

	var file *os.File
	if opts.LogDir != "" {
		if err := os.MkdirAll(opts.LogDir, defaultDirPerm); err != nil {
			return nil, errFactory.Wrap(errors.ErrInitFailed, err)
		}
		file, err = os.OpenFile(filepath.Join(opts.LogDir, logFileName),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, defaultFilePerm)
		if err != nil {
			return nil, errFactory.Wrap(errors.ErrInitFailed, err)
		}
		writers = append(writers, file)
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &Logger{log: zl, file: file}, nil
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{log: zerolog.Nop()}
}

// ParseLevel maps a configured level name onto a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, errors.New().WithData(errors.ErrInvalidLogLevel, level)
	}
}

// With returns a child logger tagged with a component name.
func (l *Logger) With(component string) *Logger {
	return &Logger{log: l.log.With().Str("component", component).Logger()}
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Logger) Debug() *LogEvent {
	return &LogEvent{l.log.Debug()}
}

func (l *Logger) Info() *LogEvent {
	return &LogEvent{l.log.Info()}
}

func (l *Logger) Warn() *LogEvent {
	return &LogEvent{l.log.Warn()}
}

func (l *Logger) Error() *LogEvent {
	return &LogEvent{l.log.Error()}
}

// ErrorWithCode logs err at error level, tagged with its code when it has one.
func (l *Logger) ErrorWithCode(err error) *LogEvent {
	e := l.log.Error().Err(err)
	if code, ok := errors.CodeOf(err); ok {
		e = e.Str("error_code", string(code))
	}
	return &LogEvent{e}
}

// Fatal logs a fatal message and exits the program
func (l *Logger) Fatal() *LogEvent {
	return &LogEvent{l.log.Fatal()}
}
