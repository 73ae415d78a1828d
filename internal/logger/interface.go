package logger

// Interface defines the logging operations components depend on.
type Interface interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	ErrorWithCode(err error) *LogEvent
	With(component string) *Logger
}

var _ Interface = (*Logger)(nil)
