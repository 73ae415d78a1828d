package errors

// ErrorCode identifies a failure class. Codes are stable strings so they
// can be logged and matched across package boundaries.
type ErrorCode string

// Message returns the registered human readable text for c, or c itself.
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return string(c)
}

// Error is a coded error optionally carrying a cause or data.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	Data() any
	Unwrap() error
}

type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
