package errors

import (
	"errors"
	"fmt"
)

var (
	ErrUnrecognizedCodec   = errors.New("unrecognized codec")
	ErrInvalidDirectory    = errors.New("invalid directory")
	ErrTruncatedRecord     = errors.New("truncated record")
	ErrInvalidPosting      = errors.New("invalid posting list")
	ErrCorruptIndex        = errors.New("corrupt index")
	ErrMalformedDictionary = errors.New("malformed dictionary")
	ErrUnknownQueryTerm    = errors.New("unknown query term")
)

// Process exit codes used by the command-line tools.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitUsage      = 2
	ExitBadDir     = 3
	ExitCorruption = 4
)

type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode
	}

	switch {
	case errors.Is(err, ErrUnrecognizedCodec):
		return ExitUsage
	case errors.Is(err, ErrInvalidDirectory):
		return ExitBadDir
	case errors.Is(err, ErrTruncatedRecord),
		errors.Is(err, ErrCorruptIndex),
		errors.Is(err, ErrMalformedDictionary):
		return ExitCorruption
	default:
		return ExitFailure
	}
}
