package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/edgebench/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	f := errors.New()

	err := f.New(errors.ErrUnknownScenario)
	assert.Equal(t, "Unknown scenario", err.Error())
	assert.Equal(t, errors.ErrUnknownScenario, err.Code())

	err = f.WithData(errors.ErrUnknownScenario, "S9")
	assert.Equal(t, "Unknown scenario: S9", err.Error())

	err = f.WithMessage(errors.ErrInvalidConfig, "bad threshold")
	assert.Equal(t, "bad threshold", err.Error())
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := errors.New().Wrap(errors.ErrPersistResults, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to persist results: disk full", err.Error())
}

func TestHasCode(t *testing.T) {
	f := errors.New()
	inner := f.New(errors.ErrTimeout)
	outer := f.Wrap(errors.ErrOperationFailed, inner)

	assert.True(t, errors.HasCode(outer, errors.ErrOperationFailed))
	assert.True(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.False(t, errors.HasCode(outer, errors.ErrUnknownScenario))
	assert.False(t, errors.HasCode(fmt.Errorf("plain"), errors.ErrTimeout))
	assert.False(t, errors.HasCode(nil, errors.ErrTimeout))
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("batch: %w", errors.New().WithData(errors.ErrAlreadyRunning, 42))

	code, ok := errors.CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, errors.ErrAlreadyRunning, code)

	_, ok = errors.CodeOf(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestWithDataKeepsCause(t *testing.T) {
	cause := fmt.Errorf("refused")
	err := errors.New().Wrap(errors.ErrUnavailable, cause).WithData("supervisor")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "supervisor", err.Data())
	assert.Equal(t, "Service unavailable: supervisor", err.Error())
	assert.Equal(t, "Unknown code", errors.ErrorCode("Unknown code").Message())
}
