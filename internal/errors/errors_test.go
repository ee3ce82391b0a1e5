package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := NewStorageError("cannot open workbook", io.ErrUnexpectedEOF)
	assert.Equal(t, "[STORAGE] cannot open workbook: unexpected EOF", err.Error())

	bare := NewAppValidationError("bad segment type")
	assert.Equal(t, "[VALIDATION] bad segment type", bare.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := NewParsingError("cannot read record", cause)

	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("loading: %w", err)
	var appErr *AppError
	require.ErrorAs(t, wrapped, &appErr)
	assert.Equal(t, ErrTypeParsing, appErr.Type)
}

func TestAppError_WithContext(t *testing.T) {
	err := NewDataQualityError("rows dropped", nil).
		WithContext("dropped", 12).
		WithContext("reason", "missing_id")

	assert.Equal(t, 12, err.Context["dropped"])
	assert.Equal(t, "missing_id", err.Context["reason"])
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("cohort 01/2023")
	assert.Equal(t, ErrTypeNotFound, err.Type)
	assert.Contains(t, err.Message, "cohort 01/2023")
}

func TestNewInsufficientCohortError(t *testing.T) {
	err := NewInsufficientCohortError("03/2023", 4, 10)
	assert.Equal(t, ErrTypeInsufficientCohort, err.Type)
	assert.Contains(t, err.Message, "03/2023")
	assert.Contains(t, err.Message, "below threshold 10")
}

func TestErrorTypeDistinct(t *testing.T) {
	a := NewConfigError("missing column", nil)
	b := NewStorageError("missing file", nil)
	assert.NotEqual(t, a.Type, b.Type)
	assert.False(t, errors.Is(a, b))
}
