package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsError(t *testing.T) {
	cause := errors.New("disk full")
	err := &MetricsError{Code: ErrArchive, Message: "upload failed", Err: cause}

	assert.Equal(t, "upload failed: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "archive", err.Code.String())

	wrapped := fmt.Errorf("report: %w", err)
	assert.True(t, HasCode(wrapped, ErrArchive))
	assert.False(t, HasCode(wrapped, ErrInvalidConfig))
	assert.True(t, errors.Is(wrapped, &MetricsError{Code: ErrArchive}))

	var me *MetricsError
	assert.True(t, errors.As(wrapped, &me))
	assert.Equal(t, ErrArchive, me.Code)
}

func TestNew(t *testing.T) {
	err := New(ErrDuplicateListener, "listener %s already registered", "a:1")
	assert.Equal(t, "listener a:1 already registered", err.Error())
	assert.Nil(t, err.Unwrap())
	assert.False(t, HasCode(nil, ErrDuplicateListener))
	assert.Equal(t, "code_99", ErrorCode(99).String())
}
