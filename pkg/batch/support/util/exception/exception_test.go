package exception_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
)

func TestNewBatchError(t *testing.T) {
	originalErr := errors.New("connection refused")
	be := exception.NewBatchError("snapshot_publish", "failed to open transaction", originalErr, false, true)

	assert.Equal(t, "snapshot_publish", be.Module)
	assert.Equal(t, originalErr, be.Unwrap())
	assert.True(t, be.IsRetryable())
	assert.False(t, be.IsSkippable())
	assert.Equal(t, "[snapshot_publish] failed to open transaction: connection refused", be.Error())
	assert.NotEmpty(t, be.StackTrace)
}

func TestNewBatchErrorf(t *testing.T) {
	be := exception.NewBatchErrorf("reader", "row %d has %d columns", 7, 3)
	assert.Equal(t, "[reader] row 7 has 3 columns", be.Error())
	assert.Nil(t, be.Unwrap())

	cause := sql.ErrNoRows
	wrapped := exception.NewBatchErrorf("reader", "object %q missing", "telemetry.csv", cause)
	assert.Equal(t, `object "telemetry.csv" missing`, wrapped.Message)
	assert.ErrorIs(t, wrapped, sql.ErrNoRows)
	assert.False(t, wrapped.IsRetryable())
}

func TestIsTemporary(t *testing.T) {
	assert.False(t, exception.IsTemporary(nil))
	assert.True(t, exception.IsTemporary(exception.NewBatchError("m", "x", nil, false, true)))
	assert.True(t, exception.IsTemporary(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.True(t, exception.IsTemporary(sql.ErrConnDone))
	assert.False(t, exception.IsTemporary(errors.New("bad row")))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, exception.IsFatal(nil))
	assert.True(t, exception.IsFatal(context.Canceled))
	assert.True(t, exception.IsFatal(exception.NewBatchError("m", "x", nil, false, false)))
	assert.False(t, exception.IsFatal(exception.NewBatchError("m", "x", nil, true, false)))
	assert.False(t, exception.IsFatal(errors.New("plain")))
}

func TestExtractErrorMessage(t *testing.T) {
	inner := exception.NewBatchError("geo", "reference table empty", nil, false, false)
	outer := exception.NewBatchError("step", "loadReference failed", inner, false, false)

	assert.Equal(t, "reference table empty", exception.ExtractErrorMessage(outer))
	assert.Equal(t, "plain", exception.ExtractErrorMessage(errors.New("plain")))
	assert.Equal(t, "", exception.ExtractErrorMessage(nil))
}
