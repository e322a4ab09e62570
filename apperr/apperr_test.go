package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := New(NotFound, "orders.Get", "order not found")
	wrapped := fmt.Errorf("loading receipt: %w", base)

	assert.Equal(t, NotFound, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, NotFound))
	assert.Equal(t, "order not found", Message(wrapped))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(BackendUnavailable, "op", nil))
}

func TestRetryable(t *testing.T) {
	err := Wrap(BackendUnavailable, "store.Create", errors.New("connection refused"))
	assert.True(t, Retryable(err))
	assert.False(t, Retryable(New(Validation, "op", "bad")))
	assert.Equal(t, "service temporarily unavailable, please retry", Message(err))
}

func TestPlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
	assert.False(t, IsKind(nil, Internal))
}

func TestWrappedClientErrorsKeepTheirMessage(t *testing.T) {
	conflict := Wrap(Conflict, "store.Create", errors.New("E11000 duplicate key"))
	assert.Equal(t, "conflict: the resource already exists or was changed", Message(conflict))

	invalid := Wrap(Validation, "store.Update", errors.New("cannot marshal"))
	assert.Equal(t, "invalid request", Message(invalid))

	assert.Equal(t, "internal error", Message(errors.New("boom")))
}
