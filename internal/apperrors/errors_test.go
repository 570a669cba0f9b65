package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("delete category: %w", Conflict("category %q in use", "Skins"))

	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, `category "Skins" in use`, Message(err))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := Wrap(KindTransport, cause, "list purchases")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, "store unavailable, re-check current state", Message(err))
}

func TestPartialFailureError(t *testing.T) {
	err := error(&PartialFailureError{
		PurchaseID: "p1",
		Applied:    "rejected",
		Cause:      NotFound("cannot process refund"),
	})

	assert.ErrorIs(t, err, ErrPartialFailure)
	assert.Equal(t, KindPartialFailure, KindOf(err))
	assert.Contains(t, Message(err), "p1")
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindOf(err)))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindTransport, http.StatusServiceUnavailable},
		{"", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.kind))
		})
	}
}

func TestKindOfUntyped(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestErrorAccessors(t *testing.T) {
	cause := errors.New("tx closed")
	err := Wrap(KindNotFound, cause, "purchase p1 not found")

	assert.Equal(t, KindNotFound, err.Kind())
	assert.Equal(t, "purchase p1 not found", err.Message())
	assert.Equal(t, "NOT_FOUND: purchase p1 not found: tx closed", err.Error())
	assert.Equal(t, cause, err.Unwrap())

	assert.Equal(t, "CONFLICT: category in use", Conflict("category in use").Error())

	var empty *Error
	assert.Equal(t, Kind(""), empty.Kind())
	assert.Empty(t, empty.Message())
	assert.Empty(t, empty.Error())
	assert.NoError(t, empty.Unwrap())
}
