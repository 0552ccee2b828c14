package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_HTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, KindInvalidInput.HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, KindUnauthorized.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, KindNotFound.HTTPStatus())
	assert.Equal(t, http.StatusConflict, KindConflict.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindInternal.HTTPStatus())
}

func TestFrom(t *testing.T) {
	notFound := NotFound("Contact not found")
	wrapped := fmt.Errorf("lookup: %w", notFound)

	assert.Same(t, notFound, From(wrapped))
	assert.Equal(t, KindNotFound, KindOf(wrapped))

	raw := errors.New("connection reset")
	got := From(raw)
	assert.Equal(t, KindInternal, got.Kind)
	assert.ErrorIs(t, got, raw)
	assert.Nil(t, From(nil))
}

func TestError_Is(t *testing.T) {
	sentinel := Unauthorized("Invalid email or password")
	other := Wrap(KindUnauthorized, "Invalid email or password", errors.New("hash mismatch"))

	assert.ErrorIs(t, other, sentinel)
	assert.NotErrorIs(t, Unauthorized("Session not found"), sentinel)
	assert.Equal(t, "Invalid email or password: hash mismatch", other.Error())
}
