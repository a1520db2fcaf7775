package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapErrorKeepsType(t *testing.T) {
	base := NewModelFormatError("classification response is not JSON", stderrors.New("unexpected token"))
	wrapped := WrapError(base, "ingest note", ErrorTypeError)

	require.Error(t, wrapped)
	assert.True(t, IsModelFormatError(wrapped))
	assert.Contains(t, wrapped.Error(), "ingest note")

	var appErr *AppError
	require.True(t, stderrors.As(wrapped, &appErr))
	assert.Equal(t, "MODEL_FORMAT_ERROR", appErr.Code)
}

func TestWrapErrorPlain(t *testing.T) {
	assert.Nil(t, WrapError(nil, "x", ErrorTypeError))

	err := WrapError(stderrors.New("dial tcp: refused"), "generate", ErrorTypeTransport)
	assert.True(t, IsTransportError(err))
	assert.False(t, IsValidationError(err))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[*AppError]int{
		NewValidationError("missing text", nil):  http.StatusBadRequest,
		NewNotFoundError("chapter", nil):         http.StatusNotFound,
		NewUnauthorizedError("token", nil):       http.StatusUnauthorized,
		NewModelFormatError("bad json", nil):     http.StatusBadGateway,
		NewTransportError("timeout", nil):        http.StatusBadGateway,
		NewProcessingError("commit failed", nil): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, err.HTTPStatus(), err.Message)
	}
}
