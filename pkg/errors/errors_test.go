package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"threshold", fmt.Errorf("join: %w", ErrInvalidThreshold), http.StatusBadRequest},
		{"input", ErrInvalidInput, http.StatusBadRequest},
		{"missing collection", fmt.Errorf("loading: %w", ErrCollectionNotFound), http.StatusNotFound},
		{"tokenizer", fmt.Errorf("tokenizing: %w", ErrTokenizer), http.StatusUnprocessableEntity},
		{"storage", fmt.Errorf("publishing: %w", ErrStorage), http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"app error wins", New(ErrStorage, http.StatusConflict, "busy"), http.StatusConflict},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "field %s", "threshold")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid input: field threshold", err.Error())
}
