package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	t.Parallel()

	base := New(CodeNotFound, "record not found")
	wrapped := fmt.Errorf("lookup memory: %w", New(CodeNotFound, "no memory for slug"))
	if !stderrors.Is(wrapped, base) {
		t.Fatal("expected errors with the same code to match")
	}

	other := New(CodeSlugConflict, "slug taken")
	if stderrors.Is(wrapped, other) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("disk full")
	err := Wrap(CodePersistenceError, "insert memory", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code Code
		want int
	}{
		{CodeMemoryTitleRequired, http.StatusBadRequest},
		{CodeMemoryDraftPayloadBroken, http.StatusBadRequest},
		{CodePhotoUnsupportedMediaType, http.StatusUnsupportedMediaType},
		{CodePhotoTooLarge, http.StatusRequestEntityTooLarge},
		{CodeNotFound, http.StatusNotFound},
		{CodeSlugConflict, http.StatusConflict},
		{CodeSlugAllocationExhausted, http.StatusConflict},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeGatewayUnavailable, http.StatusBadGateway},
		{CodeUnknown, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Fatalf("HTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
