package apperr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", fmt.Errorf("patient P0001: %w", ErrNotFound), http.StatusNotFound},
		{"invalid state", fmt.Errorf("record R00001: %w", ErrInvalidState), http.StatusConflict},
		{"invalid input", fmt.Errorf("name is required: %w", ErrInvalidInput), http.StatusBadRequest},
		{"configuration", fmt.Errorf("node x: %w", ErrConfiguration), http.StatusInternalServerError},
		{"persistence", fmt.Errorf("save: %w", ErrPersistence), http.StatusInternalServerError},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestToHTTP(t *testing.T) {
	if ToHTTP(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
	err := ToHTTP(fmt.Errorf("record R00001: %w", ErrNotFound))
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T", err)
	}
	if he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", he.Code)
	}
	if he.Message != "record R00001: not found" {
		t.Errorf("unexpected message %v", he.Message)
	}

	orig := echo.NewHTTPError(http.StatusTeapot, "teapot")
	if ToHTTP(orig) != orig {
		t.Error("expected existing HTTPError to pass through")
	}
}
