package openai

import (
	"errors"
	"net/http"
	"testing"

	openai "github.com/openai/openai-go"

	"github.com/HomeGenieAI/homegenie-engine/engine/domain"
)

func TestNewEmbedder_RequiresKey(t *testing.T) {
	if _, err := NewEmbedder("", "text-embedding-3-large"); err == nil {
		t.Fatal("missing key must be rejected")
	}
}

func TestNewEmbedder_UnknownModelRejected(t *testing.T) {
	if _, err := NewEmbedder("sk-test", "imaginary-embed"); err == nil {
		t.Fatal("unknown model must be rejected")
	}
}

func TestNewEmbedder_Defaults(t *testing.T) {
	e, err := NewEmbedder("sk-test", "")
	if err != nil {
		t.Fatal(err)
	}
	if e.Model() != "text-embedding-3-large" || e.Dimensions() != 3072 {
		t.Fatalf("defaults: %s/%d", e.Model(), e.Dimensions())
	}
}

func apiError(status int) *openai.Error {
	req, _ := http.NewRequest(http.MethodPost, "https://api.example.test/v1/embeddings", nil)
	return &openai.Error{
		StatusCode: status,
		Request:    req,
		Response:   &http.Response{StatusCode: status, Request: req},
	}
}

func TestWrapErr_Classification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"bad key", apiError(http.StatusUnauthorized), false},
		{"unknown model", apiError(http.StatusNotFound), false},
		{"bad request", apiError(http.StatusBadRequest), false},
		{"throttled", apiError(http.StatusTooManyRequests), true},
		{"server fault", apiError(http.StatusInternalServerError), true},
		{"transport", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		err := wrapErr("embed", tt.err)
		if got := errors.Is(err, domain.ErrUnavailable); got != tt.retryable {
			t.Errorf("%s: retryable = %v, want %v", tt.name, got, tt.retryable)
		}
		if !errors.Is(err, tt.err) {
			t.Errorf("%s: cause not preserved", tt.name)
		}
	}
}
