package llm

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestParseJSONResponsePlain(t *testing.T) {
	result := ParseJSONResponse(`{"political_relevance": 0.8, "notes": "x"}`)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["political_relevance"] != float64(0.8) {
		t.Errorf("expected 0.8, got %v", result["political_relevance"])
	}
}

func TestParseJSONResponseWithCodeFence(t *testing.T) {
	text := "```json\n{\"key\": \"value\"}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	if result := ParseJSONResponse("not json at all"); result != nil {
		t.Error("expected nil for invalid JSON")
	}
}

func TestParseJSONResponseEmpty(t *testing.T) {
	if result := ParseJSONResponse(""); result != nil {
		t.Error("expected nil for empty string")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"throttled", &StatusError{Code: http.StatusTooManyRequests}, true},
		{"server error", &StatusError{Code: http.StatusBadGateway}, true},
		{"wrapped server error", fmt.Errorf("judge: %w", &StatusError{Code: 503}), true},
		{"auth failure", &StatusError{Code: http.StatusUnauthorized}, false},
		{"bad request", &StatusError{Code: http.StatusBadRequest}, false},
		{"network error", errors.New("connection reset"), true},
		{"no error", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
