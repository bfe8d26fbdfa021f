package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/a-h/jsonapi"
	"github.com/google/go-cmp/cmp"
)

func TestChatCompletions(t *testing.T) {
	var received map[string]any
	var receivedHeaders http.Header
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		receivedHeaders = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer s.Close()

	c := New(s.URL, DefaultAPIKeyHeader, "secret")
	stream, err := c.ChatCompletions(context.Background(), []byte(`{"messages":[],"stream":true,"extra":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()
	body, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("failed to read stream: %v", err)
	}

	if string(body) != "data: [DONE]\n\n" {
		t.Errorf("unexpected body %q", string(body))
	}
	if diff := cmp.Diff(map[string]any{"messages": []any{}, "stream": true, "extra": float64(1)}, received); diff != "" {
		t.Errorf("unexpected request body: %v", diff)
	}
	if actual := receivedHeaders.Get("X-Messari-Api-Key"); actual != "secret" {
		t.Errorf("expected API key header %q, got %q", "secret", actual)
	}
	if actual := receivedHeaders.Get("Content-Type"); actual != "application/json" {
		t.Errorf("expected content type %q, got %q", "application/json", actual)
	}
}

func TestChatCompletionsStatusError(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer s.Close()

	c := New(s.URL, DefaultAPIKeyHeader, "")
	_, err := c.ChatCompletions(context.Background(), []byte(`{}`))

	var ise jsonapi.InvalidStatusError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStatusError, got %v", err)
	}
	if ise.Status != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, ise.Status)
	}
	if ise.Body != "invalid api key\n" {
		t.Errorf("unexpected body %q", ise.Body)
	}
}

func TestChatCompletionsTransportError(t *testing.T) {
	s := httptest.NewServer(http.NotFoundHandler())
	url := s.URL
	s.Close()

	c := New(url, DefaultAPIKeyHeader, "")
	_, err := c.ChatCompletions(context.Background(), []byte(`{}`))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var ise jsonapi.InvalidStatusError
	if errors.As(err, &ise) {
		t.Errorf("expected a transport error, got status error %v", ise)
	}
}
