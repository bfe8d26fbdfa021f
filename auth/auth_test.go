package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAuth(t *testing.T) {
	apiKeyToUserName := map[string]string{
		"test-api-key-1": "user-1",
		"test-api-key-2": "user-2",
	}
	tests := []struct {
		name           string
		req            func() *http.Request
		expectedStatus int
		expectedUser   string
	}{
		{
			name:           "no auth header returns 401",
			req:            func() *http.Request { return httptest.NewRequest("POST", "/api/chat", nil) },
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "auth header not in map returns 401",
			req: func() *http.Request {
				req := httptest.NewRequest("POST", "/api/chat", nil)
				req.Header.Set("Authorization", "Bearer not-in-map")
				return req
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "auth header in map returns 200",
			req: func() *http.Request {
				req := httptest.NewRequest("POST", "/api/chat", nil)
				req.Header.Set("Authorization", "Bearer test-api-key-1")
				return req
			},
			expectedStatus: http.StatusOK,
			expectedUser:   "user-1",
		},
		{
			name: "auth header doesn't need Bearer prefix",
			req: func() *http.Request {
				req := httptest.NewRequest("POST", "/api/chat", nil)
				req.Header.Set("Authorization", "test-api-key-2")
				return req
			},
			expectedStatus: http.StatusOK,
			expectedUser:   "user-2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var user string
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var ok bool
				user, ok = GetUser(r)
				if !ok {
					t.Error("expected user to be set")
				}
				w.WriteHeader(http.StatusOK)
			})

			auth := New(apiKeyToUserName, h)
			w := httptest.NewRecorder()
			auth.ServeHTTP(w, tt.req())
			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if user != tt.expectedUser {
				t.Errorf("expected user to be %s, got %s", tt.expectedUser, user)
			}
		})
	}
}

func TestOptional(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("without a keys file requests are not authenticated", func(t *testing.T) {
		h, err := Optional("", next)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("POST", "/api/chat", nil))
		if w.Code != http.StatusNoContent {
			t.Errorf("expected status %d, got %d", http.StatusNoContent, w.Code)
		}
	})
	t.Run("with a keys file requests must carry a key", func(t *testing.T) {
		name := filepath.Join(t.TempDir(), "apikeys.json")
		if err := os.WriteFile(name, []byte(`{"key-1":"user-1"}`), 0600); err != nil {
			t.Fatalf("failed to write keys file: %v", err)
		}
		h, err := Optional(name, next)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("POST", "/api/chat", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
		}
	})
	t.Run("a missing keys file is an error", func(t *testing.T) {
		if _, err := Optional(filepath.Join(t.TempDir(), "missing.json"), next); err == nil {
			t.Error("expected error, got nil")
		}
	})
}

func TestLoadFromFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "apikeys.json")
	if err := os.WriteFile(name, []byte(`{"key-1":"user-1","key-2":"user-2"}`), 0600); err != nil {
		t.Fatalf("failed to write keys file: %v", err)
	}
	actual, err := LoadFromFile(name)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"key-1": "user-1", "key-2": "user-2"}, actual); diff != "" {
		t.Error(diff)
	}

	invalid := filepath.Join(t.TempDir(), "invalid.json")
	if err := os.WriteFile(invalid, []byte(`[]`), 0600); err != nil {
		t.Fatalf("failed to write keys file: %v", err)
	}
	if _, err = LoadFromFile(invalid); err == nil {
		t.Error("expected error decoding a JSON array, got nil")
	}
}
