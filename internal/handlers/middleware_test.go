package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/apnisec/apiserver/internal/auth"
	"github.com/apnisec/apiserver/types"
)

const testJWTSecret = "handlers-test-secret"

func TestRequireAuth(t *testing.T) {
	var seen AuthUser
	handler := RequireAuth(testJWTSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := userFromContext(r.Context())
		if err != nil {
			t.Fatalf("user missing from context: %v", err)
		}
		seen = user
		w.WriteHeader(http.StatusOK)
	}))

	token, err := auth.IssueToken(42, "a@b.com", []byte(testJWTSecret), time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/issues", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if seen.ID != 42 || seen.Email != "a@b.com" {
		t.Fatalf("unexpected identity %+v", seen)
	}
}

func TestRequireAuthRejections(t *testing.T) {
	handler := RequireAuth(testJWTSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))

	expired, err := auth.IssueToken(42, "a@b.com", []byte(testJWTSecret), -time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	foreign, err := auth.IssueToken(42, "a@b.com", []byte("other-secret"), time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	cases := []struct {
		name    string
		header  string
		message string
	}{
		{"missing header", "", "No token provided"},
		{"not bearer", "Basic abc123", "No token provided"},
		{"empty token", "Bearer ", "No token provided"},
		{"garbage token", "Bearer not.a.jwt", "Invalid or expired token"},
		{"expired token", "Bearer " + expired, "Invalid or expired token"},
		{"wrong secret", "Bearer " + foreign, "Invalid or expired token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/issues", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status %d", rec.Code)
			}
			var body types.APIResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error != tc.message {
				t.Fatalf("error = %q, want %q", body.Error, tc.message)
			}
		})
	}
}
