package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/apnisec/apiserver/internal/auth"
	"github.com/apnisec/apiserver/internal/notify"
	"github.com/apnisec/apiserver/internal/services"
	"github.com/apnisec/apiserver/internal/store"
	"github.com/apnisec/apiserver/types"
	"github.com/go-chi/chi/v5"
)

type fakeUserRepo struct {
	users  map[string]types.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]types.User), nextID: 1}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	for _, user := range r.users {
		if user.ID == id {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	user, ok := r.users[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) Create(ctx context.Context, email, passwordHash string) (types.User, error) {
	user := types.User{
		ID:           r.nextID,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	r.nextID++
	r.users[email] = user
	return user, nil
}

type noopNotifier struct{}

func (noopNotifier) Dispatch(notify.Event) {}

func newAuthTestRouter(t *testing.T) (*chi.Mux, *fakeUserRepo) {
	t.Helper()
	repo := newFakeUserRepo()
	svc := services.NewAuthService(repo, noopNotifier{}, testJWTSecret, time.Hour)

	rl := NewRateLimiter(1000, time.Minute)
	t.Cleanup(rl.Stop)

	router := chi.NewRouter()
	router.Route("/api/auth", func(r chi.Router) {
		AuthRouter(r, svc, RequireAuth(testJWTSecret), rl.Middleware())
	})
	return router, repo
}

func postJSON(t *testing.T, router http.Handler, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) types.APIResponse {
	t.Helper()
	var body types.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return body
}

func TestRegisterEndpoint(t *testing.T) {
	router, _ := newAuthTestRouter(t)

	rec := postJSON(t, router, "/api/auth/register", `{"email":"alice@example.com","password":"hunter42"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeEnvelope(t, rec)
	if !body.Success || body.Message != "User registered successfully" {
		t.Fatalf("unexpected envelope %+v", body)
	}

	data, ok := body.Data.(map[string]any)
	if !ok {
		t.Fatalf("data is %T", body.Data)
	}
	if token, _ := data["token"].(string); token == "" {
		t.Fatal("expected a token in data")
	}
	user, ok := data["user"].(map[string]any)
	if !ok || user["email"] != "alice@example.com" {
		t.Fatalf("unexpected user payload %+v", data["user"])
	}
	if _, leaked := user["password"]; leaked {
		t.Fatal("password hash leaked in response")
	}
}

func TestRegisterEndpointValidation(t *testing.T) {
	router, _ := newAuthTestRouter(t)

	cases := []struct {
		name    string
		body    string
		message string
	}{
		{"bad email", `{"email":"not-an-email","password":"hunter42"}`, "Please provide a valid email address"},
		{"short password", `{"email":"a@b.com","password":"ab1"}`, "Password must be at least 6 characters long"},
		{"no letter", `{"email":"a@b.com","password":"1234567"}`, "Password must contain at least one letter"},
		{"no number", `{"email":"a@b.com","password":"abcdefg"}`, "Password must contain at least one number"},
		{"missing body", `{}`, "Email is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, router, "/api/auth/register", tc.body, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d", rec.Code)
			}
			if body := decodeEnvelope(t, rec); body.Error != tc.message {
				t.Fatalf("error = %q, want %q", body.Error, tc.message)
			}
		})
	}
}

func TestLoginEndpoint(t *testing.T) {
	router, _ := newAuthTestRouter(t)

	if rec := postJSON(t, router, "/api/auth/register", `{"email":"bob@example.com","password":"hunter42"}`, ""); rec.Code != http.StatusCreated {
		t.Fatalf("register status %d", rec.Code)
	}

	rec := postJSON(t, router, "/api/auth/login", `{"email":"bob@example.com","password":"hunter42"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeEnvelope(t, rec); !body.Success || body.Message != "Login successful" {
		t.Fatalf("unexpected envelope %+v", body)
	}

	bad := postJSON(t, router, "/api/auth/login", `{"email":"bob@example.com","password":"wrong42x"}`, "")
	if bad.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status %d", bad.Code)
	}
	if body := decodeEnvelope(t, bad); body.Error != "Invalid email or password" {
		t.Fatalf("error = %q", body.Error)
	}
}

func TestMeEndpoint(t *testing.T) {
	router, repo := newAuthTestRouter(t)

	user, err := repo.Create(context.Background(), "carol@example.com", "hash")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, err := auth.IssueToken(user.ID, user.Email, []byte(testJWTSecret), time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeEnvelope(t, rec)
	data, ok := body.Data.(map[string]any)
	if !ok || data["email"] != "carol@example.com" {
		t.Fatalf("unexpected data %+v", body.Data)
	}

	anon := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	recAnon := httptest.NewRecorder()
	router.ServeHTTP(recAnon, anon)
	if recAnon.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status %d", recAnon.Code)
	}
}

func TestLogoutEndpoint(t *testing.T) {
	router, repo := newAuthTestRouter(t)

	user, err := repo.Create(context.Background(), "dave@example.com", "hash")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, err := auth.IssueToken(user.ID, user.Email, []byte(testJWTSecret), time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	rec := postJSON(t, router, "/api/auth/logout", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if body := decodeEnvelope(t, rec); body.Message != "Logout successful" {
		t.Fatalf("unexpected envelope %+v", body)
	}
}
