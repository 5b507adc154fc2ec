package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func newTestManager(t *testing.T) *SessionManager {
	t.Helper()
	sm, err := NewSessionManager("0123456789abcdef0123456789abcdef", "roomhub-test", "", false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return sm
}

func TestNewSessionManager_EmptyKeySecure(t *testing.T) {
	if _, err := NewSessionManager("", "s", "", true, zap.NewNop()); err == nil {
		t.Error("expected error for empty key in secure mode")
	}
}

func TestNewSessionManager_EmptyKeyDev(t *testing.T) {
	if _, err := NewSessionManager("", "s", "", false, zap.NewNop()); err != nil {
		t.Errorf("dev mode should generate a key, got error: %v", err)
	}
}

func TestCurrentUser_Absent(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if _, ok := CurrentUser(r); ok {
		t.Error("expected no user on a bare request")
	}
}

func TestWithUser(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r = WithUser(r, &SessionUser{ID: "abc", Role: "user"})
	u, ok := CurrentUser(r)
	if !ok || u.ID != "abc" {
		t.Errorf("CurrentUser = %+v, %v; want user abc", u, ok)
	}
}

func TestSignInRoundTrip(t *testing.T) {
	sm := newTestManager(t)

	// Sign in and capture the cookie.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/users/login", nil)
	err := sm.SignIn(rec, req, &SessionUser{ID: "507f1f77bcf86cd799439011", Name: "Ada", Email: "ada@example.com", Role: "user"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}

	// Replay the cookie through LoadSessionUser (no fetcher: cookie fields used).
	var got *SessionUser
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CurrentUser(r)
	}))
	req2 := httptest.NewRequest("GET", "/", nil)
	for _, c := range cookies {
		req2.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), req2)

	if got == nil || got.ID != "507f1f77bcf86cd799439011" || got.Role != "user" {
		t.Errorf("loaded user = %+v, want Ada's session", got)
	}
}

type staticFetcher struct{ u *SessionUser }

func (f staticFetcher) FetchUser(_ context.Context, _ string) *SessionUser { return f.u }

func TestLoadSessionUser_FetcherOverridesCookie(t *testing.T) {
	sm := newTestManager(t)
	sm.SetUserFetcher(staticFetcher{u: &SessionUser{ID: "x", Role: "admin"}})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/users/login", nil)
	if err := sm.SignIn(rec, req, &SessionUser{ID: "x", Role: "user"}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	var got *SessionUser
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CurrentUser(r)
	}))
	req2 := httptest.NewRequest("GET", "/", nil)
	for _, c := range rec.Result().Cookies() {
		req2.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), req2)

	if got == nil || got.Role != "admin" {
		t.Errorf("loaded user = %+v, want fetcher's admin", got)
	}
}

func TestLoadSessionUser_StaleSession(t *testing.T) {
	sm := newTestManager(t)
	sm.SetUserFetcher(staticFetcher{u: nil}) // user deleted since sign-in

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/users/login", nil)
	if err := sm.SignIn(rec, req, &SessionUser{ID: "gone", Role: "user"}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	called := false
	var found bool
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, found = CurrentUser(r)
	}))
	req2 := httptest.NewRequest("GET", "/", nil)
	for _, c := range rec.Result().Cookies() {
		req2.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), req2)

	if !called {
		t.Fatal("next handler not called")
	}
	if found {
		t.Error("stale session should not yield a user")
	}
}

func TestRequireSignedIn(t *testing.T) {
	sm := newTestManager(t)
	h := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	// Anonymous → 401
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: got %d, want 401", rec.Code)
	}

	// Signed in → passes through
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, WithUser(httptest.NewRequest("GET", "/", nil), &SessionUser{ID: "u", Role: "user"}))
	if rec.Code != http.StatusNoContent {
		t.Errorf("signed in: got %d, want 204", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	sm := newTestManager(t)
	h := sm.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name string
		user *SessionUser
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"wrong role", &SessionUser{ID: "u", Role: "user"}, http.StatusForbidden},
		{"admin", &SessionUser{ID: "a", Role: "admin"}, http.StatusNoContent},
		{"case insensitive", &SessionUser{ID: "a", Role: "Admin"}, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.user != nil {
				req = WithUser(req, tt.user)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
