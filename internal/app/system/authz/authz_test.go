package authz

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/roomhub/internal/app/system/auth"
)

func TestUserCtx_Anonymous(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	role, name, _, ok := UserCtx(r)
	if ok {
		t.Fatal("anonymous request should not yield a user")
	}
	if role != "visitor" || name != "" {
		t.Errorf("got role=%q name=%q, want visitor role and empty name", role, name)
	}
}

func TestUserCtx_MalformedID(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r = auth.WithUser(r, &auth.SessionUser{ID: "not-hex", Role: "admin"})
	if _, _, _, ok := UserCtx(r); ok {
		t.Error("malformed session user ID must fail closed")
	}
}

func TestUserCtx_Valid(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r = auth.WithUser(r, &auth.SessionUser{ID: "507f1f77bcf86cd799439011", Name: "Ada", Role: "Admin"})
	role, name, uid, ok := UserCtx(r)
	if !ok {
		t.Fatal("expected a valid user")
	}
	if role != "admin" {
		t.Errorf("role = %q, want lowercased admin", role)
	}
	if name != "Ada" {
		t.Errorf("name = %q, want Ada", name)
	}
	if uid.Hex() != "507f1f77bcf86cd799439011" {
		t.Errorf("uid = %s", uid.Hex())
	}
}

func TestIsAdminIsUser(t *testing.T) {
	admin := auth.WithUser(httptest.NewRequest("GET", "/", nil),
		&auth.SessionUser{ID: "507f1f77bcf86cd799439011", Role: "admin"})
	user := auth.WithUser(httptest.NewRequest("GET", "/", nil),
		&auth.SessionUser{ID: "507f1f77bcf86cd799439012", Role: "user"})

	if !IsAdmin(admin) || IsAdmin(user) {
		t.Error("IsAdmin misclassified")
	}
	if !IsUser(user) || IsUser(admin) {
		t.Error("IsUser misclassified")
	}
}
