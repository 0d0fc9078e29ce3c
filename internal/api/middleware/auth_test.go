package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/campusgate/access-core/internal/core/domain"
)

type stubValidator struct {
	identity *domain.Identity
	err      error
	gotToken string
}

func (s *stubValidator) Validate(_ context.Context, token string) (*domain.Identity, error) {
	s.gotToken = token
	return s.identity, s.err
}

func runAuth(t *testing.T, header string, v CredentialValidator, next echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := Authenticate(v)(next)(c)
	return rec, err
}

func TestAuthenticate_ValidToken(t *testing.T) {
	v := &stubValidator{identity: &domain.Identity{
		UserID: "u1",
		Roles:  []domain.RoleClaim{{ID: "r1", Name: "Admin", SystemRole: domain.SystemRoleAdmin}},
	}}

	called := false
	rec, err := runAuth(t, "Bearer tok-123", v, func(c echo.Context) error {
		called = true
		id, ok := IdentityFrom(c)
		if !ok || id.UserID != "u1" || !id.HasSystemRole(domain.SystemRoleAdmin) {
			t.Fatalf("identity not injected: %+v", id)
		}
		return c.NoContent(http.StatusOK)
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("next not called, code %d", rec.Code)
	}
	if v.gotToken != "tok-123" {
		t.Fatalf("unexpected token passed: %q", v.gotToken)
	}
}

func TestAuthenticate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		header string
		v      *stubValidator
		want   error
	}{
		{name: "missing header", v: &stubValidator{}},
		{name: "wrong scheme", header: "Token abc", v: &stubValidator{}},
		{name: "empty bearer", header: "Bearer  ", v: &stubValidator{}},
		{name: "invalid token", header: "Bearer bad", v: &stubValidator{err: domain.ErrInvalidCredential}, want: domain.ErrInvalidCredential},
		{name: "expired token", header: "Bearer old", v: &stubValidator{err: domain.ErrCredentialExpired}, want: domain.ErrCredentialExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runAuth(t, tc.header, tc.v, func(echo.Context) error {
				t.Fatal("should not reach next")
				return nil
			})
			if tc.want != nil {
				if !errors.Is(err, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, err)
				}
				return
			}
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %v", err)
			}
		})
	}
}
