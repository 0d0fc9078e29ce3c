package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/service"
	"github.com/campusgate/access-core/internal/core/usecase"
	"github.com/campusgate/access-core/internal/dispatch"
	"github.com/campusgate/access-core/internal/infrastructure/db/memory"
	"github.com/campusgate/access-core/internal/infrastructure/jwt"
)

type server struct {
	e     *echo.Echo
	store *memory.Store
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()
	log := zerolog.Nop()

	store := memory.NewStore()
	users := memory.NewUserStore()

	admin, err := store.CreateRole(ctx, domain.Role{ID: "role-admin", Name: "Admin", SystemRole: domain.SystemRoleAdmin, Active: true})
	if err != nil {
		t.Fatal(err)
	}
	student, err := store.CreateRole(ctx, domain.Role{ID: "role-student", Name: "Student", SystemRole: domain.SystemRoleStudent, Active: true})
	if err != nil {
		t.Fatal(err)
	}
	grant := func(roleID string, k domain.PermissionKey) {
		p, err := store.CreatePermission(ctx, domain.Permission{Action: k.Action, Resource: k.Resource})
		if err != nil {
			t.Fatal(err)
		}
		if err := store.GrantPermissionToRole(ctx, roleID, p.ID); err != nil {
			t.Fatal(err)
		}
	}
	grant(admin.ID, manageRoles)
	grant(admin.ID, viewUsers)
	grant(student.ID, domain.Key(domain.ActionView, domain.ResourceContent))

	signer, err := jwt.NewSigner(jwt.Config{Secret: "router-test-secret", Issuer: "access-core", Audience: "campusgate"})
	if err != nil {
		t.Fatal(err)
	}
	authz := service.NewAuthzService(store, log)
	creds := service.NewCredentialService(store, signer, time.Hour, log)
	menu := service.NewMenuService(memory.NewMenuSource(nil), authz, log)

	reg := dispatch.NewRegistry()
	usecase.NewHandlers(store, authz, creds, menu, log).Register(reg)
	d, err := reg.Build()
	if err != nil {
		t.Fatal(err)
	}

	promReg := prometheus.NewRegistry()
	e := NewRouter(Deps{
		Log:         log,
		Dispatcher:  d,
		Auth:        service.NewAuthService(users, store, domain.SystemRoleStudent, log),
		Credentials: creds,
		Authorizer:  authz,
		Registerer:  promReg,
		Gatherer:    promReg,
	})
	return &server{e: e, store: store}
}

func (s *server) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

// signup registers and logs in, returning the user id and token.
func (s *server) signup(t *testing.T, name string) (string, string) {
	t.Helper()
	body := `{"username":"` + name + `","email":"` + name + `@example.com","password":"correct-horse"}`
	rec := s.do(t, http.MethodPost, "/auth/register", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", name, rec.Code, rec.Body.String())
	}
	var reg struct {
		User domain.User `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reg); err != nil {
		t.Fatal(err)
	}
	return reg.User.ID, s.login(t, name)
}

func (s *server) login(t *testing.T, name string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/login", "", `{"email":"`+name+`@example.com","password":"correct-horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", name, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp.Token
}

func TestRouter_StudentFlow(t *testing.T) {
	s := newServer(t)
	_, token := s.signup(t, "alice")

	rec := s.do(t, http.MethodGet, "/v1/me/permissions", token, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "View:Content") {
		t.Fatalf("expected View:Content, got %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/v1/roles", token, `{"name":"Editor"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/auth/login", "", `{"email":"alice@example.com","password":"wrong-password"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/auth/register", "", `{"username":"alice","email":"alice@example.com","password":"correct-horse"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate email, got %d", rec.Code)
	}
}

func TestRouter_Unauthenticated(t *testing.T) {
	s := newServer(t)

	for _, token := range []string{"", "garbage"} {
		rec := s.do(t, http.MethodGet, "/v1/me", token, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401, got %d", token, rec.Code)
		}
	}
}

func TestRouter_AdminGateUsesLiveRoles(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	aliceID, _ := s.signup(t, "alice")
	rootID, _ := s.signup(t, "root")

	if err := s.store.AssignRoleToUser(ctx, domain.UserRole{UserID: rootID, RoleID: "role-admin", AssignedBy: domain.SystemActor, AssignedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	token := s.login(t, "root")

	rec := s.do(t, http.MethodPost, "/v1/roles", token, `{"name":"Editor"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodPost, "/v1/roles", token, `{"name":"editor"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate role, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/v1/users/"+aliceID+"/roles", token, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Student") {
		t.Fatalf("expected alice's roles, got %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/v1/roles/role-admin/permissions", token, `{"permission":"Fly:Roles"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	// The credential still claims Admin after revocation; the live engine
	// denies anyway.
	if err := s.store.RevokeRoleFromUser(ctx, rootID, "role-admin"); err != nil {
		t.Fatal(err)
	}
	rec = s.do(t, http.MethodPost, "/v1/roles", token, `{"name":"Reviewer"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 after revoke, got %d", rec.Code)
	}
}

func TestRouter_Probes(t *testing.T) {
	s := newServer(t)

	for _, path := range []string{"/health", "/health/ready", "/metrics"} {
		rec := s.do(t, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}
