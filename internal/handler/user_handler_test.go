package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"invoicedesk/internal/apperror"
	"invoicedesk/internal/middleware"
	"invoicedesk/internal/model"
	"invoicedesk/internal/repository"
	"invoicedesk/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type fakeUserService struct {
	loggedOut  string
	refreshed  string
	registered service.RegisterRequest
}

func (f *fakeUserService) Login(_ context.Context, req service.LoginRequest) (*service.TokenResponse, error) {
	if req.Password != "secret" {
		return nil, apperror.ErrInvalidCredentials
	}
	return &service.TokenResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (f *fakeUserService) Refresh(_ context.Context, token string) (*service.TokenResponse, error) {
	f.refreshed = token
	if token != "refresh" {
		return nil, apperror.ErrInvalidToken
	}
	return &service.TokenResponse{AccessToken: "access2", RefreshToken: "refresh2"}, nil
}

func (f *fakeUserService) Logout(_ context.Context, token string) error {
	f.loggedOut = token
	return nil
}

func (f *fakeUserService) Register(_ context.Context, p model.Principal, req service.RegisterRequest) (*service.UserResponse, error) {
	f.registered = req
	return &service.UserResponse{Username: req.Username, Role: req.Role}, nil
}

func (f *fakeUserService) Me(_ context.Context, p model.Principal) (*service.UserResponse, error) {
	return &service.UserResponse{Username: p.Username, Role: p.Role}, nil
}

func (f *fakeUserService) Authenticate(token string) (model.Principal, error) {
	return testTokens.Parse(token)
}

type fakeAuditService struct{ filter repository.AuditFilter }

func (f *fakeAuditService) GetAuditLogs(_ context.Context, _ model.Principal, filter repository.AuditFilter, page, limit int) (*service.AuditPage, error) {
	f.filter = filter
	return &service.AuditPage{Logs: []service.AuditLogResponse{{ID: 1, Action: filter.Action}}, Total: 1, Pages: 1, Page: page, Limit: limit}, nil
}

func newUserRouter(svc *fakeUserService, audit *fakeAuditService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := middleware.NewAuth(testTokens, false, time.Minute, time.Hour)
	r := gin.New()
	NewUserHandler(svc, auth, zap.NewNop()).RegisterRoutes(r.Group(""))
	NewAuditHandler(audit, auth, zap.NewNop()).RegisterRoutes(r.Group(""))
	return r
}

func TestLoginSetsCookies(t *testing.T) {
	r := newUserRouter(&fakeUserService{}, &fakeAuditService{})

	w := do(r, http.MethodPost, "/login", "", []byte(`{"username":"admin","password":"secret"}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d body = %s", w.Code, w.Body.String())
	}
	names := map[string]bool{}
	for _, ck := range w.Result().Cookies() {
		names[ck.Name] = ck.HttpOnly
	}
	if !names[middleware.AccessTokenCookie] || !names[middleware.RefreshTokenCookie] {
		t.Fatalf("cookies = %v", names)
	}

	w = do(r, http.MethodPost, "/login", "", []byte(`{"username":"admin","password":"nope"}`), "application/json")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password code = %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/login", "", []byte(`{}`), "application/json"); w.Code != http.StatusBadRequest {
		t.Fatalf("empty body code = %d", w.Code)
	}
}

func TestRefreshPrefersCookie(t *testing.T) {
	svc := &fakeUserService{}
	r := newUserRouter(svc, &fakeAuditService{})

	req := httptest.NewRequest(http.MethodPost, "/refresh", strings.NewReader(`{"refresh_token":"other"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: middleware.RefreshTokenCookie, Value: "refresh"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || svc.refreshed != "refresh" {
		t.Fatalf("code = %d refreshed = %q", w.Code, svc.refreshed)
	}

	w = do(r, http.MethodPost, "/refresh", "", []byte(`{"refresh_token":"stale"}`), "application/json")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("stale code = %d", w.Code)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	svc := &fakeUserService{}
	r := newUserRouter(svc, &fakeAuditService{})

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.RefreshTokenCookie, Value: "refresh"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || svc.loggedOut != "refresh" {
		t.Fatalf("code = %d logged out = %q", w.Code, svc.loggedOut)
	}
}

func TestRegisterAndMe(t *testing.T) {
	svc := &fakeUserService{}
	r := newUserRouter(svc, &fakeAuditService{})
	body := []byte(`{"username":"gate2","password":"pw","role":"gate"}`)

	if w := do(r, http.MethodPost, "/register", "store", body, "application/json"); w.Code != http.StatusForbidden {
		t.Fatalf("store register code = %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/register", "admin", body, "application/json"); w.Code != http.StatusCreated || svc.registered.Username != "gate2" {
		t.Fatalf("admin register code = %d", w.Code)
	}

	w := do(r, http.MethodGet, "/me", "gate", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"username":"gate"`) {
		t.Fatalf("me: code = %d body = %s", w.Code, w.Body.String())
	}
}

func TestAuditLogsRoute(t *testing.T) {
	audit := &fakeAuditService{}
	r := newUserRouter(&fakeUserService{}, audit)

	if w := do(r, http.MethodGet, "/audit_logs", "store", nil, ""); w.Code != http.StatusForbidden {
		t.Fatalf("store code = %d", w.Code)
	}
	w := do(r, http.MethodGet, "/audit_logs?action=APPROVE_INVOICE&division=north&page=2", "admin", nil, "")
	if w.Code != http.StatusOK || audit.filter.Action != "APPROVE_INVOICE" || audit.filter.Division != "north" {
		t.Fatalf("code = %d filter = %+v", w.Code, audit.filter)
	}
	if !strings.Contains(w.Body.String(), `"current_page":2`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}
