package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"invoicedesk/internal/apperror"
	"invoicedesk/internal/model"

	"github.com/gin-gonic/gin"
)

type stubParser map[string]model.Principal

func (s stubParser) Parse(token string) (model.Principal, error) {
	if p, ok := s[token]; ok {
		return p, nil
	}
	return model.Principal{}, apperror.ErrInvalidToken
}

func newRouter(a *Auth, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", a.RequireRole(roles...), func(c *gin.Context) {
		c.String(http.StatusOK, Principal(c).Username)
	})
	return r
}

func TestRequireRole(t *testing.T) {
	a := NewAuth(stubParser{
		"gate-token":  {Username: "gate", Role: model.RoleGate},
		"store-token": {Username: "store", Role: model.RoleStore},
	}, false, 0, 0)
	r := newRouter(a, model.RoleStore, model.RoleAdmin)

	cases := []struct {
		name   string
		header string
		cookie string
		code   int
		body   string
	}{
		{name: "missing", code: http.StatusUnauthorized},
		{name: "bad scheme", header: "Token store-token", code: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", code: http.StatusUnauthorized},
		{name: "wrong role", header: "Bearer gate-token", code: http.StatusForbidden},
		{name: "bearer", header: "Bearer store-token", code: http.StatusOK, body: "store"},
		{name: "cookie", cookie: "store-token", code: http.StatusOK, body: "store"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tc.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.code {
				t.Fatalf("code = %d, want %d (%s)", w.Code, tc.code, w.Body.String())
			}
			if tc.body != "" && w.Body.String() != tc.body {
				t.Fatalf("body = %q", w.Body.String())
			}
		})
	}
}

func TestRequireAuthAcceptsAnyRole(t *testing.T) {
	a := NewAuth(stubParser{"t": {Username: "clerk", Role: "auditor"}}, false, 0, 0)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", a.RequireAuth(), func(c *gin.Context) { c.String(http.StatusOK, Principal(c).Role) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer t")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "auditor" {
		t.Fatalf("code = %d body = %q", w.Code, w.Body.String())
	}
}

func TestTokenCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := NewAuth(stubParser{}, true, 15*time.Minute, time.Hour)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	a.SetTokenCookies(c, "access", "refresh")

	cookies := w.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("cookies = %v", cookies)
	}
	for _, ck := range cookies {
		if !ck.HttpOnly || !ck.Secure || ck.SameSite != http.SameSiteNoneMode {
			t.Fatalf("cookie %s flags = %+v", ck.Name, ck)
		}
	}
	if cookies[0].MaxAge != 900 || cookies[1].MaxAge != 3600 {
		t.Fatalf("max ages = %d, %d", cookies[0].MaxAge, cookies[1].MaxAge)
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	a.ClearTokenCookies(c)
	for _, h := range w.Header().Values("Set-Cookie") {
		if !strings.Contains(h, "Max-Age=0") {
			t.Fatalf("cookie not cleared: %s", h)
		}
	}
}
