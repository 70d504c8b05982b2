package middleware

import (
	"net/http"
	"strings"
	"time"

	"invoicedesk/internal/model"
	"invoicedesk/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	principalKey = "principal"
)

// TokenParser verifies an access token and returns its principal.
type TokenParser interface {
	Parse(token string) (model.Principal, error)
}

// Auth authenticates requests and manages the token cookies.
type Auth struct {
	parser     TokenParser
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewAuth builds the auth middleware. secure switches cookies to SameSite=None and
// Secure, as needed when the frontend is served from another origin over TLS.
func NewAuth(parser TokenParser, secure bool, accessTTL, refreshTTL time.Duration) *Auth {
	return &Auth{parser: parser, secure: secure, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies
func (a *Auth) SetTokenCookies(c *gin.Context, accessToken, refreshToken string) {
	a.setSameSite(c)
	c.SetCookie(AccessTokenCookie, accessToken, int(a.accessTTL.Seconds()), "/", "", a.secure, true)
	c.SetCookie(RefreshTokenCookie, refreshToken, int(a.refreshTTL.Seconds()), "/", "", a.secure, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies
func (a *Auth) ClearTokenCookies(c *gin.Context) {
	a.setSameSite(c)
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", a.secure, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", a.secure, true)
}

func (a *Auth) setSameSite(c *gin.Context) {
	if a.secure {
		c.SetSameSite(http.SameSiteNoneMode)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
}

// RequireAuth accepts any request carrying a valid access token.
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return a.RequireRole()
}

// RequireRole validates the access token and, when roles are given, checks that the
// caller holds one of them. The verified principal is stored on the context.
func (a *Auth) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, msg := bearerOrCookie(c)
		if msg != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, msg))
			return
		}

		p, err := a.parser.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid or expired token"))
			return
		}

		if len(allowedRoles) > 0 && !p.HasRole(allowedRoles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// Principal returns the caller verified by RequireRole, or the zero Principal.
func Principal(c *gin.Context) model.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(model.Principal); ok {
			return p
		}
	}
	return model.Principal{}
}

// bearerOrCookie reads the token from the access_token cookie, falling back to the
// Authorization header. A non-empty message describes why no token was found.
func bearerOrCookie(c *gin.Context) (string, string) {
	if token, err := c.Cookie(AccessTokenCookie); err == nil && token != "" {
		return token, ""
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "Authorization is missing"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", "Invalid authorization format. Expected 'Bearer <token>'"
	}
	return parts[1], ""
}
