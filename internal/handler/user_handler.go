package handler

import (
	"net/http"

	"invoicedesk/internal/middleware"
	"invoicedesk/internal/model"
	"invoicedesk/internal/service"
	"invoicedesk/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	userService service.UserService
	auth        *middleware.Auth
	log         *zap.Logger
}

// NewUserHandler sets up the routing dependencies for the authentication endpoints
func NewUserHandler(userService service.UserService, auth *middleware.Auth, log *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, auth: auth, log: log.Named("user_handler")}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Public routes
	router.POST("/login", h.Login)
	router.POST("/refresh", h.RefreshToken)
	router.POST("/logout", h.Logout)

	router.GET("/me", h.auth.RequireAuth(), h.GetMe)
	router.POST("/register", h.auth.RequireRole(model.RoleAdmin), h.Register)
}

// Login handles POST /login and sets the token cookies.
// @Summary      Login user
// @Description  Authenticates by username and password, returning an access and a refresh token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	tokenRes, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.auth.SetTokenCookies(c, tokenRes.AccessToken, tokenRes.RefreshToken)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokenRes))
}

// RefreshToken handles POST /refresh, reading the refresh token from its cookie or,
// failing that, from the JSON body.
// @Summary      Refresh tokens
// @Description  Consumes a refresh token and issues a new token pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RefreshTokenRequest  false  "Refresh token when no cookie is sent"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      401      {object}  response.Response
// @Router       /refresh [post]
func (h *UserHandler) RefreshToken(c *gin.Context) {
	refreshToken, cookieErr := c.Cookie(middleware.RefreshTokenCookie)
	if cookieErr != nil || refreshToken == "" {
		var req service.RefreshTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
			return
		}
		refreshToken = req.RefreshToken
	}

	tokenRes, err := h.userService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		h.auth.ClearTokenCookies(c)
		respondError(c, h.log, err)
		return
	}

	h.auth.SetTokenCookies(c, tokenRes.AccessToken, tokenRes.RefreshToken)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokenRes))
}

// Logout handles POST /logout: the refresh token is revoked and the cookies cleared.
// @Summary      Logout user
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /logout [post]
func (h *UserHandler) Logout(c *gin.Context) {
	if refreshToken, err := c.Cookie(middleware.RefreshTokenCookie); err == nil {
		if err := h.userService.Logout(c.Request.Context(), refreshToken); err != nil {
			h.log.Warn("failed to revoke refresh token", zap.Error(err))
		}
	}
	h.auth.ClearTokenCookies(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Logged out"))
}

// GetMe handles GET /me to return current authenticated user based on JWT
// @Summary      Current user
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      401  {object}  response.Response
// @Router       /me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.userService.Me(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// Register handles POST /register; admins create users of any role.
// @Summary      Register user
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RegisterRequest  true  "New user"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /register [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	user, err := h.userService.Register(c.Request.Context(), middleware.Principal(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, user))
}
