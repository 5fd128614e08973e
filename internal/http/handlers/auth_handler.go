package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/danmainah/resolveit-app/internal/http/handlers/common"
	"github.com/danmainah/resolveit-app/internal/http/response"
	"github.com/danmainah/resolveit-app/internal/service"
)

// AuthHandler предоставляет HTTP слой для регистрации и логина.
type AuthHandler struct {
	auth  *service.AuthService
	users *service.UserService
}

// NewAuthHandler создаёт хэндлер.
func NewAuthHandler(auth *service.AuthService, users *service.UserService) *AuthHandler {
	return &AuthHandler{auth: auth, users: users}
}

// Register обрабатывает POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterInput
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// Login обрабатывает POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginInput
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Refresh обрабатывает POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !common.BindJSON(c, &req) {
		return
	}
	if req.RefreshToken == "" {
		response.BadRequest(c, "refresh_token обязателен")
		return
	}

	tokens, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, tokens)
}

// Me обрабатывает GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}

	user, err := h.users.Me(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, user)
}
