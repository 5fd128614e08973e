package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/danmainah/resolveit-app/internal/access"
	"github.com/danmainah/resolveit-app/internal/http/middleware"
	"github.com/danmainah/resolveit-app/internal/http/response"
	"github.com/danmainah/resolveit-app/internal/logger"
	"github.com/danmainah/resolveit-app/internal/service"
	"github.com/danmainah/resolveit-app/internal/ws"
)

// WSHandler отвечает за установку WebSocket соединений.
type WSHandler struct {
	hub      *ws.Hub
	tokens   middleware.TokenParser
	cases    *service.CaseStateMachine
	upgrader websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер.
func NewWSHandler(hub *ws.Hub, tokens middleware.TokenParser, cases *service.CaseStateMachine) *WSHandler {
	return &WSHandler{
		hub:    hub,
		tokens: tokens,
		cases:  cases,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle обслуживает GET /api/ws?token=...
func (h *WSHandler) Handle(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		response.Unauthorized(c, "access токен обязателен")
		return
	}

	principal, err := h.tokens.ParseAccess(rawToken)
	if err != nil {
		response.Unauthorized(c, "невалидный access токен")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту при ошибке рукопожатия.
		logger.Component("realtime").WithFields(logrus.Fields{
			"user_id": principal.UserID,
			"error":   err,
		}).Debug("не удалось установить WebSocket соединение")
		return
	}

	client := ws.NewClient(conn, h.hub, principal, h.authorizeCase)
	h.hub.Register(client)

	client.Run(c.Request.Context())
}

// authorizeCase разрешает подписку на дело тем, кто может его читать.
func (h *WSHandler) authorizeCase(ctx context.Context, p access.Principal, caseID uuid.UUID) error {
	_, err := h.cases.GetCase(ctx, p, caseID)
	return err
}
