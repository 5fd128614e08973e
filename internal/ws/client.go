package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/danmainah/resolveit-app/internal/access"
	"github.com/danmainah/resolveit-app/internal/events"
	"github.com/danmainah/resolveit-app/internal/goroutine"
	"github.com/danmainah/resolveit-app/internal/logger"
	"github.com/danmainah/resolveit-app/internal/pkg/apperror"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBufferSize = 32
	authorizeWait  = 5 * time.Second
)

// Действия клиента.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Служебные типы ответов клиенту.
const (
	typeSubscribed   = "subscribed"
	typeUnsubscribed = "unsubscribed"
	typeError        = "error"
)

// CaseAuthorizer проверяет право участника читать дело.
type CaseAuthorizer func(ctx context.Context, p access.Principal, caseID uuid.UUID) error

type clientRequest struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

type errorData struct {
	Code    apperror.ErrorCode `json:"code"`
	Message string             `json:"message"`
}

// Client представляет одно подключение WebSocket.
type Client struct {
	conn      *websocket.Conn
	hub       *Hub
	principal access.Principal
	authorize CaseAuthorizer
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// Поля ниже защищены hub.mu.
	initial    []string
	topics     map[string]struct{}
	registered bool
}

// NewClient создаёт клиента. Тема пользователя и, для администратора, тема admin
// подписываются при регистрации в хабе.
func NewClient(conn *websocket.Conn, hub *Hub, principal access.Principal, authorize CaseAuthorizer) *Client {
	initial := []string{events.UserTopic(principal.UserID)}
	if principal.IsAdmin() {
		initial = append(initial, events.AdminTopic)
	}
	return &Client{
		conn:      conn,
		hub:       hub,
		principal: principal,
		authorize: authorize,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
		initial:   initial,
		topics:    make(map[string]struct{}),
	}
}

// Run запускает обработку входящих и исходящих сообщений. Возвращает управление после отключения.
func (c *Client) Run(ctx context.Context) {
	goroutine.SafeGo(c.writePump)
	c.readPump(ctx)
}

// Close отключает клиента. Повторные вызовы ничего не делают.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.hub.Unregister(c)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump(ctx context.Context) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Component("realtime").WithFields(logrus.Fields{
					"user_id": c.principal.UserID,
					"error":   err,
				}).Debug("соединение закрыто")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		var req clientRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			c.replyError(apperror.ErrCodeBadRequest, "некорректное сообщение", "")
			continue
		}
		c.handle(ctx, req)
	}
}

func (c *Client) handle(ctx context.Context, req clientRequest) {
	caseID, ok := events.ParseCaseTopic(req.Topic)

	switch req.Action {
	case ActionSubscribe:
		if !ok {
			c.replyError(apperror.ErrCodeBadRequest, "подписка возможна только на темы дел", req.Topic)
			return
		}

		authCtx, cancel := context.WithTimeout(ctx, authorizeWait)
		err := c.authorize(authCtx, c.principal, caseID)
		cancel()
		if err != nil {
			code := apperror.CodeOf(err)
			if code == "" {
				code = apperror.ErrCodeAccessDenied
			}
			c.replyError(code, "нет доступа к делу", req.Topic)
			return
		}

		c.hub.Subscribe(c, req.Topic)
		c.reply(Message{Type: typeSubscribed, Topic: req.Topic})

	case ActionUnsubscribe:
		if !ok {
			c.replyError(apperror.ErrCodeBadRequest, "отписка возможна только от тем дел", req.Topic)
			return
		}
		c.hub.Unsubscribe(c, req.Topic)
		c.reply(Message{Type: typeUnsubscribed, Topic: req.Topic})

	default:
		c.replyError(apperror.ErrCodeBadRequest, "неизвестное действие", req.Topic)
	}
}

func (c *Client) replyError(code apperror.ErrorCode, message, topic string) {
	c.reply(Message{Type: typeError, Topic: topic, Data: errorData{Code: code, Message: message}})
}

func (c *Client) reply(msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- raw:
	case <-c.done:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
