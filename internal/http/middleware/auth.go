package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/danmainah/resolveit-app/internal/access"
	"github.com/danmainah/resolveit-app/internal/http/response"
)

// Context ключи для gin.Context.
const (
	ContextPrincipalKey = "principal"
)

// TokenParser проверяет access токен.
type TokenParser interface {
	ParseAccess(token string) (access.Principal, error)
}

// AuthMiddleware проверяет JWT access токен и кладёт участника запроса в контекст.
func AuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			response.Unauthorized(c, "требуется авторизация")
			return
		}

		principal, err := tokens.ParseAccess(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			response.Unauthorized(c, "токен невалиден")
			return
		}

		c.Set(ContextPrincipalKey, principal)
		c.Next()
	}
}

// CurrentPrincipal возвращает участника запроса, установленного AuthMiddleware.
func CurrentPrincipal(c *gin.Context) (access.Principal, bool) {
	raw, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return access.Principal{}, false
	}
	p, ok := raw.(access.Principal)
	return p, ok
}
