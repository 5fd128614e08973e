package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/danmainah/resolveit-app/internal/http/response"
)

// UUIDValidator проверяет, что параметры пути с указанными именами являются валидными UUID.
// Использование: router.GET("/cases/:id", UUIDValidator("id"), handler.GetCase)
func UUIDValidator(paramNames ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range paramNames {
			if _, err := uuid.Parse(c.Param(name)); err != nil {
				response.BadRequest(c, "параметр "+name+" должен быть валидным UUID")
				return
			}
		}
		c.Next()
	}
}
