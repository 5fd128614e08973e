package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/danmainah/resolveit-app/internal/http/response"
	"github.com/danmainah/resolveit-app/internal/pkg/apperror"
)

// ErrorHandler отвечает конвертом ошибки, если хэндлер добавил ошибку через c.Error
// и сам ничего не записал.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}
		response.Error(c, c.Errors.Last().Err)
	}
}

// Recovery превращает panic в ответ INTERNAL_ERROR в формате API.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		response.Abort(c, apperror.ErrCodeInternal, "внутренняя ошибка сервера")
	})
}
