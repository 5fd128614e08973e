package common

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/danmainah/resolveit-app/internal/access"
	"github.com/danmainah/resolveit-app/internal/http/middleware"
	"github.com/danmainah/resolveit-app/internal/http/response"
	"github.com/danmainah/resolveit-app/internal/pkg/apperror"
)

// CurrentPrincipal достаёт участника запроса. При отсутствии отвечает 401 и возвращает false.
func CurrentPrincipal(c *gin.Context) (access.Principal, bool) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		response.Unauthorized(c, "требуется авторизация")
		return access.Principal{}, false
	}
	return p, true
}

// ParseUUIDParam читает UUID из параметра пути. При ошибке отвечает 400 и возвращает false.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, bool) {
	parsed, err := uuid.Parse(c.Param(paramName))
	if err != nil {
		response.BadRequest(c, "параметр "+paramName+" должен быть валидным UUID")
		return uuid.Nil, false
	}
	return parsed, true
}

// BindJSON разбирает тело запроса. При ошибке отвечает 400 и возвращает false.
// Проверка полей выполняется в сервисах.
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Wrap(err, apperror.ErrCodeBadRequest, "некорректное тело запроса"))
		return false
	}
	return true
}

// ParseIntQuery безопасно читает целочисленный query параметр.
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPagination извлекает limit и offset с ограничениями по умолчанию.
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", 20)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return
}
