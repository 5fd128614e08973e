package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeInvalidTransition      ErrorCode = "INVALID_TRANSITION"
	ErrCodeInvalidCaseState       ErrorCode = "INVALID_CASE_STATE"
	ErrCodeIncompletePanel        ErrorCode = "INCOMPLETE_PANEL"
	ErrCodePanelAlreadyExists     ErrorCode = "PANEL_ALREADY_EXISTS"
	ErrCodeAgreementLocked        ErrorCode = "AGREEMENT_LOCKED"
	ErrCodeAlreadySigned          ErrorCode = "ALREADY_SIGNED"
	ErrCodeAgreementAlreadyExists ErrorCode = "AGREEMENT_ALREADY_EXISTS"
	ErrCodeAccessDenied           ErrorCode = "ACCESS_DENIED"
	ErrCodeNotFound               ErrorCode = "NOT_FOUND"
	ErrCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"
	ErrCodeUnavailable            ErrorCode = "UNAVAILABLE"

	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
)

// AppError несёт стабильный код ошибки и сообщение для клиента.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Fields     map[string]string
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Validation возвращает ошибку валидации с сообщениями по полям.
func Validation(fields map[string]string) *AppError {
	e := New(ErrCodeValidation, "некорректные входные данные")
	e.Fields = fields
	return e
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeAccessDenied:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeIncompletePanel:
		return http.StatusUnprocessableEntity
	case ErrCodeConflict, ErrCodeInvalidTransition, ErrCodeInvalidCaseState,
		ErrCodePanelAlreadyExists, ErrCodeAgreementLocked, ErrCodeAlreadySigned,
		ErrCodeAgreementAlreadyExists, ErrCodeConcurrentModification:
		return http.StatusConflict
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или пустую строку, если это не AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode проверяет код ошибки в цепочке.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeNotFound)
}

func IsAccessDenied(err error) bool {
	return HasCode(err, ErrCodeAccessDenied)
}

func IsValidation(err error) bool {
	return HasCode(err, ErrCodeValidation)
}

var (
	ErrCaseNotFound         = New(ErrCodeNotFound, "дело не найдено")
	ErrPanelNotFound        = New(ErrCodeNotFound, "панель не найдена")
	ErrAgreementNotFound    = New(ErrCodeNotFound, "соглашение не найдено")
	ErrTemplateNotFound     = New(ErrCodeNotFound, "шаблон соглашения не найден")
	ErrUserNotFound         = New(ErrCodeNotFound, "пользователь не найден")
	ErrNotificationNotFound = New(ErrCodeNotFound, "уведомление не найдено")
	ErrUnauthorized         = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrAccessDenied         = New(ErrCodeAccessDenied, "недостаточно прав")
	ErrInvalidCredentials   = New(ErrCodeUnauthorized, "неверные учетные данные")
)
