package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/danmainah/resolveit-app/internal/domain/valueobject"
	"github.com/danmainah/resolveit-app/internal/pkg/apperror"
)

// MinPasswordLength минимальная длина пароля.
const MinPasswordLength = 8

var (
	v *validator.Validate

	// Номер дела или FIR: заглавные латинские буквы, цифры, дефис и слэш.
	reDocRef = regexp.MustCompile(`^[A-Z0-9/-]+$`)
)

func init() {
	v = validator.New(validator.WithRequiredStructEnabled())

	// В сообщениях используем имена полей из json.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return ValidatePassword(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("case_type", func(fl validator.FieldLevel) bool {
		return valueobject.CaseType(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("case_status", func(fl validator.FieldLevel) bool {
		return valueobject.CaseStatus(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("panel_role", func(fl validator.FieldLevel) bool {
		return valueobject.PanelRole(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("docref", func(fl validator.FieldLevel) bool {
		return reDocRef.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// Struct проверяет структуру по тегам validate и возвращает VALIDATION_ERROR с сообщениями по полям.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperror.Wrap(err, apperror.ErrCodeValidation, "некорректные входные данные")
	}

	fields := make(map[string]string, len(ve))
	for _, e := range ve {
		field := e.Field()
		if _, exists := fields[field]; exists {
			continue
		}
		fields[field] = message(e)
	}
	return apperror.Validation(fields)
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "notblank":
		return "поле обязательно"
	case "email":
		return "некорректный формат email"
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("должно быть не менее %s символов", e.Param())
		}
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("нужно не менее %s элементов", e.Param())
		}
		return fmt.Sprintf("должно быть не меньше %s", e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("должно быть не более %s символов", e.Param())
		}
		return fmt.Sprintf("должно быть не больше %s", e.Param())
	case "oneof":
		return "недопустимое значение"
	case "password":
		if err := ValidatePassword(fmt.Sprint(e.Value())); err != nil {
			return err.Error()
		}
		return "некорректный пароль"
	case "case_type":
		return "некорректный тип дела"
	case "case_status":
		return "некорректный статус дела"
	case "panel_role":
		return "некорректная роль участника панели"
	case "docref":
		return "допустимы заглавные латинские буквы, цифры, дефис и слэш"
	default:
		return e.Error()
	}
}

// ValidatePassword проверяет пароль: длина, заглавные и строчные буквы, цифры.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("пароль должен быть не менее %d символов", MinPasswordLength)
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("пароль должен содержать хотя бы одну заглавную букву")
	}
	if !hasLower {
		return fmt.Errorf("пароль должен содержать хотя бы одну строчную букву")
	}
	if !hasNumber {
		return fmt.Errorf("пароль должен содержать хотя бы одну цифру")
	}

	return nil
}
