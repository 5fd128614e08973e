package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/danmainah/resolveit-app/internal/access"
	"github.com/danmainah/resolveit-app/internal/logger"
	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/pkg/apperror"
	"github.com/danmainah/resolveit-app/internal/repository/common"
	"github.com/danmainah/resolveit-app/internal/validation"
)

// AuthService инкапсулирует бизнес-логику регистрации и аутентификации.
type AuthService struct {
	users        UserRepository
	tokenManager *TokenManager
}

// RegisterInput содержит данные пользователя при регистрации.
type RegisterInput struct {
	Name     string  `json:"name" validate:"required,notblank,min=2,max=100"`
	Email    string  `json:"email" validate:"required,email"`
	Phone    *string `json:"phone" validate:"omitempty,min=10,max=20"`
	Password string  `json:"password" validate:"required,password"`
}

// LoginInput содержит данные для входа.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AdminInput учётная запись администратора для CLI.
type AdminInput struct {
	Name     string `json:"name" validate:"required,notblank,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
}

// AuthResult возвращает итог регистрации или авторизации.
type AuthResult struct {
	User      *models.User `json:"user"`
	TokenPair *TokenPair   `json:"tokens"`
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(users UserRepository, tokenManager *TokenManager) *AuthService {
	return &AuthService{
		users:        users,
		tokenManager: tokenManager,
	}
}

// Register создаёт обычного пользователя. Верификацию выполняет администратор.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, in.Name, in.Email, in.Phone, in.Password, models.RoleUser, false)
	if err != nil {
		return nil, err
	}

	tokenPair, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выпустить токены")
	}

	return &AuthResult{User: user, TokenPair: tokenPair}, nil
}

// CreateAdmin создаёт верифицированного администратора.
func (s *AuthService) CreateAdmin(ctx context.Context, in AdminInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	return s.createUser(ctx, in.Name, in.Email, nil, in.Password, models.RoleAdmin, true)
}

// Login проверяет учётные данные и возвращает токены.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if errors.Is(err, common.ErrNotFound) {
		return nil, apperror.ErrInvalidCredentials
	}
	if err != nil {
		return nil, storeError(err, nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	tokenPair, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выпустить токены")
	}

	logger.Component("auth").WithField("user_id", user.ID).Info("пользователь вошёл в систему")
	return &AuthResult{User: user, TokenPair: tokenPair}, nil
}

// Refresh выпускает новую пару токенов по refresh токену.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.tokenManager.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "refresh токен невалиден")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, apperror.ErrUnauthorized)
	}

	tokenPair, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выпустить токены")
	}
	return tokenPair, nil
}

// Authenticate проверяет access токен.
func (s *AuthService) Authenticate(token string) (access.Principal, error) {
	p, err := s.tokenManager.ParseAccess(token)
	if err != nil {
		return access.Principal{}, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "недействительный токен")
	}
	return p, nil
}

func (s *AuthService) createUser(ctx context.Context, name, email string, phone *string, password, role string, verified bool) (*models.User, error) {
	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось захешировать пароль")
	}

	user := &models.User{
		Name:         strings.TrimSpace(name),
		Email:        normalizeEmail(email),
		Phone:        phone,
		PasswordHash: string(passHash),
		Role:         role,
		IsVerified:   verified,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, apperror.New(apperror.ErrCodeConflict, "email уже зарегистрирован")
		}
		return nil, storeError(err, nil)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
