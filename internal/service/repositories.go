package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/danmainah/resolveit-app/internal/domain/valueobject"
	"github.com/danmainah/resolveit-app/internal/models"
)

// CaseRepository описывает хранилище дел и их хронологии.
type CaseRepository interface {
	Create(ctx context.Context, c *models.Case) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Case, error)
	List(ctx context.Context, f models.CaseFilter) ([]models.Case, int, error)
	// ApplyTransition условно меняет статус и добавляет CaseUpdate в одной транзакции.
	ApplyTransition(ctx context.Context, tr models.Transition) (*models.Case, *models.CaseUpdate, error)
	ListUpdates(ctx context.Context, caseID uuid.UUID) ([]models.CaseUpdate, error)
}

// PanelRepository описывает хранилище панелей медиации.
type PanelRepository interface {
	GetByCaseID(ctx context.Context, caseID uuid.UUID) (*models.Panel, error)
	CreateWithTransition(ctx context.Context, panel *models.Panel, tr models.Transition) (*models.Case, *models.CaseUpdate, error)
}

// AgreementRepository описывает хранилище соглашений, подписей и шаблонов.
type AgreementRepository interface {
	Create(ctx context.Context, a *models.Agreement) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Agreement, error)
	GetByCaseID(ctx context.Context, caseID uuid.UUID) (*models.Agreement, error)
	UpdateContent(ctx context.Context, id uuid.UUID, content string, at time.Time) (*models.Agreement, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.AgreementStatus, at time.Time) (*models.Agreement, error)
	Sign(ctx context.Context, sig *models.AgreementSignature, decide models.ConsensusFunc) (*models.SignOutcome, error)
	CreateTemplate(ctx context.Context, t *models.AgreementTemplate) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.AgreementTemplate, error)
	ListTemplates(ctx context.Context, activeOnly bool) ([]models.AgreementTemplate, error)
}

// UserRepository описывает хранилище пользователей.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	ListByRole(ctx context.Context, role string, verifiedOnly bool) ([]models.User, error)
	SetVerified(ctx context.Context, id uuid.UUID, verified bool) (*models.User, error)
}

// NotificationRepository описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}
