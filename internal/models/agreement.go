package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/danmainah/resolveit-app/internal/domain/valueobject"
)

// Agreement соглашение сторон по делу. На одно дело не больше одного соглашения.
type Agreement struct {
	ID         uuid.UUID                   `db:"id" json:"id"`
	CaseID     uuid.UUID                   `db:"case_id" json:"case_id"`
	TemplateID *uuid.UUID                  `db:"template_id" json:"template_id,omitempty"`
	Content    string                      `db:"content" json:"content"`
	Status     valueobject.AgreementStatus `db:"status" json:"status"`
	SignedAt   *time.Time                  `db:"signed_at" json:"signed_at,omitempty"`
	ExecutedAt *time.Time                  `db:"executed_at" json:"executed_at,omitempty"`
	CreatedAt  time.Time                   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time                   `db:"updated_at" json:"updated_at"`
	Signatures []AgreementSignature        `db:"-" json:"signatures"`
}

// AgreementSignature фиксирует, кто и откуда подписал соглашение.
type AgreementSignature struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AgreementID uuid.UUID `db:"agreement_id" json:"agreement_id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	IPAddress   string    `db:"ip_address" json:"ip_address"`
	UserAgent   string    `db:"user_agent" json:"user_agent"`
	SignedAt    time.Time `db:"signed_at" json:"signed_at"`
}

// HasSigned проверяет, есть ли подпись пользователя.
func (a *Agreement) HasSigned(userID uuid.UUID) bool {
	for _, s := range a.Signatures {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

// AgreementTemplate шаблон текста соглашения.
type AgreementTemplate struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Category    *string   `db:"category" json:"category,omitempty"`
	Content     string    `db:"content" json:"content"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SignatureOrigin метаданные подписи для аудита.
type SignatureOrigin struct {
	IPAddress string
	UserAgent string
}

// ConsensusDecision итог проверки консенсуса после вставки подписи.
// Transition равен nil, если консенсус достигнут, но дело уже закрыто.
type ConsensusDecision struct {
	Reached    bool
	Transition *Transition
}

// ConsensusFunc вызывается хранилищем внутри транзакции подписи.
// Функция не должна обращаться к хранилищу.
type ConsensusFunc func(a *Agreement, c *Case) (ConsensusDecision, error)

// SignOutcome результат подписи соглашения.
type SignOutcome struct {
	Agreement *Agreement
	Signature *AgreementSignature
	Consensus bool
	Case      *Case
	Update    *CaseUpdate
}
