package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/danmainah/resolveit-app/internal/domain/valueobject"
)

// Panel панель медиаторов дела. Создаётся один раз вместе со всеми участниками.
type Panel struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	CaseID    uuid.UUID     `db:"case_id" json:"case_id"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	Members   []PanelMember `db:"-" json:"members"`
}

type PanelMember struct {
	ID      uuid.UUID             `db:"id" json:"id"`
	PanelID uuid.UUID             `db:"panel_id" json:"panel_id"`
	UserID  uuid.UUID             `db:"user_id" json:"user_id"`
	Role    valueobject.PanelRole `db:"role" json:"role"`
}

// HasMember проверяет, входит ли пользователь в панель.
func (p *Panel) HasMember(userID uuid.UUID) bool {
	if p == nil {
		return false
	}
	for _, m := range p.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// MemberIDs возвращает идентификаторы участников в порядке добавления.
func (p *Panel) MemberIDs() []uuid.UUID {
	if p == nil {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(p.Members))
	for _, m := range p.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}
