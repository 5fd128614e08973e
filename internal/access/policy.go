// Package access собирает в одном месте проверки прав над делами.
package access

import (
	"github.com/google/uuid"

	"github.com/danmainah/resolveit-app/internal/models"
)

// Principal аутентифицированный участник запроса.
type Principal struct {
	UserID uuid.UUID
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// IsParty истец или привязанный ответчик.
func IsParty(p Principal, c *models.Case) bool {
	if c == nil || p.UserID == uuid.Nil {
		return false
	}
	if c.PlaintiffID == p.UserID {
		return true
	}
	return c.DefendantID != nil && *c.DefendantID == p.UserID
}

func IsPanelMember(p Principal, panel *models.Panel) bool {
	return panel.HasMember(p.UserID)
}

// CanViewCase чтение дела, его хронологии, панели и соглашения.
func CanViewCase(p Principal, c *models.Case, panel *models.Panel) bool {
	return p.IsAdmin() || IsParty(p, c) || IsPanelMember(p, panel)
}

// CanManageAgreement создание и правка соглашения.
func CanManageAgreement(p Principal, c *models.Case) bool {
	return p.IsAdmin() || IsParty(p, c)
}

// CanOverrideStatus ручная смена статуса через общий переход.
func CanOverrideStatus(p Principal, panel *models.Panel) bool {
	return p.IsAdmin() || IsPanelMember(p, panel)
}

// RequiredSigners истец всегда, ответчик только если привязан к делу.
func RequiredSigners(c *models.Case) []uuid.UUID {
	return c.PartyIDs()
}

func IsRequiredSigner(p Principal, c *models.Case) bool {
	for _, id := range RequiredSigners(c) {
		if id == p.UserID {
			return true
		}
	}
	return false
}
