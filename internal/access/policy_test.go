package access

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/danmainah/resolveit-app/internal/models"
)

func TestCanViewCase(t *testing.T) {
	plaintiff := uuid.New()
	defendant := uuid.New()
	member := uuid.New()
	c := &models.Case{PlaintiffID: plaintiff, DefendantID: &defendant}
	panel := &models.Panel{Members: []models.PanelMember{{UserID: member}}}

	assert.True(t, CanViewCase(Principal{UserID: plaintiff, Role: models.RoleUser}, c, panel))
	assert.True(t, CanViewCase(Principal{UserID: defendant, Role: models.RoleUser}, c, panel))
	assert.True(t, CanViewCase(Principal{UserID: member, Role: models.RoleLawyer}, c, panel))
	assert.True(t, CanViewCase(Principal{UserID: uuid.New(), Role: models.RoleAdmin}, c, nil))
	assert.False(t, CanViewCase(Principal{UserID: uuid.New(), Role: models.RoleUser}, c, panel))
}

func TestRequiredSigners(t *testing.T) {
	plaintiff := uuid.New()
	c := &models.Case{PlaintiffID: plaintiff}

	assert.Equal(t, []uuid.UUID{plaintiff}, RequiredSigners(c))

	defendant := uuid.New()
	c.DefendantID = &defendant
	assert.Equal(t, []uuid.UUID{plaintiff, defendant}, RequiredSigners(c))
	assert.True(t, IsRequiredSigner(Principal{UserID: defendant}, c))
	assert.False(t, IsRequiredSigner(Principal{UserID: uuid.New(), Role: models.RoleAdmin}, c))
}

func TestCanManageAgreement_PanelMemberDenied(t *testing.T) {
	member := uuid.New()
	c := &models.Case{PlaintiffID: uuid.New()}

	assert.False(t, CanManageAgreement(Principal{UserID: member, Role: models.RoleLawyer}, c))
	assert.True(t, CanOverrideStatus(Principal{UserID: member, Role: models.RoleLawyer},
		&models.Panel{Members: []models.PanelMember{{UserID: member}}}))
}
