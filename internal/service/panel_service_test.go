package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/danmainah/resolveit-app/internal/domain/valueobject"
	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/pkg/apperror"
	"github.com/danmainah/resolveit-app/internal/repository/common"
)

func TestFormPanel_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		members func(f *fixture) []PanelMemberInput
		code    apperror.ErrorCode
	}{
		{
			name:    "empty panel",
			members: func(f *fixture) []PanelMemberInput { return nil },
			code:    apperror.ErrCodeIncompletePanel,
		},
		{
			name: "missing social expert",
			members: func(f *fixture) []PanelMemberInput {
				return []PanelMemberInput{
					{UserID: f.lawyer.UserID, Role: models.RoleLawyer},
					{UserID: f.scholar.UserID, Role: models.RoleReligiousScholar},
				}
			},
			code: apperror.ErrCodeIncompletePanel,
		},
		{
			name: "duplicate member",
			members: func(f *fixture) []PanelMemberInput {
				return append(f.fullPanel().Members, PanelMemberInput{UserID: f.lawyer.UserID, Role: models.RoleLawyer})
			},
			code: apperror.ErrCodeIncompletePanel,
		},
		{
			name: "unknown user",
			members: func(f *fixture) []PanelMemberInput {
				m := f.fullPanel().Members
				m[0].UserID = uuid.New()
				return m
			},
			code: apperror.ErrCodeIncompletePanel,
		},
		{
			name: "role mismatch",
			members: func(f *fixture) []PanelMemberInput {
				m := f.fullPanel().Members
				m[0].UserID = f.outsider.UserID
				return m
			},
			code: apperror.ErrCodeIncompletePanel,
		},
		{
			name: "unknown role",
			members: func(f *fixture) []PanelMemberInput {
				return append(f.fullPanel().Members, PanelMemberInput{UserID: f.outsider.UserID, Role: "JUDGE"})
			},
			code: apperror.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.acceptedCase(t)

			_, err := f.panels.FormPanel(ctx, f.admin, c.ID, FormPanelInput{Members: tt.members(f)})
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)

			_, err = f.store.Panels().GetByCaseID(ctx, c.ID)
			assert.ErrorIs(t, err, common.ErrNotFound)

			got, err := f.cases.GetCase(ctx, f.admin, c.ID)
			require.NoError(t, err)
			assert.Equal(t, valueobject.CaseStatusAccepted, got.Status)
		})
	}
}

func TestFormPanel_UnverifiedMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.acceptedCase(t)

	pending := f.addUser(t, "New Lawyer", models.RoleLawyer, false)
	in := f.fullPanel()
	in.Members[0].UserID = pending.UserID

	_, err := f.panels.FormPanel(ctx, f.admin, c.ID, in)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeIncompletePanel), "got %v", err)
}

func TestFormPanel_OnlyAdmin(t *testing.T) {
	f := newFixture(t)
	c := f.acceptedCase(t)

	_, err := f.panels.FormPanel(context.Background(), f.plaintiff, c.ID, f.fullPanel())
	assert.True(t, apperror.IsAccessDenied(err))
}

func TestFormPanel_SecondCallFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.acceptedCase(t)

	_, err := f.panels.FormPanel(ctx, f.admin, c.ID, f.fullPanel())
	require.NoError(t, err)

	_, err = f.panels.FormPanel(ctx, f.admin, c.ID, f.fullPanel())
	assert.True(t, apperror.HasCode(err, apperror.ErrCodePanelAlreadyExists), "got %v", err)
}

func TestFormPanel_ConcurrentCallsCommitOnePanel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.acceptedCase(t)

	const callers = 8
	errs := make([]error, callers)

	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, errs[i] = f.panels.FormPanel(ctx, f.admin, c.ID, f.fullPanel())
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperror.HasCode(err, apperror.ErrCodePanelAlreadyExists), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)

	timeline, err := f.cases.Timeline(ctx, f.admin, c.ID)
	require.NoError(t, err)
	panelEntries := 0
	for _, u := range timeline {
		if u.Status == valueobject.CaseStatusPanelCreated {
			panelEntries++
		}
	}
	assert.Equal(t, 1, panelEntries)
}

func TestAvailableMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "Unverified Lawyer", models.RoleLawyer, false)

	lawyers, err := f.panels.AvailableMembers(ctx, f.admin, models.RoleLawyer)
	require.NoError(t, err)
	require.Len(t, lawyers, 1)
	assert.Equal(t, f.lawyer.UserID, lawyers[0].ID)

	all, err := f.panels.AvailableMembers(ctx, f.admin, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.panels.AvailableMembers(ctx, f.admin, "JUDGE")
	assert.True(t, apperror.IsValidation(err))

	_, err = f.panels.AvailableMembers(ctx, f.lawyer, "")
	assert.True(t, apperror.IsAccessDenied(err))
}

func TestGetPanel_NotFormed(t *testing.T) {
	f := newFixture(t)
	c := f.acceptedCase(t)

	_, err := f.panels.GetPanel(context.Background(), f.plaintiff, c.ID)
	assert.True(t, apperror.IsNotFound(err))
}
