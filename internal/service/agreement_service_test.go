package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/danmainah/resolveit-app/internal/access"
	"github.com/danmainah/resolveit-app/internal/domain/valueobject"
	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/pkg/apperror"
)

var testOrigin = models.SignatureOrigin{IPAddress: "10.0.0.1", UserAgent: "go-test"}

func (f *fixture) draftAgreement(t *testing.T, c *models.Case) *models.Agreement {
	t.Helper()

	a, err := f.agreements.CreateAgreement(context.Background(), f.plaintiff, CreateAgreementInput{
		CaseID:  c.ID,
		Content: "Стороны договорились о разделе имущества поровну.",
	})
	require.NoError(t, err)
	return a
}

func TestAgreement_ConsensusResolvesCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.acceptedCase(t)
	a := f.draftAgreement(t, c)
	assert.Equal(t, valueobject.AgreementStatusDraft, a.Status)

	out, err := f.agreements.Sign(ctx, f.plaintiff, a.ID, testOrigin)
	require.NoError(t, err)
	assert.False(t, out.Consensus)
	assert.Nil(t, out.Update)
	assert.Equal(t, valueobject.AgreementStatusPendingSignatures, out.Agreement.Status)

	mid, err := f.cases.GetCase(ctx, f.plaintiff, c.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.CaseStatusAccepted, mid.Status)

	out, err = f.agreements.Sign(ctx, f.defendant, a.ID, testOrigin)
	require.NoError(t, err)
	assert.True(t, out.Consensus)
	assert.Equal(t, valueobject.AgreementStatusSigned, out.Agreement.Status)
	require.NotNil(t, out.Agreement.SignedAt)
	require.NotNil(t, out.Update)
	assert.Equal(t, valueobject.CaseStatusResolved, out.Update.Status)

	final, err := f.cases.GetCase(ctx, f.plaintiff, c.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.CaseStatusResolved, final.Status)
	require.NotNil(t, final.Resolution)

	stored, err := f.agreements.GetByCase(ctx, f.defendant, c.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Signatures, 2)
	assert.Equal(t, "10.0.0.1", stored.Signatures[0].IPAddress)

	resolved := 0
	for _, n := range f.notificationsFor(t, f.plaintiff.UserID, c.ID) {
		if n.Type == models.NotificationCaseResolved {
			resolved++
		}
	}
	assert.Equal(t, 1, resolved)
}

func TestAgreement_SignOrderDoesNotMatter(t *testing.T) {
	for _, order := range []string{"plaintiff-first", "defendant-first"} {
		t.Run(order, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			c := f.acceptedCase(t)
			_, err := f.panels.FormPanel(ctx, f.admin, c.ID, f.fullPanel())
			require.NoError(t, err)
			_, err = f.cases.StartMediation(ctx, f.admin, c.ID, MediationInput{})
			require.NoError(t, err)

			a := f.draftAgreement(t, c)

			signers := []access.Principal{f.plaintiff, f.defendant}
			if order == "defendant-first" {
				signers[0], signers[1] = signers[1], signers[0]
			}

			consensus := 0
			for _, p := range signers {
				out, err := f.agreements.Sign(ctx, p, a.ID, testOrigin)
				require.NoError(t, err)
				if out.Consensus {
					consensus++
				}
			}
			assert.Equal(t, 1, consensus)

			timeline, err := f.cases.Timeline(ctx, f.admin, c.ID)
			require.NoError(t, err)
			resolved := 0
			for _, u := range timeline {
				if u.Status == valueobject.CaseStatusResolved {
					resolved++
				}
			}
			assert.Equal(t, 1, resolved)
			assert.Equal(t, valueobject.CaseStatusResolved, timeline[len(timeline)-1].Status)
		})
	}
}

func TestAgreement_ConcurrentSignaturesReachConsensusOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.acceptedCase(t)
	a := f.draftAgreement(t, c)

	outcomes := make([]*models.SignOutcome, 2)
	var g errgroup.Group
	for i, p := range []access.Principal{f.plaintiff, f.defendant} {
		g.Go(func() error {
			out, err := f.agreements.Sign(ctx, p, a.ID, testOrigin)
			outcomes[i] = out
			return err
		})
	}
	require.NoError(t, g.Wait())

	consensus := 0
	for _, out := range outcomes {
		if out.Consensus {
			consensus++
		}
	}
	assert.Equal(t, 1, consensus)

	final, err := f.cases.GetCase(ctx, f.admin, c.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.CaseStatusResolved, final.Status)
	assert.Equal(t, int64(4), final.Version)
}

func TestAgreement_SignTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.acceptedCase(t)
	a := f.draftAgreement(t, c)

	_, err := f.agreements.Sign(ctx, f.plaintiff, a.ID, testOrigin)
	require.NoError(t, err)

	_, err = f.agreements.Sign(ctx, f.plaintiff, a.ID, testOrigin)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeAlreadySigned), "got %v", err)

	stored, err := f.agreements.GetByCase(ctx, f.plaintiff, c.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Signatures, 1)

	_, err = f.agreements.Sign(ctx, f.defendant, a.ID, testOrigin)
	require.NoError(t, err)

	_, err = f.agreements.Sign(ctx, f.defendant, a.ID, testOrigin)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeAlreadySigned), "got %v", err)
}

func TestAgreement_SinglePartyCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.fileCase(t)
	_, err := f.cases.ContactOppositeParty(ctx, f.admin, c.ID, "")
	require.NoError(t, err)
	c, err = f.cases.RecordOppositePartyResponse(ctx, f.admin, c.ID, ResponseInput{Accepted: true})
	require.NoError(t, err)
	require.Nil(t, c.DefendantID)

	a := f.draftAgreement(t, c)
	out, err := f.agreements.Sign(ctx, f.plaintiff, a.ID, testOrigin)
	require.NoError(t, err)
	assert.True(t, out.Consensus)
	assert.Equal(t, valueobject.CaseStatusResolved, out.Case.Status)
}

func TestAgreement_SignerChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.acceptedCase(t)
	a := f.draftAgreement(t, c)

	for _, p := range []access.Principal{f.admin, f.outsider, f.lawyer} {
		_, err := f.agreements.Sign(ctx, p, a.ID, testOrigin)
		assert.True(t, apperror.IsAccessDenied(err), "got %v", err)
	}
}

func TestAgreement_EditLockedAfterSigning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.acceptedCase(t)
	a := f.draftAgreement(t, c)

	edited, err := f.agreements.EditAgreement(ctx, f.defendant, a.ID, EditAgreementInput{Content: "Новая редакция соглашения"})
	require.NoError(t, err)
	assert.Equal(t, "Новая редакция соглашения", edited.Content)

	_, err = f.agreements.EditAgreement(ctx, f.outsider, a.ID, EditAgreementInput{Content: "Чужая правка"})
	assert.True(t, apperror.IsAccessDenied(err))

	_, err = f.agreements.Sign(ctx, f.plaintiff, a.ID, testOrigin)
	require.NoError(t, err)
	_, err = f.agreements.EditAgreement(ctx, f.plaintiff, a.ID, EditAgreementInput{Content: "Правка после подписи истца"})
	require.NoError(t, err)

	_, err = f.agreements.Sign(ctx, f.defendant, a.ID, testOrigin)
	require.NoError(t, err)

	_, err = f.agreements.EditAgreement(ctx, f.plaintiff, a.ID, EditAgreementInput{Content: "Поздняя правка"})
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeAgreementLocked), "got %v", err)
}

func TestAgreement_CreateRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.fileCase(t)
	_, err := f.agreements.CreateAgreement(ctx, f.plaintiff, CreateAgreementInput{CaseID: pending.ID, Content: "Текст"})
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInvalidCaseState), "got %v", err)

	c := f.acceptedCase(t)
	_, err = f.agreements.CreateAgreement(ctx, f.outsider, CreateAgreementInput{CaseID: c.ID, Content: "Текст"})
	assert.True(t, apperror.IsAccessDenied(err))

	_, err = f.agreements.CreateAgreement(ctx, f.plaintiff, CreateAgreementInput{CaseID: c.ID})
	assert.True(t, apperror.IsValidation(err), "got %v", err)

	f.draftAgreement(t, c)
	_, err = f.agreements.CreateAgreement(ctx, f.admin, CreateAgreementInput{CaseID: c.ID, Content: "Второе соглашение"})
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeAgreementAlreadyExists), "got %v", err)
}

func TestAgreement_FromTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tpl, err := f.agreements.CreateTemplate(ctx, f.admin, TemplateInput{
		Name:    "Раздел имущества",
		Content: "Стороны договорились о следующем: ...",
	})
	require.NoError(t, err)

	_, err = f.agreements.CreateTemplate(ctx, f.plaintiff, TemplateInput{Name: "x", Content: "y"})
	assert.True(t, apperror.IsAccessDenied(err))

	templates, err := f.agreements.ListTemplates(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, templates, 1)

	c := f.acceptedCase(t)
	a, err := f.agreements.CreateAgreement(ctx, f.plaintiff, CreateAgreementInput{CaseID: c.ID, TemplateID: &tpl.ID})
	require.NoError(t, err)
	assert.Equal(t, tpl.Content, a.Content)
	require.NotNil(t, a.TemplateID)
	assert.Equal(t, tpl.ID, *a.TemplateID)
}

func TestAgreement_RequestSignaturesAndExecute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.acceptedCase(t)
	a := f.draftAgreement(t, c)

	pending, err := f.agreements.RequestSignatures(ctx, f.plaintiff, a.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.AgreementStatusPendingSignatures, pending.Status)

	_, err = f.agreements.RequestSignatures(ctx, f.plaintiff, a.ID)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeConflict), "got %v", err)

	ready := 0
	for _, n := range f.notificationsFor(t, f.defendant.UserID, c.ID) {
		if n.Type == models.NotificationAgreementReady {
			ready++
		}
	}
	assert.Equal(t, 1, ready)

	_, err = f.agreements.Execute(ctx, f.admin, a.ID)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeConflict), "got %v", err)

	for _, p := range []access.Principal{f.plaintiff, f.defendant} {
		_, err = f.agreements.Sign(ctx, p, a.ID, testOrigin)
		require.NoError(t, err)
	}

	_, err = f.agreements.Execute(ctx, f.plaintiff, a.ID)
	assert.True(t, apperror.IsAccessDenied(err))

	executed, err := f.agreements.Execute(ctx, f.admin, a.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.AgreementStatusExecuted, executed.Status)
	require.NotNil(t, executed.ExecutedAt)
}

func TestAgreement_Export(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.acceptedCase(t)
	a := f.draftAgreement(t, c)
	_, err := f.agreements.Sign(ctx, f.plaintiff, a.ID, testOrigin)
	require.NoError(t, err)

	text, err := f.agreements.Export(ctx, f.defendant, a.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "СОГЛАШЕНИЕ ПО ДЕЛУ "+c.ID.String()))
	assert.Contains(t, text, a.Content)
	assert.Contains(t, text, f.plaintiff.UserID.String())

	_, err = f.agreements.Export(ctx, f.outsider, a.ID)
	assert.True(t, apperror.IsAccessDenied(err))
}
