package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danmainah/resolveit-app/internal/access"
	"github.com/danmainah/resolveit-app/internal/domain/valueobject"
	"github.com/danmainah/resolveit-app/internal/metrics"
	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/pkg/apperror"
	"github.com/danmainah/resolveit-app/internal/repository/common"
	"github.com/danmainah/resolveit-app/internal/validation"
)

// CreateAgreementInput черновик соглашения.
type CreateAgreementInput struct {
	CaseID     uuid.UUID  `json:"case_id" validate:"required"`
	TemplateID *uuid.UUID `json:"template_id"`
	Content    string     `json:"content" validate:"max=50000"`
}

// EditAgreementInput новый текст соглашения.
type EditAgreementInput struct {
	Content string `json:"content" validate:"required,notblank,max=50000"`
}

// TemplateInput шаблон соглашения.
type TemplateInput struct {
	Name        string  `json:"name" validate:"required,notblank,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Category    *string `json:"category" validate:"omitempty,max=100"`
	Content     string  `json:"content" validate:"required,notblank,max=50000"`
}

// AgreementService управляет соглашениями и консенсусом подписей.
type AgreementService struct {
	sm         *CaseStateMachine
	agreements AgreementRepository
	notifier   Notifier
}

// NewAgreementService создаёт сервис соглашений.
func NewAgreementService(sm *CaseStateMachine, agreements AgreementRepository, notifier Notifier) *AgreementService {
	return &AgreementService{sm: sm, agreements: agreements, notifier: notifier}
}

// CreateAgreement создаёт черновик для дела. На дело допускается одно соглашение.
func (s *AgreementService) CreateAgreement(ctx context.Context, actor access.Principal, in CreateAgreementInput) (*models.Agreement, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.sm.timeout)
	defer cancel()

	c, err := s.sm.cases.GetByID(ctx, in.CaseID)
	if err != nil {
		return nil, storeError(err, apperror.ErrCaseNotFound)
	}
	if !access.CanManageAgreement(actor, c) {
		return nil, apperror.ErrAccessDenied
	}
	if !c.Status.CanSettle() {
		return nil, apperror.New(apperror.ErrCodeInvalidCaseState, "соглашение можно создать только для принятого и незавершённого дела")
	}

	content := strings.TrimSpace(in.Content)
	if in.TemplateID != nil {
		tpl, err := s.agreements.GetTemplate(ctx, *in.TemplateID)
		if err != nil {
			return nil, storeError(err, apperror.ErrTemplateNotFound)
		}
		if content == "" {
			content = tpl.Content
		}
	}
	if content == "" {
		return nil, apperror.Validation(map[string]string{"content": "поле обязательно"})
	}

	now := s.sm.now()
	a := &models.Agreement{
		ID:         uuid.New(),
		CaseID:     c.ID,
		TemplateID: in.TemplateID,
		Content:    content,
		Status:     valueobject.AgreementStatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
		Signatures: []models.AgreementSignature{},
	}

	if err := s.agreements.Create(ctx, a); err != nil {
		return nil, storeError(err, nil)
	}
	return a, nil
}

// EditAgreement меняет текст, пока соглашение не подписано.
func (s *AgreementService) EditAgreement(ctx context.Context, actor access.Principal, id uuid.UUID, in EditAgreementInput) (*models.Agreement, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.sm.timeout)
	defer cancel()

	a, c, err := s.loadWithCase(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanManageAgreement(actor, c) {
		return nil, apperror.ErrAccessDenied
	}
	if !a.Status.IsEditable() {
		return nil, storeError(common.ErrAgreementLocked, nil)
	}

	updated, err := s.agreements.UpdateContent(ctx, id, strings.TrimSpace(in.Content), s.sm.now())
	if err != nil {
		return nil, storeError(err, apperror.ErrAgreementNotFound)
	}
	return updated, nil
}

// RequestSignatures переводит черновик в ожидание подписей и уведомляет стороны.
func (s *AgreementService) RequestSignatures(ctx context.Context, actor access.Principal, id uuid.UUID) (*models.Agreement, error) {
	ctx, cancel := context.WithTimeout(ctx, s.sm.timeout)
	defer cancel()

	a, c, err := s.loadWithCase(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanManageAgreement(actor, c) {
		return nil, apperror.ErrAccessDenied
	}
	if !a.Status.CanTransitionTo(valueobject.AgreementStatusPendingSignatures) {
		return nil, apperror.New(apperror.ErrCodeConflict, "подписи можно запросить только для черновика")
	}

	updated, err := s.agreements.UpdateStatus(ctx, id, a.Status, valueobject.AgreementStatusPendingSignatures, s.sm.now())
	if err != nil {
		return nil, storeError(err, apperror.ErrAgreementNotFound)
	}

	if s.notifier != nil {
		caseID := c.ID
		s.notifier.FanoutAsync(ctx, NotificationEvent{
			Type:       models.NotificationAgreementReady,
			Title:      "Соглашение готово к подписи",
			Message:    "Ознакомьтесь с текстом соглашения и подпишите его",
			CaseID:     &caseID,
			Recipients: access.RequiredSigners(c),
		})
	}
	return updated, nil
}

// Sign добавляет подпись обязательного подписанта. Последняя недостающая подпись
// переводит соглашение в SIGNED и закрывает дело в той же транзакции.
func (s *AgreementService) Sign(ctx context.Context, actor access.Principal, id uuid.UUID, origin models.SignatureOrigin) (*models.SignOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.sm.timeout)
	defer cancel()

	a, err := s.agreements.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, apperror.ErrAgreementNotFound)
	}

	unlock := s.sm.locks.Lock(a.CaseID)
	defer unlock()

	c, err := s.sm.cases.GetByID(ctx, a.CaseID)
	if err != nil {
		return nil, storeError(err, apperror.ErrCaseNotFound)
	}
	if !access.IsRequiredSigner(actor, c) {
		return nil, apperror.New(apperror.ErrCodeAccessDenied, "подписать соглашение могут только стороны дела")
	}
	if a.HasSigned(actor.UserID) {
		return nil, storeError(common.ErrAlreadySigned, nil)
	}

	for attempt := 0; ; attempt++ {
		now := s.sm.now()
		sig := &models.AgreementSignature{
			ID:          uuid.New(),
			AgreementID: id,
			UserID:      actor.UserID,
			IPAddress:   origin.IPAddress,
			UserAgent:   origin.UserAgent,
			SignedAt:    now,
		}

		out, err := s.agreements.Sign(ctx, sig, settlementConsensus(actor, now))
		if errors.Is(err, common.ErrVersionConflict) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, storeError(err, apperror.ErrAgreementNotFound)
		}

		metrics.AgreementSignaturesTotal.WithLabelValues(fmt.Sprint(out.Consensus)).Inc()
		if out.Update != nil {
			s.sm.emit(ctx, out.Case, out.Update)
		}
		return out, nil
	}
}

var errAgreementNotSigned = apperror.New(apperror.ErrCodeConflict, "исполнить можно только подписанное соглашение")

// Execute отмечает подписанное соглашение исполненным.
func (s *AgreementService) Execute(ctx context.Context, actor access.Principal, id uuid.UUID) (*models.Agreement, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrAccessDenied
	}

	ctx, cancel := context.WithTimeout(ctx, s.sm.timeout)
	defer cancel()

	a, err := s.agreements.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, apperror.ErrAgreementNotFound)
	}
	if !a.Status.CanTransitionTo(valueobject.AgreementStatusExecuted) {
		return nil, errAgreementNotSigned
	}

	updated, err := s.agreements.UpdateStatus(ctx, id, a.Status, valueobject.AgreementStatusExecuted, s.sm.now())
	if errors.Is(err, common.ErrStatusMismatch) {
		return nil, errAgreementNotSigned
	}
	if err != nil {
		return nil, storeError(err, apperror.ErrAgreementNotFound)
	}
	return updated, nil
}

// GetByCase возвращает соглашение дела администратору, сторонам и членам панели.
func (s *AgreementService) GetByCase(ctx context.Context, actor access.Principal, caseID uuid.UUID) (*models.Agreement, error) {
	ctx, cancel := context.WithTimeout(ctx, s.sm.timeout)
	defer cancel()

	if _, _, err := s.sm.loadVisible(ctx, actor, caseID); err != nil {
		return nil, err
	}

	a, err := s.agreements.GetByCaseID(ctx, caseID)
	if err != nil {
		return nil, storeError(err, apperror.ErrAgreementNotFound)
	}
	return a, nil
}

// Export текстовое представление соглашения с подписями.
func (s *AgreementService) Export(ctx context.Context, actor access.Principal, id uuid.UUID) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.sm.timeout)
	defer cancel()

	a, err := s.agreements.GetByID(ctx, id)
	if err != nil {
		return "", storeError(err, apperror.ErrAgreementNotFound)
	}
	c, _, err := s.sm.loadVisible(ctx, actor, a.CaseID)
	if err != nil {
		return "", err
	}

	return renderAgreement(a, c), nil
}

// CreateTemplate сохраняет шаблон соглашения.
func (s *AgreementService) CreateTemplate(ctx context.Context, actor access.Principal, in TemplateInput) (*models.AgreementTemplate, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrAccessDenied
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.sm.timeout)
	defer cancel()

	t := &models.AgreementTemplate{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    in.Category,
		Content:     in.Content,
		IsActive:    true,
		CreatedAt:   s.sm.now(),
	}
	if err := s.agreements.CreateTemplate(ctx, t); err != nil {
		return nil, storeError(err, nil)
	}
	return t, nil
}

// ListTemplates активные шаблоны.
func (s *AgreementService) ListTemplates(ctx context.Context, actor access.Principal) ([]models.AgreementTemplate, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrAccessDenied
	}

	ctx, cancel := context.WithTimeout(ctx, s.sm.timeout)
	defer cancel()

	templates, err := s.agreements.ListTemplates(ctx, true)
	if err != nil {
		return nil, storeError(err, nil)
	}
	return templates, nil
}

func (s *AgreementService) loadWithCase(ctx context.Context, id uuid.UUID) (*models.Agreement, *models.Case, error) {
	a, err := s.agreements.GetByID(ctx, id)
	if err != nil {
		return nil, nil, storeError(err, apperror.ErrAgreementNotFound)
	}
	c, err := s.sm.cases.GetByID(ctx, a.CaseID)
	if err != nil {
		return nil, nil, storeError(err, apperror.ErrCaseNotFound)
	}
	return a, c, nil
}

// settlementConsensus решение о консенсусе, которое хранилище вызывает внутри транзакции подписи
// по уже заблокированным соглашению и делу.
func settlementConsensus(actor access.Principal, at time.Time) models.ConsensusFunc {
	return func(a *models.Agreement, c *models.Case) (models.ConsensusDecision, error) {
		if !access.IsRequiredSigner(actor, c) {
			return models.ConsensusDecision{}, apperror.New(apperror.ErrCodeAccessDenied, "подписать соглашение могут только стороны дела")
		}
		if c.Status != valueobject.CaseStatusResolved && !c.Status.CanSettle() {
			return models.ConsensusDecision{}, apperror.New(apperror.ErrCodeInvalidCaseState, "дело в статусе "+string(c.Status)+" нельзя урегулировать соглашением")
		}

		for _, signer := range access.RequiredSigners(c) {
			if !a.HasSigned(signer) {
				return models.ConsensusDecision{}, nil
			}
		}

		if c.Status == valueobject.CaseStatusResolved {
			return models.ConsensusDecision{Reached: true}, nil
		}

		actorID := actor.UserID
		ended := at
		resolution := "Стороны подписали мировое соглашение"
		return models.ConsensusDecision{
			Reached: true,
			Transition: &models.Transition{
				CaseID:           c.ID,
				From:             c.Status,
				To:               valueobject.CaseStatusResolved,
				ExpectedVersion:  c.Version,
				Description:      "Дело урегулировано: соглашение подписано всеми сторонами",
				ActorID:          &actorID,
				At:               at,
				MediationEndedAt: &ended,
				Resolution:       &resolution,
			},
		}, nil
	}
}

func renderAgreement(a *models.Agreement, c *models.Case) string {
	var b strings.Builder

	fmt.Fprintf(&b, "СОГЛАШЕНИЕ ПО ДЕЛУ %s\n", c.ID)
	fmt.Fprintf(&b, "Тип дела: %s\n", c.CaseType)
	fmt.Fprintf(&b, "Статус соглашения: %s\n", a.Status)
	fmt.Fprintf(&b, "Создано: %s\n", a.CreatedAt.Format(time.RFC3339))
	if a.SignedAt != nil {
		fmt.Fprintf(&b, "Подписано: %s\n", a.SignedAt.Format(time.RFC3339))
	}
	if a.ExecutedAt != nil {
		fmt.Fprintf(&b, "Исполнено: %s\n", a.ExecutedAt.Format(time.RFC3339))
	}

	b.WriteString("\n")
	b.WriteString(a.Content)
	b.WriteString("\n\nПОДПИСИ\n")

	if len(a.Signatures) == 0 {
		b.WriteString("нет\n")
	}
	for _, sig := range a.Signatures {
		fmt.Fprintf(&b, "- %s, %s, IP %s\n", sig.UserID, sig.SignedAt.Format(time.RFC3339), sig.IPAddress)
	}

	return b.String()
}
