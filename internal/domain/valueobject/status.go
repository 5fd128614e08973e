package valueobject

import "github.com/danmainah/resolveit-app/internal/pkg/apperror"

type CaseStatus string

const (
	CaseStatusPending             CaseStatus = "PENDING"
	CaseStatusAwaitingResponse    CaseStatus = "AWAITING_RESPONSE"
	CaseStatusAccepted            CaseStatus = "ACCEPTED"
	CaseStatusPanelCreated        CaseStatus = "PANEL_CREATED"
	CaseStatusMediationInProgress CaseStatus = "MEDIATION_IN_PROGRESS"
	CaseStatusResolved            CaseStatus = "RESOLVED"
	CaseStatusUnresolved          CaseStatus = "UNRESOLVED"
	CaseStatusRejected            CaseStatus = "REJECTED"
)

var caseTransitions = map[CaseStatus][]CaseStatus{
	CaseStatusPending:             {CaseStatusAwaitingResponse},
	CaseStatusAwaitingResponse:    {CaseStatusAccepted, CaseStatusRejected},
	CaseStatusAccepted:            {CaseStatusPanelCreated},
	CaseStatusPanelCreated:        {CaseStatusMediationInProgress},
	CaseStatusMediationInProgress: {CaseStatusResolved, CaseStatusUnresolved},
	CaseStatusResolved:            {},
	CaseStatusUnresolved:          {},
	CaseStatusRejected:            {},
}

func (s CaseStatus) IsValid() bool {
	_, ok := caseTransitions[s]
	return ok
}

// IsTerminal сообщает, что из статуса нет исходящих переходов.
func (s CaseStatus) IsTerminal() bool {
	return s == CaseStatusResolved || s == CaseStatusUnresolved || s == CaseStatusRejected
}

func (s CaseStatus) CanTransitionTo(newStatus CaseStatus) bool {
	allowed, ok := caseTransitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

// CanSettle сообщает, может ли подписанное соглашение закрыть дело из этого статуса.
// Дело должно быть принято второй стороной и ещё не завершено.
func (s CaseStatus) CanSettle() bool {
	switch s {
	case CaseStatusAccepted, CaseStatusPanelCreated, CaseStatusMediationInProgress:
		return true
	}
	return false
}

func NewCaseStatus(status string) (CaseStatus, error) {
	s := CaseStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус дела")
	}
	return s, nil
}

type AgreementStatus string

const (
	AgreementStatusDraft             AgreementStatus = "DRAFT"
	AgreementStatusPendingSignatures AgreementStatus = "PENDING_SIGNATURES"
	AgreementStatusSigned            AgreementStatus = "SIGNED"
	AgreementStatusExecuted          AgreementStatus = "EXECUTED"
)

func (s AgreementStatus) IsValid() bool {
	switch s {
	case AgreementStatusDraft, AgreementStatusPendingSignatures, AgreementStatusSigned, AgreementStatusExecuted:
		return true
	}
	return false
}

// IsEditable сообщает, можно ли ещё менять текст соглашения.
func (s AgreementStatus) IsEditable() bool {
	return s == AgreementStatusDraft || s == AgreementStatusPendingSignatures
}

func (s AgreementStatus) CanTransitionTo(newStatus AgreementStatus) bool {
	transitions := map[AgreementStatus][]AgreementStatus{
		AgreementStatusDraft:             {AgreementStatusPendingSignatures, AgreementStatusSigned},
		AgreementStatusPendingSignatures: {AgreementStatusSigned},
		AgreementStatusSigned:            {AgreementStatusExecuted},
		AgreementStatusExecuted:          {},
	}

	for _, status := range transitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}
