package service

import (
	"github.com/google/uuid"

	"github.com/danmainah/resolveit-app/internal/domain/valueobject"
	"github.com/danmainah/resolveit-app/internal/models"
)

// Recipients определяет получателей и категорию уведомления по статусу, в который перешло дело.
// Одна таблица для всех точек входа: админских команд, общего перехода, панели и консенсуса.
func Recipients(c *models.Case, panel *models.Panel) (models.NotificationType, []uuid.UUID) {
	switch c.Status {
	case valueobject.CaseStatusAwaitingResponse, valueobject.CaseStatusAccepted, valueobject.CaseStatusRejected:
		return models.NotificationCaseUpdate, c.PartyIDs()
	case valueobject.CaseStatusPanelCreated:
		return models.NotificationPanelInvitation, panel.MemberIDs()
	case valueobject.CaseStatusMediationInProgress:
		return models.NotificationMediationScheduled, uniqueIDs(append(c.PartyIDs(), panel.MemberIDs()...))
	case valueobject.CaseStatusResolved, valueobject.CaseStatusUnresolved:
		return models.NotificationCaseResolved, uniqueIDs(append(c.PartyIDs(), panel.MemberIDs()...))
	default:
		return models.NotificationCaseUpdate, nil
	}
}

func notificationTitle(status valueobject.CaseStatus) string {
	switch status {
	case valueobject.CaseStatusAwaitingResponse:
		return "Вторая сторона уведомлена"
	case valueobject.CaseStatusAccepted:
		return "Вторая сторона согласилась на медиацию"
	case valueobject.CaseStatusRejected:
		return "Вторая сторона отказалась от медиации"
	case valueobject.CaseStatusPanelCreated:
		return "Приглашение в панель медиации"
	case valueobject.CaseStatusMediationInProgress:
		return "Назначена медиация"
	case valueobject.CaseStatusResolved:
		return "Дело урегулировано"
	case valueobject.CaseStatusUnresolved:
		return "Медиация завершена без урегулирования"
	default:
		return "Статус дела изменён"
	}
}
