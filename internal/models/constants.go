package models

// Роли пользователей.
const (
	RoleUser             = "USER"
	RoleAdmin            = "ADMIN"
	RoleLawyer           = "LAWYER"
	RoleReligiousScholar = "RELIGIOUS_SCHOLAR"
	RoleSocialExpert     = "SOCIAL_EXPERT"
)

// ValidRoles список допустимых ролей.
var ValidRoles = map[string]struct{}{
	RoleUser:             {},
	RoleAdmin:            {},
	RoleLawyer:           {},
	RoleReligiousScholar: {},
	RoleSocialExpert:     {},
}

// NotificationType категория уведомления.
type NotificationType string

const (
	NotificationCaseUpdate         NotificationType = "CASE_UPDATE"
	NotificationPanelInvitation    NotificationType = "PANEL_INVITATION"
	NotificationMediationScheduled NotificationType = "MEDIATION_SCHEDULED"
	NotificationCaseResolved       NotificationType = "CASE_RESOLVED"
	NotificationAgreementReady     NotificationType = "AGREEMENT_READY"
	NotificationSystem             NotificationType = "SYSTEM"
)
