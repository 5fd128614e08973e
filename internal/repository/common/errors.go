package common

import "errors"

// Общие ошибки для всех реализаций хранилища (postgres и memstore).
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrVersionConflict дело изменилось между чтением и условной записью.
	ErrVersionConflict = errors.New("case version conflict")
	// ErrPanelExists у дела уже есть панель.
	ErrPanelExists = errors.New("panel already exists")
	// ErrAgreementExists у дела уже есть соглашение.
	ErrAgreementExists = errors.New("agreement already exists")
	// ErrAgreementLocked соглашение уже подписано.
	ErrAgreementLocked = errors.New("agreement locked")
	// ErrAlreadySigned пользователь уже подписал соглашение.
	ErrAlreadySigned = errors.New("agreement already signed by user")
	// ErrStatusMismatch соглашение не в ожидаемом статусе.
	ErrStatusMismatch = errors.New("agreement status mismatch")
)
