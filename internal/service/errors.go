package service

import (
	"errors"

	"github.com/danmainah/resolveit-app/internal/pkg/apperror"
	"github.com/danmainah/resolveit-app/internal/repository/common"
)

// storeError переводит ошибки хранилища в коды приложения.
// notFound подставляется для common.ErrNotFound; неизвестные ошибки считаются недоступностью хранилища.
func storeError(err error, notFound *apperror.AppError) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, common.ErrNotFound):
		if notFound != nil {
			return notFound
		}
		return apperror.New(apperror.ErrCodeNotFound, "запись не найдена")
	case errors.Is(err, common.ErrAlreadyExists):
		return apperror.Wrap(err, apperror.ErrCodeConflict, "запись уже существует")
	case errors.Is(err, common.ErrVersionConflict):
		return apperror.Wrap(err, apperror.ErrCodeConcurrentModification, "дело было изменено параллельно, повторите запрос")
	case errors.Is(err, common.ErrPanelExists):
		return apperror.Wrap(err, apperror.ErrCodePanelAlreadyExists, "панель для дела уже сформирована")
	case errors.Is(err, common.ErrAgreementExists):
		return apperror.Wrap(err, apperror.ErrCodeAgreementAlreadyExists, "соглашение по делу уже создано")
	case errors.Is(err, common.ErrAgreementLocked):
		return apperror.Wrap(err, apperror.ErrCodeAgreementLocked, "соглашение уже подписано и не может быть изменено")
	case errors.Is(err, common.ErrAlreadySigned):
		return apperror.Wrap(err, apperror.ErrCodeAlreadySigned, "вы уже подписали соглашение")
	case errors.Is(err, common.ErrStatusMismatch):
		return apperror.Wrap(err, apperror.ErrCodeConflict, "статус соглашения не допускает операцию")
	default:
		return apperror.Wrap(err, apperror.ErrCodeUnavailable, "хранилище недоступно")
	}
}

func errInvalidTransition(from, to string) *apperror.AppError {
	return apperror.New(apperror.ErrCodeInvalidTransition, "переход "+from+" → "+to+" недопустим")
}
