package valueobject

import "github.com/danmainah/resolveit-app/internal/pkg/apperror"

type CaseType string

const (
	CaseTypeFamily   CaseType = "FAMILY"
	CaseTypeBusiness CaseType = "BUSINESS"
	CaseTypeCriminal CaseType = "CRIMINAL"
	CaseTypeProperty CaseType = "PROPERTY"
	CaseTypeOther    CaseType = "OTHER"
)

func (t CaseType) IsValid() bool {
	switch t {
	case CaseTypeFamily, CaseTypeBusiness, CaseTypeCriminal, CaseTypeProperty, CaseTypeOther:
		return true
	}
	return false
}

func NewCaseType(v string) (CaseType, error) {
	t := CaseType(v)
	if !t.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный тип дела")
	}
	return t, nil
}

// PanelRole роль участника панели медиации.
type PanelRole string

const (
	PanelRoleLawyer           PanelRole = "LAWYER"
	PanelRoleReligiousScholar PanelRole = "RELIGIOUS_SCHOLAR"
	PanelRoleSocialExpert     PanelRole = "SOCIAL_EXPERT"
)

// RequiredPanelRoles каждая роль должна быть представлена в панели хотя бы один раз.
var RequiredPanelRoles = []PanelRole{PanelRoleLawyer, PanelRoleReligiousScholar, PanelRoleSocialExpert}

func (r PanelRole) IsValid() bool {
	switch r {
	case PanelRoleLawyer, PanelRoleReligiousScholar, PanelRoleSocialExpert:
		return true
	}
	return false
}

func NewPanelRole(v string) (PanelRole, error) {
	r := PanelRole(v)
	if !r.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректная роль участника панели")
	}
	return r, nil
}

// MissingPanelRoles возвращает обязательные роли, которых нет в наборе.
func MissingPanelRoles(roles []PanelRole) []PanelRole {
	present := make(map[PanelRole]struct{}, len(roles))
	for _, r := range roles {
		present[r] = struct{}{}
	}

	var missing []PanelRole
	for _, r := range RequiredPanelRoles {
		if _, ok := present[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}
