package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/danmainah/resolveit-app/internal/access"
	"github.com/danmainah/resolveit-app/internal/http/handlers/common"
	"github.com/danmainah/resolveit-app/internal/http/response"
	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/service"
)

// AdminHandler обслуживает административные команды над делами.
// Проверка роли выполняется в сервисах.
type AdminHandler struct {
	cases  *service.CaseStateMachine
	panels *service.PanelService
	users  *service.UserService
}

// NewAdminHandler создаёт хэндлер администратора.
func NewAdminHandler(cases *service.CaseStateMachine, panels *service.PanelService, users *service.UserService) *AdminHandler {
	return &AdminHandler{cases: cases, panels: panels, users: users}
}

type caseCommand func(c *gin.Context, principal access.Principal) (*models.Case, error)

// runCaseCommand общий каркас команд над делом: участник, id дела, ответ.
func (h *AdminHandler) runCaseCommand(c *gin.Context, cmd caseCommand) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}

	updated, err := cmd(c, principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	if updated == nil {
		return
	}

	response.Success(c, updated)
}

// ContactOppositeParty обрабатывает POST /admin/cases/:id/contact.
func (h *AdminHandler) ContactOppositeParty(c *gin.Context) {
	h.runCaseCommand(c, func(c *gin.Context, p access.Principal) (*models.Case, error) {
		caseID, ok := common.ParseUUIDParam(c, "id")
		if !ok {
			return nil, nil
		}
		var req struct {
			Note string `json:"note"`
		}
		if c.Request.ContentLength > 0 && !common.BindJSON(c, &req) {
			return nil, nil
		}
		return h.cases.ContactOppositeParty(c.Request.Context(), p, caseID, req.Note)
	})
}

// RecordResponse обрабатывает POST /admin/cases/:id/response.
func (h *AdminHandler) RecordResponse(c *gin.Context) {
	h.runCaseCommand(c, func(c *gin.Context, p access.Principal) (*models.Case, error) {
		caseID, ok := common.ParseUUIDParam(c, "id")
		if !ok {
			return nil, nil
		}
		var req service.ResponseInput
		if !common.BindJSON(c, &req) {
			return nil, nil
		}
		return h.cases.RecordOppositePartyResponse(c.Request.Context(), p, caseID, req)
	})
}

// StartMediation обрабатывает POST /admin/cases/:id/mediation.
func (h *AdminHandler) StartMediation(c *gin.Context) {
	h.runCaseCommand(c, func(c *gin.Context, p access.Principal) (*models.Case, error) {
		caseID, ok := common.ParseUUIDParam(c, "id")
		if !ok {
			return nil, nil
		}
		var req service.MediationInput
		if c.Request.ContentLength > 0 && !common.BindJSON(c, &req) {
			return nil, nil
		}
		return h.cases.StartMediation(c.Request.Context(), p, caseID, req)
	})
}

// Resolve обрабатывает POST /admin/cases/:id/resolve.
func (h *AdminHandler) Resolve(c *gin.Context) {
	h.runCaseCommand(c, func(c *gin.Context, p access.Principal) (*models.Case, error) {
		caseID, ok := common.ParseUUIDParam(c, "id")
		if !ok {
			return nil, nil
		}
		var req service.ResolveInput
		if !common.BindJSON(c, &req) {
			return nil, nil
		}
		return h.cases.Resolve(c.Request.Context(), p, caseID, req)
	})
}

// FormPanel обрабатывает POST /admin/cases/:id/panel.
func (h *AdminHandler) FormPanel(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}
	caseID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req service.FormPanelInput
	if !common.BindJSON(c, &req) {
		return
	}

	panel, err := h.panels.FormPanel(c.Request.Context(), principal, caseID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, panel)
}

// ListCases обрабатывает GET /admin/cases.
func (h *AdminHandler) ListCases(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}

	limit, offset := common.GetPagination(c)
	cases, total, err := h.cases.ListCases(c.Request.Context(), principal, service.CaseListInput{
		Status: c.Query("status"),
		Type:   c.Query("type"),
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, cases, total, limit, offset)
}

// PanelMembers обрабатывает GET /admin/panel-members?role=.
func (h *AdminHandler) PanelMembers(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}

	members, err := h.panels.AvailableMembers(c.Request.Context(), principal, c.Query("role"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, members)
}

// VerifyUser обрабатывает PUT /admin/users/:id/verify.
func (h *AdminHandler) VerifyUser(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}
	userID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	req := struct {
		Verified *bool `json:"verified"`
	}{}
	if c.Request.ContentLength > 0 && !common.BindJSON(c, &req) {
		return
	}
	verified := true
	if req.Verified != nil {
		verified = *req.Verified
	}

	user, err := h.users.VerifyUser(c.Request.Context(), principal, userID, verified)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, user)
}
