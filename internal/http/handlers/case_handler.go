package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/danmainah/resolveit-app/internal/http/handlers/common"
	"github.com/danmainah/resolveit-app/internal/http/response"
	"github.com/danmainah/resolveit-app/internal/service"
)

// CaseHandler обслуживает маршруты дел для сторон и членов панели.
type CaseHandler struct {
	cases  *service.CaseStateMachine
	panels *service.PanelService
}

// NewCaseHandler создаёт хэндлер дел.
func NewCaseHandler(cases *service.CaseStateMachine, panels *service.PanelService) *CaseHandler {
	return &CaseHandler{cases: cases, panels: panels}
}

// FileCase обрабатывает POST /cases.
func (h *CaseHandler) FileCase(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}

	var req service.FileCaseInput
	if !common.BindJSON(c, &req) {
		return
	}

	created, err := h.cases.FileCase(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, created)
}

// ListMyCases обрабатывает GET /cases/my.
func (h *CaseHandler) ListMyCases(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}

	limit, offset := common.GetPagination(c)
	cases, total, err := h.cases.ListMyCases(c.Request.Context(), principal, service.CaseListInput{
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

// GetCase обрабатывает GET /cases/:id.
func (h *CaseHandler) GetCase(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}
	caseID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	found, err := h.cases.GetCase(c.Request.Context(), principal, caseID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, found)
}

// Timeline обрабатывает GET /cases/:id/timeline.
func (h *CaseHandler) Timeline(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}
	caseID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	updates, err := h.cases.Timeline(c.Request.Context(), principal, caseID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, updates)
}

// UpdateStatus обрабатывает PATCH /cases/:id/status.
func (h *CaseHandler) UpdateStatus(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}
	caseID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req service.StatusInput
	if !common.BindJSON(c, &req) {
		return
	}

	updated, err := h.cases.UpdateStatus(c.Request.Context(), principal, caseID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, updated)
}

// GetPanel обрабатывает GET /cases/:id/panel.
func (h *CaseHandler) GetPanel(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}
	caseID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	panel, err := h.panels.GetPanel(c.Request.Context(), principal, caseID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, panel)
}
