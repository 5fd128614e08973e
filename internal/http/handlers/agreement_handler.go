package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/danmainah/resolveit-app/internal/http/handlers/common"
	"github.com/danmainah/resolveit-app/internal/http/response"
	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/service"
)

// AgreementHandler обслуживает маршруты соглашений и шаблонов.
type AgreementHandler struct {
	agreements *service.AgreementService
}

// NewAgreementHandler создаёт хэндлер соглашений.
func NewAgreementHandler(agreements *service.AgreementService) *AgreementHandler {
	return &AgreementHandler{agreements: agreements}
}

// signResponse ответ на подпись: соглашение и признак достигнутого консенсуса.
type signResponse struct {
	Agreement  *models.Agreement `json:"agreement"`
	Consensus  bool              `json:"consensus"`
	CaseStatus string            `json:"case_status,omitempty"`
}

// ListTemplates обрабатывает GET /agreements/templates.
func (h *AgreementHandler) ListTemplates(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}

	templates, err := h.agreements.ListTemplates(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, templates)
}

// CreateTemplate обрабатывает POST /agreements/templates.
func (h *AgreementHandler) CreateTemplate(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}

	var req service.TemplateInput
	if !common.BindJSON(c, &req) {
		return
	}

	template, err := h.agreements.CreateTemplate(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, template)
}

// CreateAgreement обрабатывает POST /agreements.
func (h *AgreementHandler) CreateAgreement(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}

	var req service.CreateAgreementInput
	if !common.BindJSON(c, &req) {
		return
	}

	agreement, err := h.agreements.CreateAgreement(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, agreement)
}

// GetByCase обрабатывает GET /agreements/case/:caseId.
func (h *AgreementHandler) GetByCase(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}
	caseID, ok := common.ParseUUIDParam(c, "caseId")
	if !ok {
		return
	}

	agreement, err := h.agreements.GetByCase(c.Request.Context(), principal, caseID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, agreement)
}

// EditAgreement обрабатывает PUT /agreements/:id.
func (h *AgreementHandler) EditAgreement(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req service.EditAgreementInput
	if !common.BindJSON(c, &req) {
		return
	}

	agreement, err := h.agreements.EditAgreement(c.Request.Context(), principal, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, agreement)
}

// RequestSignatures обрабатывает POST /agreements/:id/request-signatures.
func (h *AgreementHandler) RequestSignatures(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	agreement, err := h.agreements.RequestSignatures(c.Request.Context(), principal, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, agreement)
}

// Sign обрабатывает POST /agreements/:id/sign. IP и User-Agent берутся из запроса.
func (h *AgreementHandler) Sign(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	out, err := h.agreements.Sign(c.Request.Context(), principal, id, models.SignatureOrigin{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := signResponse{Agreement: out.Agreement, Consensus: out.Consensus}
	if out.Case != nil {
		resp.CaseStatus = string(out.Case.Status)
	}
	response.Success(c, resp)
}

// Execute обрабатывает POST /agreements/:id/execute.
func (h *AgreementHandler) Execute(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	agreement, err := h.agreements.Execute(c.Request.Context(), principal, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, agreement)
}

// Export обрабатывает GET /agreements/:id/export. Отдаёт текст соглашения как вложение.
func (h *AgreementHandler) Export(c *gin.Context) {
	principal, ok := common.CurrentPrincipal(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	text, err := h.agreements.Export(c.Request.Context(), principal, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="agreement-`+id.String()+`.txt"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}
