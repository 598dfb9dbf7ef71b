package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/services"
)

// PutTemplateRequest is the operator-owned part of a template. Scan results
// (master file, assets, status) are only written by TEMPLATE_SCAN reports.
type PutTemplateRequest struct {
	Alias        string            `json:"alias"          example:"Svadobné oznámenie"`
	FolderPath   string            `json:"folder_path"    example:"/Volumes/Design/WED_BASIC"`
	Mapping      map[string]string `json:"mapping"`
	TrimWidthMM  float64           `json:"trim_width_mm"  example:"148"`
	TrimHeightMM float64           `json:"trim_height_mm" example:"105"`
}

// ListTemplatesResponse wraps the template catalog.
type ListTemplatesResponse struct {
	Templates []domain.TemplateConfig `json:"templates"`
}

// ListTemplates godoc
// @ID          listTemplates
// @Summary     List templates
// @Tags        Templates
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.ListTemplatesResponse
// @Router      /templates [get]
func (h *Handlers) ListTemplates(c *gin.Context) {
	list, err := h.tplSvc.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if list == nil {
		list = []domain.TemplateConfig{}
	}
	ok(c, http.StatusOK, ListTemplatesResponse{Templates: list})
}

// PutTemplate godoc
// @ID          putTemplate
// @Summary     Create or update a template
// @Tags        Templates
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       key   path  string                       true  "Template key"  example(WED_BASIC)
// @Param       body  body  handlers.PutTemplateRequest  true  "Template"
// @Success     200  {object}  domain.TemplateConfig
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /templates/{key} [put]
func (h *Handlers) PutTemplate(c *gin.Context) {
	var req PutTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	tpl, err := h.tplSvc.Upsert(c.Request.Context(), c.Param("key"), services.TemplateInput{
		Alias:        req.Alias,
		FolderPath:   req.FolderPath,
		Mapping:      req.Mapping,
		TrimWidthMM:  req.TrimWidthMM,
		TrimHeightMM: req.TrimHeightMM,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, tpl)
}

// DeleteTemplate godoc
// @ID          deleteTemplate
// @Summary     Delete a template
// @Tags        Templates
// @Security    BearerAuth
// @Param       key  path  string  true  "Template key"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Template not found"
// @Router      /templates/{key} [delete]
func (h *Handlers) DeleteTemplate(c *gin.Context) {
	if err := h.tplSvc.Delete(c.Request.Context(), c.Param("key")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// ScanTemplate godoc
// @ID          scanTemplate
// @Summary     Request a template scan
// @Description Moves the template to SCANNING so the next worker poll picks up a TEMPLATE_SCAN job.
// @Tags        Templates
// @Produce     json
// @Security    BearerAuth
// @Param       key  path  string  true  "Template key"
// @Success     202  {object}  domain.TemplateConfig
// @Failure     400  {object}  handlers.ErrorResponse  "Template has no folder"
// @Failure     404  {object}  handlers.ErrorResponse  "Template not found"
// @Router      /templates/{key}/scan [post]
func (h *Handlers) ScanTemplate(c *gin.Context) {
	tpl, err := h.tplSvc.TriggerScan(c.Request.Context(), c.Param("key"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusAccepted, tpl)
}
