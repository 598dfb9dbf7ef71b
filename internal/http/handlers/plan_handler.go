package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/autodesign-coordinator/internal/imposition"
	"github.com/tbourn/autodesign-coordinator/internal/presence"
)

// ListSheetsResponse wraps the sheet catalog.
type ListSheetsResponse struct {
	Sheets []imposition.Sheet `json:"sheets"`
}

// CreatePlanRequest selects a sheet and optionally restricts the plan to
// some orders. All DONE items are planned when OrderIDs is empty.
type CreatePlanRequest struct {
	Sheet    string   `json:"sheet"     binding:"required" example:"SRA3"`
	OrderIDs []string `json:"order_ids,omitempty"`
}

// ListAgentsResponse lists workers seen recently.
type ListAgentsResponse struct {
	Agents []presence.Agent `json:"agents"`
}

// ListSheets godoc
// @ID          listSheets
// @Summary     List press sheets
// @Tags        Planning
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.ListSheetsResponse
// @Router      /sheets [get]
func (h *Handlers) ListSheets(c *gin.Context) {
	ok(c, http.StatusOK, ListSheetsResponse{Sheets: h.planSvc.Sheets()})
}

// CreatePlan godoc
// @ID          createPlan
// @Summary     Compute a print plan
// @Description Lays out DONE items on the named sheet. Items without a trim size are returned as unplaceable.
// @Tags        Planning
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.CreatePlanRequest  true  "Plan request"
// @Success     200  {object}  services.PlanView
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown sheet"
// @Router      /plans [post]
func (h *Handlers) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sheet is required")
		return
	}
	plan, err := h.planSvc.Plan(c.Request.Context(), req.Sheet, req.OrderIDs)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, plan)
}

// ListAgents godoc
// @ID          listAgents
// @Summary     List online workers
// @Description Workers that made an authenticated request within the presence window, most recent first.
// @Tags        Agents
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.ListAgentsResponse
// @Router      /agents [get]
func (h *Handlers) ListAgents(c *gin.Context) {
	agents, err := h.presence.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if agents == nil {
		agents = []presence.Agent{}
	}
	ok(c, http.StatusOK, ListAgentsResponse{Agents: agents})
}
