package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/services"
	"github.com/tbourn/autodesign-coordinator/internal/utils"
)

// UpdateItemRequest is an operator edit of one item. Omitted members are
// left unchanged; approve moves a PENDING item to AI_READY.
type UpdateItemRequest struct {
	Fields       map[string]string `json:"fields,omitempty"`
	Approve      bool              `json:"approve"`
	TrimWidthMM  *float64          `json:"trim_width_mm,omitempty"  example:"148"`
	TrimHeightMM *float64          `json:"trim_height_mm,omitempty" example:"105"`
}

// ListItemsResponse wraps a list of items.
type ListItemsResponse struct {
	Items []domain.OrderItem `json:"items"`
}

// UpdateItem godoc
// @ID          updateItem
// @Summary     Edit or approve an item
// @Description Fields and trim size can change while the item is PENDING, AI_READY, or ERROR.
// @Tags        Items
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string                      true  "Item ID"
// @Param       body  body  handlers.UpdateItemRequest  true  "Edit"
// @Success     200  {object}  domain.OrderItem
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Item not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Item is locked"
// @Router      /items/{id} [patch]
func (h *Handlers) UpdateItem(c *gin.Context) {
	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	it, err := h.orderSvc.UpdateItem(c.Request.Context(), c.Param("id"), services.ItemUpdate{
		Fields:       req.Fields,
		Approve:      req.Approve,
		TrimWidthMM:  req.TrimWidthMM,
		TrimHeightMM: req.TrimHeightMM,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, it)
}

// ResetItem godoc
// @ID          resetItem
// @Summary     Reset an ERROR item
// @Description Moves an ERROR item back to AI_READY and clears its result and error detail.
// @Tags        Items
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Item ID"
// @Success     200  {object}  domain.OrderItem
// @Failure     404  {object}  handlers.ErrorResponse  "Item not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Item is not in ERROR"
// @Router      /items/{id}/reset [post]
func (h *Handlers) ResetItem(c *gin.Context) {
	it, err := h.jobSvc.ResetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, it)
}

// RetryExtraction godoc
// @ID          retryExtraction
// @Summary     Re-run field extraction
// @Description Retries extraction for a PENDING item whose first attempt degraded.
// @Tags        Items
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Item ID"
// @Success     200  {object}  domain.OrderItem
// @Failure     404  {object}  handlers.ErrorResponse  "Item not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Item is not PENDING"
// @Failure     502  {object}  handlers.ErrorResponse  "Extractor unavailable"
// @Router      /items/{id}/extract [post]
func (h *Handlers) RetryExtraction(c *gin.Context) {
	it, err := h.orderSvc.RetryExtraction(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, it)
}

// ListStaleItems godoc
// @ID          listStaleItems
// @Summary     List stuck GENERATING items
// @Tags        Items
// @Produce     json
// @Security    BearerAuth
// @Param       older_than  query  string  false  "Minimum age as a Go duration"  example(2h)
// @Success     200  {object}  handlers.ListItemsResponse
// @Router      /items/stale [get]
func (h *Handlers) ListStaleItems(c *gin.Context) {
	olderThan := utils.DurationDefault(c.Query("older_than"), 0)
	items, err := h.jobSvc.ListStale(c.Request.Context(), olderThan)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListItemsResponse{Items: items})
}
