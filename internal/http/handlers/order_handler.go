// Order HTTP handlers.
//
//   - GET  /orders                (list, paginated, weak ETag)
//   - GET  /orders/{id}           (one order with its items)
//   - POST /orders/{id}/complete  (COMPLETED override)
//   - POST /orders/{id}/abandon   (GENERATING items to ERROR)
//   - POST /orders/import         (storefront CSV export)
package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/services"
	"github.com/tbourn/autodesign-coordinator/internal/storefront"
)

// ListOrdersResponse wraps a page of orders and pagination information.
type ListOrdersResponse struct {
	Orders     []services.OrderView `json:"orders"`
	Pagination Pagination           `json:"pagination"`
}

// AbandonRequest optionally explains why a batch was abandoned.
type AbandonRequest struct {
	Detail string `json:"detail" binding:"max=4000" example:"worker crashed mid-render"`
}

// AbandonResponse reports how many items moved to ERROR.
type AbandonResponse struct {
	Success bool  `json:"success"`
	Items   int64 `json:"items"`
}

const defaultAbandonDetail = "abandoned by operator"

// ListOrders godoc
// @ID          listOrders
// @Summary     List orders (paginated)
// @Description Returns orders with their projected status, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Orders
// @Produce     json
// @Security    BearerAuth
// @Param       store_id       query   string  false  "Restrict to one store"
// @Param       status         query   string  false  "Projected status"  Enums(PENDING, AI_READY, ERROR, GENERATING, DONE, COMPLETED)
// @Param       page           query   int     false  "Page number"       minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"    minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {object}  handlers.ListOrdersResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad status filter"
// @Router      /orders [get]
func (h *Handlers) ListOrders(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)
	storeID := strings.TrimSpace(c.Query("store_id"))

	var status domain.OrderStatus
	if raw := strings.ToUpper(strings.TrimSpace(c.Query("status"))); raw != "" {
		s, err := domain.ParseOrderStatus(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		status = s
	}

	// ETag pre-check (best effort).
	if base, err := h.orderSvc.ETag(ctx, storeID); err == nil {
		etag := fmt.Sprintf(`%s:%s:%d:%d"`, strings.TrimSuffix(base, `"`), status, page, pageSize)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	orders, total, err := h.orderSvc.List(ctx, services.OrderFilter{
		StoreID:  storeID,
		Status:   status,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListOrdersResponse{
		Orders:     orders,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetOrder godoc
// @ID          getOrder
// @Summary     Get an order with its items
// @Tags        Orders
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Order ID"
// @Success     200  {object}  services.OrderView
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Router      /orders/{id} [get]
func (h *Handlers) GetOrder(c *gin.Context) {
	v, err := h.orderSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// CompleteOrder godoc
// @ID          completeOrder
// @Summary     Mark an order COMPLETED
// @Description Closes the order regardless of item states and notifies the storefront once.
// @Tags        Orders
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Order ID"
// @Success     200  {object}  services.OrderView
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Router      /orders/{id}/complete [post]
func (h *Handlers) CompleteOrder(c *gin.Context) {
	v, err := h.orderSvc.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// AbandonOrder godoc
// @ID          abandonOrder
// @Summary     Abandon a generating batch
// @Description Moves the order's GENERATING items to ERROR so they can be reset and claimed again.
// @Tags        Orders
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string                   true   "Order ID"
// @Param       body  body  handlers.AbandonRequest  false  "Reason"
// @Success     200  {object}  handlers.AbandonResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Nothing is generating"
// @Router      /orders/{id}/abandon [post]
func (h *Handlers) AbandonOrder(c *gin.Context) {
	var req AbandonRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	detail := strings.TrimSpace(req.Detail)
	if detail == "" {
		detail = defaultAbandonDetail
	}

	n, err := h.jobSvc.Abandon(c.Request.Context(), c.Param("id"), detail)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, AbandonResponse{Success: true, Items: n})
}

// ImportOrders godoc
// @ID          importOrders
// @Summary     Import orders from a storefront CSV export
// @Description Accepts the export as a multipart "file" field or as the raw request body. Rows are grouped by order number and ingested like a sync. Non-UTF-8 files are read as Windows-1250 unless charset says otherwise.
// @Tags        Orders
// @Accept      text/csv
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       store_id   query     string  true   "Store the orders belong to"
// @Param       separator  query     string  false  "Field separator"  default(;)
// @Param       charset    query     string  false  "Input charset"    Enums(utf-8, windows-1250)
// @Param       file       formData  file    false  "CSV export"
// @Success     200  {object}  services.ImportResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Store not found"
// @Router      /orders/import [post]
func (h *Handlers) ImportOrders(c *gin.Context) {
	storeID := strings.TrimSpace(c.Query("store_id"))
	if storeID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "store_id is required")
		return
	}
	opt := storefront.CSVOptions{Charset: c.Query("charset")}
	if sep := c.Query("separator"); sep != "" {
		r, size := utf8.DecodeRuneInString(sep)
		if size != len(sep) || r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "separator must be a single character")
			return
		}
		opt.Separator = r
	}

	var body io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart upload needs a file field")
			return
		}
		f, err := fh.Open()
		if err != nil {
			failErr(c, err)
			return
		}
		defer f.Close()
		body = f
	}

	res, err := h.orderSvc.ImportCSV(c.Request.Context(), storeID, body, opt)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
