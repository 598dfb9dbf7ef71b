package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/services"
)

// CreateStoreRequest registers a WooCommerce storefront. The consumer secret
// is sealed before it is stored and never returned.
type CreateStoreRequest struct {
	Name           string `json:"name"            binding:"required,max=255" example:"Tlačiareň Jana"`
	BaseURL        string `json:"base_url"        binding:"required,url"     example:"https://shop.example.sk"`
	ConsumerKey    string `json:"consumer_key"    binding:"required"`
	ConsumerSecret string `json:"consumer_secret" binding:"required"`
	PluginKey      string `json:"plugin_key,omitempty"`
}

// ListStoresResponse wraps the registered stores.
type ListStoresResponse struct {
	Stores []domain.Store `json:"stores"`
}

// ListStores godoc
// @ID          listStores
// @Summary     List storefronts
// @Tags        Stores
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.ListStoresResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /stores [get]
func (h *Handlers) ListStores(c *gin.Context) {
	stores, err := h.storeSvc.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if stores == nil {
		stores = []domain.Store{}
	}
	ok(c, http.StatusOK, ListStoresResponse{Stores: stores})
}

// CreateStore godoc
// @ID          createStore
// @Summary     Register a storefront
// @Tags        Stores
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.CreateStoreRequest  true  "Store registration"
// @Success     201  {object}  domain.Store
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /stores [post]
func (h *Handlers) CreateStore(c *gin.Context) {
	var req CreateStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name, base_url, consumer_key and consumer_secret are required")
		return
	}
	st, err := h.storeSvc.Create(c.Request.Context(), services.StoreInput{
		Name:           req.Name,
		BaseURL:        req.BaseURL,
		ConsumerKey:    req.ConsumerKey,
		ConsumerSecret: req.ConsumerSecret,
		PluginKey:      req.PluginKey,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, st)
}

// SyncStore godoc
// @ID          syncStore
// @Summary     Ingest orders from a storefront
// @Description Fetches recent orders, upserts them, matches templates, and runs field extraction. Per-order failures are reported in the result.
// @Tags        Stores
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Store ID"
// @Success     200  {object}  services.SyncResult
// @Failure     404  {object}  handlers.ErrorResponse  "Store not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Storefront unavailable"
// @Router      /stores/{id}/sync [post]
func (h *Handlers) SyncStore(c *gin.Context) {
	res, err := h.orderSvc.SyncStore(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
