package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/chopshop/server/internal/module/credits"
	"github.com/chopshop/server/internal/module/pricing"
	"github.com/chopshop/server/internal/shared/middleware"
	"github.com/chopshop/server/internal/shared/response"
	"github.com/gin-gonic/gin"
)

// Handler exposes quoting and order acceptance over HTTP.
type Handler struct {
	service *Service
}

// NewHandler creates a new order handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers order routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/orders")
	{
		orders.POST("/quote", h.Quote)
		orders.POST("", h.Accept)
		orders.GET("", h.List)
		orders.GET("/:id", h.Get)
		orders.POST("/:id/cancel", h.Cancel)
	}
}

// QuoteRequest is the body for quoting and accepting orders.
type QuoteRequest struct {
	ItemCode      string   `json:"item_code" binding:"required"`
	Quantity      int64    `json:"quantity" binding:"required,min=1"`
	ModifierCodes []string `json:"modifier_codes"`
}

// Quote prices an order request without committing anything.
func (h *Handler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	quote, err := h.service.Quote(c.Request.Context(), middleware.GetAccountID(c), req.ItemCode, req.Quantity, req.ModifierCodes)
	if err != nil {
		h.writeQuoteError(c, err)
		return
	}
	response.Success(c, quote)
}

// Accept turns a quote into a persisted order, debiting the ledger.
func (h *Handler) Accept(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	o, err := h.service.Accept(c.Request.Context(), middleware.GetAccountID(c), req.ItemCode, req.Quantity, req.ModifierCodes)
	if err != nil {
		if errors.Is(err, credits.ErrInsufficientCredits) {
			response.Error(c, http.StatusPaymentRequired, "INSUFFICIENT_CREDITS", "insufficient credits")
			return
		}
		h.writeQuoteError(c, err)
		return
	}
	response.Created(c, o)
}

// Get returns one order.
func (h *Handler) Get(c *gin.Context) {
	o, err := h.service.Get(c.Request.Context(), middleware.GetAccountID(c), c.Param("id"))
	if err != nil {
		h.writeOrderError(c, err)
		return
	}
	response.Success(c, o)
}

// List returns the account's recent orders.
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	orders, err := h.service.List(c.Request.Context(), middleware.GetAccountID(c), limit)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.Success(c, gin.H{"orders": orders})
}

// Cancel cancels an order that has not started fulfillment.
func (h *Handler) Cancel(c *gin.Context) {
	err := h.service.CancelPending(c.Request.Context(), middleware.GetAccountID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			response.Conflict(c, "ALREADY_PROCESSING", "order can no longer be cancelled here")
			return
		}
		h.writeOrderError(c, err)
		return
	}
	response.Success(c, gin.H{"cancelled": true})
}

func (h *Handler) writeQuoteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pricing.ErrItemNotFound):
		response.NotFound(c, "catalog item not found")
	case errors.Is(err, pricing.ErrInvalidQuantity):
		response.BadRequest(c, "quantity must be at least 1")
	case pricing.IsMarginTooLow(err):
		response.UnprocessableEntity(c, "MARGIN_TOO_LOW", err.Error())
	default:
		response.InternalError(c)
	}
}

func (h *Handler) writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrNotOwner):
		response.NotFound(c, "order not found")
	default:
		response.InternalError(c)
	}
}
