package credits

import (
	"errors"
	"strconv"

	"github.com/chopshop/server/internal/shared/middleware"
	"github.com/chopshop/server/internal/shared/response"
	"github.com/gin-gonic/gin"
)

// Handler exposes the ledger over HTTP.
type Handler struct {
	service *Service
}

// NewHandler creates a new credits handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers credits routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/credits")
	{
		group.GET("/balance", h.GetBalance)
		group.GET("/transactions", h.ListTransactions)
	}
}

// GetBalance returns the authenticated account's balance.
func (h *Handler) GetBalance(c *gin.Context) {
	accountID := middleware.GetAccountID(c)
	balance, err := h.service.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			response.NotFound(c, "account not found")
			return
		}
		response.InternalError(c)
		return
	}
	response.Success(c, gin.H{"account_id": accountID, "balance_cents": balance})
}

// ListTransactions returns recent ledger entries for the authenticated account.
func (h *Handler) ListTransactions(c *gin.Context) {
	accountID := middleware.GetAccountID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	transactions, err := h.service.ListTransactions(c.Request.Context(), accountID, limit)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.Success(c, gin.H{"transactions": transactions})
}
