package catalog

import (
	"errors"

	"github.com/chopshop/server/internal/shared/response"
	"github.com/gin-gonic/gin"
)

// Handler exposes the catalog over HTTP.
type Handler struct {
	service *Service
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers catalog routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	catalog := rg.Group("/catalog")
	{
		catalog.GET("/items", h.ListItems)
		catalog.GET("/items/:code", h.GetItem)
		catalog.GET("/plans", h.ListPlans)
	}
}

// ListItems returns all active catalog items.
func (h *Handler) ListItems(c *gin.Context) {
	items, err := h.service.ListItems(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.Success(c, gin.H{"items": items})
}

// GetItem returns one catalog item by code.
func (h *Handler) GetItem(c *gin.Context) {
	item, err := h.service.GetItem(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			response.NotFound(c, "catalog item not found")
			return
		}
		response.InternalError(c)
		return
	}
	response.Success(c, item)
}

// ListPlans returns all active subscription plans.
func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.service.ListPlans(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.Success(c, gin.H{"plans": plans})
}
