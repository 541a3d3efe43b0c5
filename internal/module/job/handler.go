package job

import (
	"errors"

	"github.com/chopshop/server/internal/module/order"
	"github.com/chopshop/server/internal/shared/middleware"
	"github.com/chopshop/server/internal/shared/response"
	"github.com/gin-gonic/gin"
)

// Handler exposes fulfillment over HTTP.
type Handler struct {
	service *Service
}

// NewHandler creates a new job handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers fulfillment routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/orders/:id/fulfill", h.StartFulfillment)
	jobs := rg.Group("/jobs")
	{
		jobs.GET("/:id", h.GetStatus)
		jobs.POST("/:id/cancel", h.Cancel)
	}
}

// FulfillRequest carries the customer inputs fed to the workflow.
type FulfillRequest struct {
	Inputs map[string]interface{} `json:"inputs"`
}

// StartFulfillment creates and dispatches the job for a pending order.
func (h *Handler) StartFulfillment(c *gin.Context) {
	var req FulfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	j, err := h.service.StartFulfillment(c.Request.Context(), middleware.GetAccountID(c), c.Param("id"), req.Inputs)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, ErrNotOwner):
			response.NotFound(c, "order not found")
		case errors.Is(err, ErrOrderNotFulfillable):
			response.Conflict(c, "ORDER_NOT_FULFILLABLE", "order cannot be fulfilled in its current state")
		case errors.Is(err, ErrTemplateNotFound):
			response.UnprocessableEntity(c, "NO_WORKFLOW", "item has no fulfillment workflow")
		default:
			response.InternalError(c)
		}
		return
	}
	response.Accepted(c, j)
}

// GetStatus returns the job with step-level detail.
func (h *Handler) GetStatus(c *gin.Context) {
	j, steps, err := h.service.GetStatus(c.Request.Context(), middleware.GetAccountID(c), c.Param("id"))
	if err != nil {
		h.writeJobError(c, err)
		return
	}
	response.Success(c, gin.H{"job": j, "steps": steps})
}

// Cancel stops a non-terminal job and refunds its credits.
func (h *Handler) Cancel(c *gin.Context) {
	err := h.service.Cancel(c.Request.Context(), middleware.GetAccountID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrAlreadyTerminal) {
			response.Conflict(c, "ALREADY_TERMINAL", "job already finished")
			return
		}
		h.writeJobError(c, err)
		return
	}
	response.Success(c, gin.H{"cancelled": true})
}

func (h *Handler) writeJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrJobNotFound), errors.Is(err, ErrNotOwner):
		response.NotFound(c, "job not found")
	default:
		response.InternalError(c)
	}
}
