package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/event_marketplace_api/internal/service"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

// SubscriptionHandler handles supplier subscription endpoints.
type SubscriptionHandler struct {
	subscriptions *service.SubscriptionService
}

// NewSubscriptionHandler constructs a SubscriptionHandler.
func NewSubscriptionHandler(subscriptions *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// Create handles POST /v1/subscriptions
func (h *SubscriptionHandler) Create(c *gin.Context) {
	var req service.CreateSubscriptionRequest
	if !bindJSON(c, &req) {
		return
	}

	sub, err := h.subscriptions.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 201, "Subscription created", sub)
}

// Renew handles POST /v1/subscriptions/renew
func (h *SubscriptionHandler) Renew(c *gin.Context) {
	var req service.RenewSubscriptionRequest
	// Empty body renews the current plan.
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	sub, err := h.subscriptions.Renew(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Subscription renewed", sub)
}

// Cancel handles POST /v1/subscriptions/cancel
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	var req service.CancelSubscriptionRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	sub, err := h.subscriptions.CancelOwn(c.Request.Context(), actorFrom(c), req.Reason)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Subscription cancelled", sub)
}

// SetAutoRenew handles POST /v1/subscriptions/auto-renew
func (h *SubscriptionHandler) SetAutoRenew(c *gin.Context) {
	var req service.AutoRenewRequest
	if !bindJSON(c, &req) {
		return
	}

	sub, err := h.subscriptions.SetAutoRenew(c.Request.Context(), actorFrom(c), req.AutoRenew)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Auto renew updated", sub)
}

// Usage handles GET /v1/subscriptions/usage
func (h *SubscriptionHandler) Usage(c *gin.Context) {
	info, err := h.subscriptions.Usage(c.Request.Context(), actorFrom(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Usage retrieved", info)
}
