package handler

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/event_marketplace_api/internal/models"
	"github.com/GTDGit/event_marketplace_api/internal/service"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler handles admin supplier and subscription endpoints.
type AdminHandler struct {
	accounts      *service.AccountService
	subscriptions *service.SubscriptionService
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(accounts *service.AccountService, subscriptions *service.SubscriptionService) *AdminHandler {
	return &AdminHandler{accounts: accounts, subscriptions: subscriptions}
}

// UnlockSupplier handles POST /v1/admin/suppliers/:id/unlock
func (h *AdminHandler) UnlockSupplier(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	u, err := h.accounts.Unlock(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Supplier unlocked", u)
}

// SuppliersNeedingAttention handles GET /v1/admin/suppliers/attention
func (h *AdminHandler) SuppliersNeedingAttention(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	users, err := h.accounts.NeedingAttention(c.Request.Context(), limit)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Suppliers retrieved", users)
}

func subscriptionFilter(c *gin.Context) models.SubscriptionFilter {
	page, limit := pageParams(c)
	return models.SubscriptionFilter{
		Status: c.Query("status"),
		Plan:   c.Query("plan"),
		Page:   page,
		Limit:  limit,
	}
}

// ListSubscriptions handles GET /v1/admin/subscriptions
func (h *AdminHandler) ListSubscriptions(c *gin.Context) {
	f := subscriptionFilter(c)
	items, total, err := h.subscriptions.List(c.Request.Context(), f)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessWithPagination(c, 200, "Subscriptions retrieved", items, f.Page, f.Limit, total)
}

// SubscriptionStats handles GET /v1/admin/subscriptions/stats
func (h *AdminHandler) SubscriptionStats(c *gin.Context) {
	stats, err := h.subscriptions.Stats(c.Request.Context())
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Subscription stats retrieved", stats)
}

// ExportSubscriptions handles GET /v1/admin/subscriptions/export
func (h *AdminHandler) ExportSubscriptions(c *gin.Context) {
	data, name, err := h.subscriptions.Export(c.Request.Context(), subscriptionFilter(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(200, xlsxContentType, data)
}

// CancelSubscription handles POST /v1/admin/subscriptions/:id/cancel
func (h *AdminHandler) CancelSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.CancelSubscriptionRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	sub, err := h.subscriptions.Cancel(c.Request.Context(), actorFrom(c), id, req.Reason)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Subscription cancelled", sub)
}

// ExtendSubscription handles POST /v1/admin/subscriptions/:id/extend
func (h *AdminHandler) ExtendSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.ExtendSubscriptionRequest
	if !bindJSON(c, &req) {
		return
	}

	sub, err := h.subscriptions.Extend(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, fmt.Sprintf("Subscription extended by %d days", req.Days), sub)
}

// GetSubscription handles GET /v1/admin/subscriptions/:id
func (h *AdminHandler) GetSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	details, err := h.subscriptions.Details(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Subscription retrieved", details)
}

// UpdateSubscription handles PATCH /v1/admin/subscriptions/:id
func (h *AdminHandler) UpdateSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.UpdateSubscriptionRequest
	if !bindJSON(c, &req) {
		return
	}

	sub, err := h.subscriptions.Update(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Subscription updated", sub)
}
