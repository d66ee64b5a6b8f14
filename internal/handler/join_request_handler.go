package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/event_marketplace_api/internal/models"
	"github.com/GTDGit/event_marketplace_api/internal/service"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

// JoinRequestHandler handles supplier applications.
type JoinRequestHandler struct {
	joins *service.JoinRequestService
}

// NewJoinRequestHandler constructs a JoinRequestHandler.
func NewJoinRequestHandler(joins *service.JoinRequestService) *JoinRequestHandler {
	return &JoinRequestHandler{joins: joins}
}

// Submit handles POST /v1/join-requests
func (h *JoinRequestHandler) Submit(c *gin.Context) {
	var req service.SubmitJoinRequest
	if !bindJSON(c, &req) {
		return
	}
	jr, err := h.joins.Submit(c.Request.Context(), req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 201, "Join request submitted", jr)
}

// List handles GET /v1/admin/join-requests
func (h *JoinRequestHandler) List(c *gin.Context) {
	page, limit := pageParams(c)
	f := models.JoinRequestFilter{Status: c.Query("status"), Page: page, Limit: limit}
	items, total, err := h.joins.List(c.Request.Context(), f)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessWithPagination(c, 200, "Join requests retrieved", items, page, limit, total)
}

// Review handles PATCH /v1/admin/join-requests/:id/review
func (h *JoinRequestHandler) Review(c *gin.Context) {
	h.decide(c, "Join request marked as reviewed", h.joins.MarkReviewed)
}

// Approve handles PATCH /v1/admin/join-requests/:id/approve
func (h *JoinRequestHandler) Approve(c *gin.Context) {
	h.decide(c, "Join request approved", h.joins.Approve)
}

// Reject handles PATCH /v1/admin/join-requests/:id/reject
func (h *JoinRequestHandler) Reject(c *gin.Context) {
	h.decide(c, "Join request rejected", h.joins.Reject)
}

type joinDecision func(ctx context.Context, actor service.Actor, id int) (*models.JoinRequest, error)

func (h *JoinRequestHandler) decide(c *gin.Context, message string, fn joinDecision) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	jr, err := fn(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, message, jr)
}
