package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/event_marketplace_api/internal/service"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

// RatingHandler handles service ratings.
type RatingHandler struct {
	ratings *service.RatingService
}

// NewRatingHandler constructs a RatingHandler.
func NewRatingHandler(ratings *service.RatingService) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

// Rate handles POST /v1/services/:id/ratings
func (h *RatingHandler) Rate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.RateRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.ratings.Rate(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Rating saved", res)
}

// List handles GET /v1/services/:id/ratings
func (h *RatingHandler) List(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)
	items, total, err := h.ratings.List(c.Request.Context(), id, page, limit)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessWithPagination(c, 200, "Ratings retrieved", items, page, limit, total)
}

// Summary handles GET /v1/services/:id/ratings/summary
func (h *RatingHandler) Summary(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	sum, err := h.ratings.Summary(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Rating summary retrieved", sum)
}

// Eligibility handles GET /v1/services/:id/ratings/eligibility
func (h *RatingHandler) Eligibility(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	el, err := h.ratings.Eligibility(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Rating eligibility retrieved", el)
}

// Mine handles GET /v1/services/:id/ratings/me
func (h *RatingHandler) Mine(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rt, err := h.ratings.Mine(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Rating retrieved", rt)
}
