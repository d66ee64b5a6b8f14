package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/event_marketplace_api/internal/service"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

// BookingHandler handles booking endpoints.
type BookingHandler struct {
	bookings *service.BookingService
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// Create handles POST /v1/bookings
func (h *BookingHandler) Create(c *gin.Context) {
	var req service.CreateBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	b, err := h.bookings.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 201, "Booking created", b)
}

// ListMine handles GET /v1/bookings/my
func (h *BookingHandler) ListMine(c *gin.Context) {
	page, limit := pageParams(c)
	items, total, err := h.bookings.ListForClient(c.Request.Context(), actorFrom(c), page, limit)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessWithPagination(c, 200, "Bookings retrieved", items, page, limit, total)
}

// ListForSupplier handles GET /v1/bookings/supplier
func (h *BookingHandler) ListForSupplier(c *gin.Context) {
	page, limit := pageParams(c)
	items, total, err := h.bookings.ListForSupplier(c.Request.Context(), actorFrom(c), page, limit)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessWithPagination(c, 200, "Bookings retrieved", items, page, limit, total)
}

// UpdateStatus handles PATCH /v1/bookings/:id/status
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.UpdateBookingStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	b, err := h.bookings.UpdateStatus(c.Request.Context(), actorFrom(c), id, req.Status)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Booking "+string(b.Status), b)
}

// Cancel handles POST /v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	b, err := h.bookings.Cancel(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Booking cancelled", b)
}
