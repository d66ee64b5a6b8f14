package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/event_marketplace_api/internal/service"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

// ContactRequestHandler handles contact request endpoints.
type ContactRequestHandler struct {
	contacts *service.ContactRequestService
}

// NewContactRequestHandler constructs a ContactRequestHandler.
func NewContactRequestHandler(contacts *service.ContactRequestService) *ContactRequestHandler {
	return &ContactRequestHandler{contacts: contacts}
}

// Submit handles POST /v1/contact-requests
func (h *ContactRequestHandler) Submit(c *gin.Context) {
	var req service.SubmitContactRequest
	if !bindJSON(c, &req) {
		return
	}

	cr, err := h.contacts.Submit(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, 201, "Contact request sent", cr)
}

// ListForSupplier handles GET /v1/contact-requests/supplier
func (h *ContactRequestHandler) ListForSupplier(c *gin.Context) {
	page, limit := pageParams(c)
	items, total, err := h.contacts.ListForSupplier(c.Request.Context(), actorFrom(c), page, limit)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessWithPagination(c, 200, "Contact requests retrieved", items, page, limit, total)
}

// ListForClient handles GET /v1/contact-requests/client
func (h *ContactRequestHandler) ListForClient(c *gin.Context) {
	page, limit := pageParams(c)
	items, total, err := h.contacts.ListForClient(c.Request.Context(), actorFrom(c), page, limit)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessWithPagination(c, 200, "Contact requests retrieved", items, page, limit, total)
}

// Status handles GET /v1/contact-requests/status?clientId&supplierId&serviceId
func (h *ContactRequestHandler) Status(c *gin.Context) {
	clientID, err1 := strconv.Atoi(c.Query("clientId"))
	supplierID, err2 := strconv.Atoi(c.Query("supplierId"))
	serviceID, err3 := strconv.Atoi(c.Query("serviceId"))
	if err1 != nil || err2 != nil || err3 != nil {
		utils.Error(c, 400, "MISSING_FIELD", "clientId, supplierId and serviceId are required")
		return
	}

	cr, err := h.contacts.Status(c.Request.Context(), actorFrom(c), clientID, supplierID, serviceID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Contact request retrieved", cr)
}

// Respond handles PATCH /v1/contact-requests/:id/status
func (h *ContactRequestHandler) Respond(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.RespondContactRequest
	if !bindJSON(c, &req) {
		return
	}

	cr, err := h.contacts.Respond(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Contact request "+string(cr.Status), cr)
}

// Convert handles POST /v1/contact-requests/:id/convert
func (h *ContactRequestHandler) Convert(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.ConvertContactRequest
	if !bindJSON(c, &req) {
		return
	}

	b, err := h.contacts.Convert(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 201, "Booking created from contact request", b)
}
