package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/event_marketplace_api/internal/service"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

// CatalogHandler handles service catalog endpoints.
type CatalogHandler struct {
	catalog       *service.CatalogService
	subscriptions *service.SubscriptionService
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService, subscriptions *service.SubscriptionService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, subscriptions: subscriptions}
}

// CreateService handles POST /v1/services
func (h *CatalogHandler) CreateService(c *gin.Context) {
	var req service.CreateServiceRequest
	if !bindJSON(c, &req) {
		return
	}

	svc, err := h.catalog.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, 201, "Service created", svc)
}

// GetService handles GET /v1/services/:id
func (h *CatalogHandler) GetService(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	svc, err := h.catalog.Get(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, 200, "Service retrieved", svc)
}

// ListPlans handles GET /v1/plans
func (h *CatalogHandler) ListPlans(c *gin.Context) {
	utils.Success(c, 200, "Plans retrieved", h.subscriptions.Plans())
}
