package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/event_marketplace_api/internal/middleware"
	"github.com/GTDGit/event_marketplace_api/internal/service"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{ID: middleware.CurrentUserID(c), Role: middleware.CurrentRole(c)}
}

// pathID parses the :id path parameter and writes a 400 when it is invalid.
func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		utils.Error(c, 400, "INVALID_ID", "Invalid id")
		return 0, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return false
	}
	return true
}
