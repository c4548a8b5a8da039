package events

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo Repository
	hub  *Hub
}

func NewHandler(repo Repository, hub *Hub) *Handler {
	return &Handler{repo: repo, hub: hub}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/events", h.List)
	if h.hub != nil {
		h.hub.RegisterRoutes(rg)
	}
}

// List returns the audit trail, oldest first.
func (h *Handler) List(c *gin.Context) {
	var filter Filter
	if t := c.Query("type"); t != "" {
		typ := Type(t)
		filter.Type = &typ
	}
	if component := c.Query("component"); component != "" {
		filter.Component = &component
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidInput", "message": "invalid limit"})
			return
		}
		filter.Limit = n
	}

	records, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}
