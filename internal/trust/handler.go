package trust

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/auth"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/httpx"
)

type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// RegisterRoutes mounts the whitelist endpoints. Writes require the auth
// middleware to have run.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, secured gin.HandlerFunc) {
	sources := rg.Group("/trusted-sources")
	{
		sources.GET("", h.List)
		sources.GET("/:address", h.Get)
		sources.POST("/:address", secured, h.Add)
		sources.DELETE("/:address", secured, h.Remove)
	}
}

func (h *Handler) List(c *gin.Context) {
	sources, err := h.registry.TrustedSources(c.Request.Context())
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		out = append(out, s.Hex())
	}
	c.JSON(http.StatusOK, gin.H{
		"registry":        h.registry.Name(),
		"admin":           h.registry.Admin().Hex(),
		"trusted_sources": out,
	})
}

func (h *Handler) Get(c *gin.Context) {
	source, ok := httpx.AddressParam(c, "address")
	if !ok {
		return
	}
	trusted, err := h.registry.IsTrustedSource(c.Request.Context(), source)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": source.Hex(), "trusted": trusted})
}

func (h *Handler) Add(c *gin.Context) {
	h.set(c, true)
}

func (h *Handler) Remove(c *gin.Context) {
	h.set(c, false)
}

func (h *Handler) set(c *gin.Context, trusted bool) {
	source, ok := httpx.AddressParam(c, "address")
	if !ok {
		return
	}
	caller, _ := auth.Caller(c)

	var err error
	if trusted {
		err = h.registry.AddTrustedSource(c.Request.Context(), caller, source)
	} else {
		err = h.registry.RemoveTrustedSource(c.Request.Context(), caller, source)
	}
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": source.Hex(), "trusted": trusted})
}
