package oracles

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/auth"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/trust"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/httpx"
)

type Handler struct {
	average *AverageOracle
	project *ProjectOracle
}

func NewHandler(average *AverageOracle, project *ProjectOracle) *Handler {
	return &Handler{average: average, project: project}
}

type UpdateFactorRequest struct {
	Value string `json:"value" binding:"required"`
}

type UpdateProjectDataRequest struct {
	EnergyProduced    string `json:"energy_produced" binding:"required"`
	EmissionsProduced string `json:"emissions_produced" binding:"required"`
}

// RegisterRoutes mounts both oracles under /oracles. secured must resolve the
// caller identity for every write.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, secured gin.HandlerFunc) {
	oracles := rg.Group("/oracles")

	average := oracles.Group("/average")
	{
		trust.NewHandler(h.average.Registry).RegisterRoutes(average, secured)
		average.GET("/factor", h.GetFactor)
		average.PUT("/factor", secured, h.UpdateFactor)
	}

	project := oracles.Group("/project")
	{
		trust.NewHandler(h.project.Registry).RegisterRoutes(project, secured)
		project.GET("/projects/:address", h.GetProject)
		project.POST("/projects/:address", secured, h.RegisterProject)
		project.PUT("/projects/:address/data", secured, h.UpdateProjectData)
	}
}

func (h *Handler) GetFactor(c *gin.Context) {
	value, err := h.average.GetAverageEmissionsFactor(c.Request.Context())
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": value.Dec()})
}

func (h *Handler) UpdateFactor(c *gin.Context) {
	var req UpdateFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	value, err := httpx.ParseAmount(req.Value)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	caller, _ := auth.Caller(c)

	if err := h.average.UpdateAverageEmissionsFactor(c.Request.Context(), caller, value); err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": value.Dec()})
}

func (h *Handler) GetProject(c *gin.Context) {
	address, ok := httpx.AddressParam(c, "address")
	if !ok {
		return
	}
	rec, err := h.project.Project(c.Request.Context(), address)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, projectJSON(rec))
}

func (h *Handler) RegisterProject(c *gin.Context) {
	address, ok := httpx.AddressParam(c, "address")
	if !ok {
		return
	}
	caller, _ := auth.Caller(c)

	if err := h.project.RegisterProject(c.Request.Context(), caller, address); err != nil {
		httpx.RespondError(c, err)
		return
	}
	rec, err := h.project.Project(c.Request.Context(), address)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, projectJSON(rec))
}

func (h *Handler) UpdateProjectData(c *gin.Context) {
	address, ok := httpx.AddressParam(c, "address")
	if !ok {
		return
	}
	var req UpdateProjectDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	energy, err := httpx.ParseAmount(req.EnergyProduced)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	emissions, err := httpx.ParseAmount(req.EmissionsProduced)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	caller, _ := auth.Caller(c)

	if err := h.project.UpdateProjectData(c.Request.Context(), caller, address, energy, emissions); err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address":            address.Hex(),
		"registered":         true,
		"energy_produced":    energy.Dec(),
		"emissions_produced": emissions.Dec(),
	})
}

func projectJSON(rec *ProjectRecord) gin.H {
	return gin.H{
		"address":            rec.Address.Hex(),
		"registered":         rec.Registered,
		"energy_produced":    rec.EnergyProduced.Dec(),
		"emissions_produced": rec.EmissionsProduced.Dec(),
	}
}
