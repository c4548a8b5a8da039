package issuer

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/auth"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/errs"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/httpx"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type RegisterProjectRequest struct {
	DataHash string `json:"data_hash"`
}

type MintRequest struct {
	To        string  `json:"to" binding:"required"`
	ProjectID *uint64 `json:"project_id" binding:"required"`
}

// RegisterRoutes mounts the issuer endpoints. secured must resolve the caller
// identity.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, secured gin.HandlerFunc) {
	issuer := rg.Group("/issuer")
	{
		issuer.GET("/status", h.Status)
		issuer.POST("/projects", secured, h.RegisterProject)
		issuer.GET("/projects/:id", h.GetProject)
		issuer.GET("/projects/:id/eligibility", h.Eligibility)
		issuer.POST("/mint", secured, h.Mint)
		issuer.POST("/pause", secured, h.Pause)
		issuer.POST("/unpause", secured, h.Unpause)
		issuer.GET("/balances/:address", h.Balance)
		issuer.GET("/tokens/:id", h.GetToken)
	}
}

func (h *Handler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	paused, err := h.service.Paused(ctx)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	count, err := h.service.ProjectCount(ctx)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":          h.service.Name(),
		"symbol":        h.service.Symbol(),
		"admin":         h.service.Admin().Hex(),
		"paused":        paused,
		"project_count": count,
	})
}

func (h *Handler) RegisterProject(c *gin.Context) {
	var req RegisterProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	caller, _ := auth.Caller(c)

	id, err := h.service.RegisterProject(c.Request.Context(), caller, req.DataHash)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "owner": caller.Hex(), "data_hash": req.DataHash})
}

func (h *Handler) GetProject(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	project, err := h.service.Project(c.Request.Context(), id)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         project.ID,
		"owner":      project.Owner.Hex(),
		"data_hash":  project.DataHash,
		"created_at": project.CreatedAt,
	})
}

// Eligibility reports the mint computation. A failing rule is returned with
// status 200 and the reason, since the dry run itself succeeded.
func (h *Handler) Eligibility(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	e, err := h.service.EligibilityOf(c.Request.Context(), id)
	if e == nil {
		httpx.RespondError(c, err)
		return
	}

	body := gin.H{
		"project_id":               e.ProjectID,
		"owner":                    e.Owner.Hex(),
		"energy_produced":          e.EnergyProduced.Dec(),
		"emissions_produced":       e.EmissionsProduced.Dec(),
		"average_emissions_factor": e.Factor.Dec(),
		"allowed_emissions":        e.AllowedEmissions.Dec(),
		"reduction":                e.Reduction.Dec(),
		"tokens":                   e.Tokens,
		"eligible":                 err == nil,
	}
	if err != nil {
		body["reason"] = errs.ReasonOf(err)
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) Mint(c *gin.Context) {
	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	if !common.IsHexAddress(req.To) {
		httpx.BadRequest(c, "invalid recipient address")
		return
	}
	caller, _ := auth.Caller(c)
	to := common.HexToAddress(req.To)

	mint, err := h.service.MintCarbonCredit(c.Request.Context(), caller, to, *req.ProjectID)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"project_id":     mint.ProjectID,
		"to":             mint.To.Hex(),
		"tokens_minted":  mint.Count,
		"first_token_id": mint.FirstTokenID,
		"timestamp":      mint.MintedAt.Unix(),
	})
}

func (h *Handler) Pause(c *gin.Context) {
	caller, _ := auth.Caller(c)
	if err := h.service.Pause(c.Request.Context(), caller); err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

func (h *Handler) Unpause(c *gin.Context) {
	caller, _ := auth.Caller(c)
	if err := h.service.Unpause(c.Request.Context(), caller); err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

func (h *Handler) Balance(c *gin.Context) {
	owner, ok := httpx.AddressParam(c, "address")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	ctx := c.Request.Context()
	balance, err := h.service.BalanceOf(ctx, owner)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	tokens, err := h.service.TokensOf(ctx, owner, limit)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"owner": owner.Hex(), "balance": balance, "tokens": tokens})
}

func (h *Handler) GetToken(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	token, err := h.service.Token(c.Request.Context(), id)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         token.ID,
		"project_id": token.ProjectID,
		"owner":      token.Owner.Hex(),
		"minted_at":  token.MintedAt,
	})
}

func uintParam(c *gin.Context, name string) (uint64, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		httpx.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}
