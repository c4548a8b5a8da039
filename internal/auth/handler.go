package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authenticator *Authenticator
	tokenTTL      time.Duration
}

func NewHandler(authenticator *Authenticator, tokenTTL time.Duration) *Handler {
	return &Handler{authenticator: authenticator, tokenTTL: tokenTTL}
}

// Ping endpoint
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "auth service alive!"})
}

// Me echoes the authenticated caller address.
func (h *Handler) Me(c *gin.Context) {
	caller, ok := Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": caller.Hex()})
}

// Refresh issues a fresh token for the authenticated caller.
func (h *Handler) Refresh(c *gin.Context) {
	caller, ok := Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}
	token, err := h.authenticator.IssueToken(caller, h.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": int(h.tokenTTL.Seconds())})
}
