// Package httpx holds the gin helpers shared by the API handlers.
package httpx

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"

	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/errs"
)

var statusByKind = map[errs.Kind]int{
	errs.KindUnauthorized:  http.StatusForbidden,
	errs.KindInvalidInput:  http.StatusBadRequest,
	errs.KindInvalidState:  http.StatusUnprocessableEntity,
	errs.KindNotRegistered: http.StatusConflict,
	errs.KindSystemPaused:  http.StatusConflict,
	errs.KindAlreadyPaused: http.StatusConflict,
	errs.KindNotPaused:     http.StatusConflict,
	errs.KindNotFound:      http.StatusNotFound,
}

// RespondError writes err as {"error": kind, "message": reason}.
func RespondError(c *gin.Context, err error) {
	kind, ok := errs.KindOf(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal", "message": err.Error()})
		return
	}
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": string(kind), "message": errs.ReasonOf(err)})
}

// BadRequest writes an InvalidInput response.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": string(errs.KindInvalidInput), "message": message})
}

// AddressParam parses the named path parameter as a hex address.
func AddressParam(c *gin.Context, name string) (common.Address, bool) {
	raw := c.Param(name)
	if !common.IsHexAddress(raw) {
		BadRequest(c, "invalid address")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// ParseAmount parses a non-negative decimal integer up to 2^256-1.
func ParseAmount(raw string) (*uint256.Int, error) {
	if raw == "" {
		return nil, errs.New(errs.KindInvalidInput, "amount is required")
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, errs.New(errs.KindInvalidInput, "amount must be a decimal integer")
	}
	return v, nil
}
