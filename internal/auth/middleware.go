// Package auth attributes every API call to a caller identity.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	callerKey    = "caller"
	callerHeader = "X-Caller-Address"
)

// Authenticator resolves the caller address of a request.
type Authenticator struct {
	secret      []byte
	allowHeader bool
	now         func() time.Time
}

// NewAuthenticator verifies HS256 tokens signed with secret. With allowHeader
// the X-Caller-Address header is accepted instead of a token (local use only).
func NewAuthenticator(secret string, allowHeader bool) *Authenticator {
	return &Authenticator{secret: []byte(secret), allowHeader: allowHeader, now: time.Now}
}

// IssueToken signs a token whose subject is address.
func (a *Authenticator) IssueToken(address common.Address, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   address.Hex(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Resolve extracts the caller address from the request headers.
func (a *Authenticator) Resolve(r *http.Request) (common.Address, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return common.Address{}, fmt.Errorf("malformed authorization header")
		}
		return a.parse(raw)
	}
	if a.allowHeader {
		if addr := r.Header.Get(callerHeader); addr != "" {
			if !common.IsHexAddress(addr) {
				return common.Address{}, fmt.Errorf("invalid caller address %q", addr)
			}
			return common.HexToAddress(addr), nil
		}
	}
	return common.Address{}, fmt.Errorf("missing credentials")
}

func (a *Authenticator) parse(raw string) (common.Address, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid token: %w", err)
	}
	if !common.IsHexAddress(claims.Subject) {
		return common.Address{}, fmt.Errorf("token subject is not an address")
	}
	return common.HexToAddress(claims.Subject), nil
}

// Middleware rejects unauthenticated requests and stores the caller.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := a.Resolve(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated", "message": err.Error()})
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

// Caller returns the identity stored by Middleware.
func Caller(c *gin.Context) (common.Address, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return common.Address{}, false
	}
	addr, ok := v.(common.Address)
	return addr, ok
}
