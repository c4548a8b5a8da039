package auth

import "github.com/gin-gonic/gin"

// RegisterRoutes registers Auth routes
func RegisterRoutes(rg *gin.RouterGroup, handler *Handler) {
	authGroup := rg.Group("/auth")
	{
		authGroup.GET("/ping", handler.Ping)

		secured := authGroup.Group("", handler.authenticator.Middleware())
		secured.GET("/me", handler.Me)
		secured.POST("/refresh", handler.Refresh)
	}
}
