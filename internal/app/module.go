package app

import "github.com/gin-gonic/gin"

// Module is a feature area that mounts its own routes. api is /api/v1 and
// carries no CSRF check; pages is / with CSRF enforced.
type Module interface {
	RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup)
}
