package server

import (
	"github.com/cozy-creator/bg-remover/internal/api"
	"github.com/cozy-creator/bg-remover/internal/api/middleware"
	"github.com/cozy-creator/bg-remover/internal/app"
	"github.com/gin-gonic/gin"
)

func (s *Server) SetupRoutes(app *app.App) {
	s.ginEngine.GET("/", handlerWrapper(app, api.Root))
	s.ginEngine.GET("/api/health", handlerWrapper(app, api.GetHealth))

	// Not an API, just a simple file server endpoint
	s.ginEngine.GET("/file/*filename", handlerWrapper(app, api.GetFile))

	processing := s.ginEngine.Group("")
	if app.Config().RequireAPIKey {
		processing.Use(handlerWrapper(app, middleware.AuthenticationMiddleware))
	}

	processing.POST("/remove-bg", handlerWrapper(app, api.RemoveBackground))
	processing.POST("/remove-bg-simple", handlerWrapper(app, api.RemoveBackgroundHeuristic))
	processing.POST("/replace-bg", handlerWrapper(app, api.ReplaceBackground))
	processing.GET("/api/history", handlerWrapper(app, api.ListHistory))
}

func handlerWrapper(app *app.App, f func(c *gin.Context)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set("app", app)
		f(ctx)
	}
}
