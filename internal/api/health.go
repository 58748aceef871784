package api

import (
	"net/http"
	"time"

	"github.com/cozy-creator/bg-remover/internal/app"
	"github.com/cozy-creator/bg-remover/internal/config"
	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Service       string    `json:"service"`
	Version       string    `json:"version"`
	Environment   string    `json:"environment"`
	Backend       string    `json:"backend"`
	BackendLoaded bool      `json:"backend_loaded"`
	Error         *string   `json:"error"`
}

type RootResponse struct {
	Message   string            `json:"message"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}

func GetHealth(c *gin.Context) {
	app := c.MustGet("app").(*app.App)
	status := app.Health()

	response := HealthResponse{
		Status:        status.String(),
		Timestamp:     time.Now().UTC(),
		Service:       app.Config().ServiceName,
		Version:       config.ServiceVersion,
		Environment:   app.Config().Environment,
		Backend:       status.Backend,
		BackendLoaded: status.BackendLoaded,
	}
	if status.Error != "" {
		response.Error = &status.Error
	}

	c.JSON(http.StatusOK, response)
}

func Root(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	endpoints := map[string]string{
		"health":           "/api/health",
		"remove_bg":        "/remove-bg",
		"remove_bg_simple": "/remove-bg-simple",
		"replace_bg":       "/replace-bg",
	}
	if app.ProcessedImageRepository != nil {
		endpoints["history"] = "/api/history"
	}

	c.JSON(http.StatusOK, RootResponse{
		Message:   "Background Remover API",
		Service:   app.Config().ServiceName,
		Version:   config.ServiceVersion,
		Status:    app.Health().String(),
		Endpoints: endpoints,
	})
}
