package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cozy-creator/bg-remover/internal/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/logger"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

const multipartMemory = 8 << 20

type Server struct {
	listenAddr string
	ginEngine  *gin.Engine
	inner      *http.Server
}

func NewServer(config *config.Config) (*Server, error) {
	gin.SetMode(getGinMode(config.Environment))
	r := gin.New()
	r.MaxMultipartMemory = multipartMemory

	// Setup logger middleware
	r.Use(logger.SetLogger(
		logger.WithUTC(true),
		logger.WithSkipPath([]string{"/api/health"}),
	))

	// Setup CORS middleware
	r.Use(cors.New(corsConfig(config)))

	// Serve the optional frontend; unmatched paths fall through to the API.
	if config.PublicDir != "" {
		r.Use(static.Serve("/", static.LocalFile(config.PublicDir, true)))
	}
	r.Use(gin.Recovery())

	listenAddr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	return &Server{
		listenAddr: listenAddr,
		ginEngine:  r,
		inner: &http.Server{
			Handler: r,
			Addr:    listenAddr,
		},
	}, nil
}

func (s *Server) Start() (err error) {
	if err := s.inner.ListenAndServe(); err != nil {
		return err
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := s.inner.Shutdown(ctx); err != nil {
		return err
	}

	return nil
}

func (s *Server) Addr() string {
	return s.listenAddr
}

// Handler exposes the engine so tests can drive it without a listener.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

func corsConfig(cfg *config.Config) cors.Config {
	origins := []string{"*"}
	if cfg.Cors != nil && len(cfg.Cors.AllowOrigins) > 0 {
		origins = cfg.Cors.AllowOrigins
	}

	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"*"},
		AllowCredentials: true,
		MaxAge:           300 * time.Second,
	}

	// cors rejects "*" together with credentials, so reflect the caller's
	// origin instead.
	if len(origins) == 1 && origins[0] == "*" {
		c.AllowOriginFunc = func(string) bool { return true }
	} else {
		c.AllowOrigins = origins
	}

	return c
}

func getGinMode(env string) string {
	switch env {
	case "dev", "development":
		return gin.DebugMode
	case "test":
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}
