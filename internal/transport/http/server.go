package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ServerConfig configures the status endpoint.
type ServerConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	Version           string
}

// NewServer builds the HTTP status server with its routes.
func NewServer(src StatusSource, cfg ServerConfig, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	handlers := NewStatusHandlers(src, cfg.Version, logger)
	router.GET("/health", handlers.Health)
	router.GET("/stats", handlers.Stats)
	router.GET("/stats/:id", handlers.Session)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
