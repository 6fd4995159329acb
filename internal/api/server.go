// Package api exposes the registration service over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pepu-name-service/internal/domain"
	"pepu-name-service/internal/observability"
	"pepu-name-service/internal/registry"
)

// Registry is the registration service used by the handlers.
type Registry interface {
	RegisterIfEligible(ctx context.Context, name, owner, txHash string) (*domain.DomainRecord, error)
	RegisterWithPolling(ctx context.Context, name, owner string) (*domain.DomainRecord, error)
	Exists(ctx context.Context, name string) (bool, error)
	Availability(ctx context.Context, input string) (registry.Availability, error)
	Lookup(ctx context.Context, name string) (*domain.DomainRecord, error)
	OwnedBy(ctx context.Context, wallet string) (*domain.DomainRecord, error)
	Stats(ctx context.Context) (registry.Stats, error)
}

var _ Registry = (*registry.Registrar)(nil)

// Config holds router settings.
type Config struct {
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string

	// Price and Asset describe the registration fee in display units,
	// e.g. "5" and "USDC".
	Price string
	Asset string
}

// Server holds the handler dependencies.
type Server struct {
	reg    Registry
	feed   http.Handler
	cfg    Config
	logger *zap.Logger
}

// NewRouter builds the gin engine. feed may be nil to disable /api/ws.
func NewRouter(reg Registry, feed http.Handler, cfg Config, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		reg:    reg,
		feed:   feed,
		cfg:    cfg,
		logger: logger.Named("api"),
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logger(s.logger), Metrics(), CORS(cfg.AllowedOrigins))

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(observability.Handler()))

	api := r.Group("/api", RateLimit(cfg.RateLimit, cfg.RateBurst))
	api.GET("/check-domain", s.checkDomain)
	api.POST("/verify-payment", s.verifyPayment)
	api.GET("/availability", s.availability)
	api.GET("/domains/:name", s.getDomain)
	api.GET("/owners/:wallet/domain", s.ownerDomain)
	api.GET("/stats", s.stats)
	if feed != nil {
		api.GET("/ws", gin.WrapH(feed))
	}

	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
