package bootstrap

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	httpapi "github.com/tradejournal/broker-live-sync/internal/api/http"
	"github.com/tradejournal/broker-live-sync/internal/api/http/middleware"
	livestatehttp "github.com/tradejournal/broker-live-sync/internal/broker_live_state/http"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	InternalKey string
	DB          httpapi.Pinger
	Ingester    livestatehttp.Ingester
	Logger      *slog.Logger
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoMethod(livestatehttp.MethodNotAllowed)

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(dep.Logger))
	r.Use(cors.New(corsConfig()))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB)
	healthHandler.RegisterRoutes(r)

	liveState := livestatehttp.New(dep.Ingester, dep.InternalKey, dep.Logger)
	liveState.Register(r)

	return r
}

func corsConfig() cors.Config {
	return cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"POST", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", livestatehttp.InternalKeyHeader, middleware.RequestIDHeader},
		ExposeHeaders:   []string{middleware.RequestIDHeader},
		MaxAge:          12 * time.Hour,
	}
}
