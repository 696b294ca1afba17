// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rally/internal/config"
	"rally/internal/http/handlers"
	"rally/internal/http/middleware"
	"rally/internal/infra"
	"rally/internal/modules/discovery"
	"rally/internal/modules/location"
	"rally/internal/modules/match"
)

type RouterDeps struct {
	Engine        *discovery.Engine
	Flows         *discovery.Registry
	LocationStore *location.Store
	Broker        *match.Broker
	Area          handlers.AreaLabeler
	Verifier      infra.TokenVerifier
	Discovery     config.DiscoveryConfig
	Location      config.LocationConfig
	Logger        *zap.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	providers := handlers.NewProviders()
	discoveryHandler := handlers.NewDiscoveryHandler(
		deps.Engine, deps.Flows, providers, deps.LocationStore, deps.Area,
		deps.Discovery, deps.Location, deps.Logger)
	locationHandler := handlers.NewLocationHandler(deps.LocationStore, providers, deps.Logger)
	requestHandler := handlers.NewRequestHandler(deps.Broker)

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	api.POST("/discovery/session", discoveryHandler.StartSession)
	api.DELETE("/discovery/session", discoveryHandler.StopSession)
	api.POST("/discovery/filters", discoveryHandler.ReplaceFilters)
	api.GET("/discovery/candidates", discoveryHandler.Candidates)
	api.GET("/discovery/search", discoveryHandler.Search)

	api.POST("/location/fix", locationHandler.ReportFix)
	api.POST("/location/permission", locationHandler.ReportPermission)

	api.POST("/requests", requestHandler.Send)
	api.GET("/requests/:id", requestHandler.Get)

	return r
}
