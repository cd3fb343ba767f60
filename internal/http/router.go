package http

import (
	"log/slog"

	"github.com/geocoder89/weatherhub/internal/http/handlers"
	"github.com/geocoder89/weatherhub/internal/http/middlewares"
	"github.com/geocoder89/weatherhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Gateway interface {
	handlers.AuthGateway
	middlewares.Authenticator
}

type Deps struct {
	Env            string
	Log            *slog.Logger
	Gateway        Gateway
	Weather        handlers.WeatherService
	Prom           *observability.Prom
	Gatherer       prometheus.Gatherer
	Checks         map[string]handlers.Check
	AllowedOrigins []string
	MaxBodyBytes   int64
}

func NewRouter(d Deps) *gin.Engine {
	if d.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	r := gin.New()

	// middleware
	r.Use(otelgin.Middleware(observability.ServiceName))
	r.Use(middlewares.Recovery(d.Log))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(d.Prom.GinHandleMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))

	// health
	h := handlers.NewHealthHandler(d.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	authMW := middlewares.NewAuthMiddleware(d.Gateway)
	jsonOnly := middlewares.RequireJSON()

	// accounts
	authHandler := handlers.NewAuthHandler(d.Gateway, d.Prom)
	r.POST("/signup", jsonOnly, authHandler.SignUp)
	r.POST("/login", jsonOnly, authHandler.Login)
	r.GET("/verify", authMW.RequireAuth(), authHandler.Verify)
	r.POST("/logout", authMW.RequireAuth(), authHandler.Logout)

	// weather
	weatherHandler := handlers.NewWeatherHandler(d.Weather, d.Log)
	r.GET("/weather/current", weatherHandler.Current)
	r.GET("/weather/forecast", authMW.RequireAuth(), weatherHandler.Forecast)
	r.POST("/get", jsonOnly, weatherHandler.City)

	r.NoRoute(handlers.NoRoute)

	return r
}
