package api

import (
	"context"
	"fmt"

	"github.com/cortex-x/go-price-check-kiosk/internal/config"
	"github.com/cortex-x/go-price-check-kiosk/internal/infra/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	echo    *echo.Echo
	config  *config.Config
	handler *Handler
	log     *zap.SugaredLogger
}

func NewServer(cfg *config.Config, hub *websocket.Hub, kiosk Kiosk, gatherer prometheus.Gatherer, log *zap.SugaredLogger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		Skipper: func(c echo.Context) bool {
			p := c.Path()
			return p == "/health" || p == "/metrics"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Infow("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	handler := NewHandler(hub, kiosk, log)
	hub.OnInbound(handler.HandleInbound)

	// Routes
	e.GET("/health", handler.HealthCheck)
	e.GET("/ws", handler.WebSocketHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := e.Group("/api/v1")
	v1.GET("/state", handler.GetState)
	v1.PUT("/source", handler.SwitchSource)
	v1.POST("/scans", handler.SubmitScan)
	v1.PUT("/viewport", handler.SetViewport)

	return &Server{
		echo:    e,
		config:  cfg,
		handler: handler,
		log:     log,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Server.Port)
	s.log.Infow("starting http server", "addr", addr)

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
