package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/cortex-x/go-price-check-kiosk/internal/api"
	"github.com/cortex-x/go-price-check-kiosk/internal/config"
	"github.com/cortex-x/go-price-check-kiosk/internal/domain"
	"github.com/cortex-x/go-price-check-kiosk/internal/hid"
	"github.com/cortex-x/go-price-check-kiosk/internal/infra/camera"
	"github.com/cortex-x/go-price-check-kiosk/internal/infra/websocket"
	"github.com/cortex-x/go-price-check-kiosk/internal/kiosk"
	"github.com/cortex-x/go-price-check-kiosk/internal/logger"
	"github.com/cortex-x/go-price-check-kiosk/internal/metrics"
	"github.com/cortex-x/go-price-check-kiosk/internal/pricing"
	"github.com/cortex-x/go-price-check-kiosk/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// New assembles the kiosk service. Extra options are appended, which lets
// tests replace providers with fx.Decorate or fx.Replace.
func New(opts ...fx.Option) *fx.App {
	return fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		Module,
		fx.Options(opts...),
	)
}

var Module = fx.Options(
	fx.Provide(
		config.Load,
		newLogger,
		newRegistry,
		newRecorder,
		websocket.NewHub,
		websocket.NewDisplay,
		newProber,
		newSessionManager,
		newPricingClient,
		newFormatter,
		newController,
		newServer,
	),
	fx.Invoke(runHub, runServer, runController, runHIDListener),
)

func newLogger(cfg *config.Config) (*zap.Logger, *zap.SugaredLogger, error) {
	base, err := logger.New(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return base, base.Sugar(), nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newRecorder(reg *prometheus.Registry) (*metrics.Recorder, error) {
	return metrics.New(reg)
}

func newProber(cfg *config.Config) *camera.DeviceProber {
	return camera.NewDeviceProber(cfg.Camera.DeviceGlob)
}

func newSessionManager(cfg *config.Config, prober *camera.DeviceProber, display *websocket.Display, base *zap.Logger) *session.Manager {
	decoders := camera.Factory(camera.ExecConfig{
		Command: cfg.Camera.Command,
		Args:    cfg.Camera.Args,
		Device:  cfg.Camera.Device,
		Settle:  cfg.Camera.StartSettle,
	}, prober, logger.Named(base, "camera"))

	return session.NewManager(decoders, display, session.Options{
		FPS:        cfg.Camera.FPS,
		FacingMode: cfg.Camera.FacingMode,
	}, logger.Named(base, "session"))
}

func newPricingClient(cfg *config.Config) *pricing.Client {
	return pricing.NewClient(cfg.Pricing.APIBase, cfg.Kiosk.DefaultProductName, cfg.Pricing.Timeout)
}

func newFormatter(cfg *config.Config) (*pricing.Formatter, error) {
	return pricing.NewFormatter(cfg.Kiosk.Locale, cfg.Kiosk.Currency)
}

func newController(
	cfg *config.Config,
	sessions *session.Manager,
	prober *camera.DeviceProber,
	client *pricing.Client,
	formatter *pricing.Formatter,
	display *websocket.Display,
	recorder *metrics.Recorder,
	base *zap.Logger,
) *kiosk.Controller {
	return kiosk.NewController(kiosk.Deps{
		Sessions:  sessions,
		Prober:    prober,
		Resolver:  client,
		Formatter: formatter,
		Display:   display,
		Metrics:   recorder,
		Log:       logger.Named(base, "kiosk"),
	}, kiosk.Options{
		ResultReset:          cfg.Kiosk.ResultReset,
		ErrorReset:           cfg.Kiosk.ErrorReset,
		RestartDelay:         cfg.Kiosk.RestartDelay,
		PriceNotFoundMessage: cfg.Kiosk.PriceNotFoundMessage,
		Viewport: domain.Viewport{
			Width:  cfg.Kiosk.ViewportWidth,
			Height: cfg.Kiosk.ViewportHeight,
		},
	})
}

func newServer(cfg *config.Config, hub *websocket.Hub, ctrl *kiosk.Controller, reg *prometheus.Registry, base *zap.Logger) *api.Server {
	return api.NewServer(cfg, hub, ctrl, reg, logger.Named(base, "http"))
}

func runHub(lc fx.Lifecycle, hub *websocket.Hub) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go hub.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func runServer(lc fx.Lifecycle, sd fx.Shutdowner, srv *api.Server, log *zap.SugaredLogger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorw("http server stopped", "error", err)
					_ = sd.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func runController(lc fx.Lifecycle, ctrl *kiosk.Controller) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctrl.Start(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			ctrl.Close()
			return nil
		},
	})
}

// runHIDListener reads a keyboard-wedge scanner directly when hid.device is set.
func runHIDListener(lc fx.Lifecycle, cfg *config.Config, ctrl *kiosk.Controller, base *zap.Logger) error {
	if cfg.HID.Device == "" {
		return nil
	}
	log := logger.Named(base, "hid")
	listener, err := hid.NewSerialListener(cfg.HID.Device, cfg.HID.Charset, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				err := listener.Run(ctx, func(key string) {
					ctrl.HandleKey(key, true)
				})
				if err != nil {
					log.Warnw("hid listener stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return nil
}
