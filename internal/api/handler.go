package api

import (
	"encoding/json"
	"net/http"

	"github.com/cortex-x/go-price-check-kiosk/internal/domain"
	"github.com/cortex-x/go-price-check-kiosk/internal/infra/websocket"
	gorilla "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Kiosk is the controller surface exposed over HTTP and WebSocket.
type Kiosk interface {
	State() domain.KioskState
	SwitchTo(source domain.InputSource)
	Submit(code string) bool
	OrientationChanged(vp domain.Viewport)
	HandleKey(key string, focused bool)
}

type Handler struct {
	hub      *websocket.Hub
	kiosk    Kiosk
	log      *zap.SugaredLogger
	upgrader gorilla.Upgrader
}

func NewHandler(hub *websocket.Hub, kiosk Kiosk, log *zap.SugaredLogger) *Handler {
	return &Handler{
		hub:   hub,
		kiosk: kiosk,
		log:   log,
		upgrader: gorilla.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The display page may be served from anywhere on the kiosk.
				return true
			},
		},
	}
}

func (h *Handler) WebSocketHandler(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warnw("websocket upgrade error", "error", err)
		return err
	}

	client, err := h.hub.RegisterClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil
	}

	go client.WritePump()
	go client.ReadPump()

	return nil
}

// HandleInbound routes display client messages to the kiosk.
func (h *Handler) HandleInbound(msg domain.InboundMessage) {
	switch msg.Type {
	case domain.MsgKeyDown:
		var ev domain.KeyEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			h.log.Debugw("bad key event", "error", err)
			return
		}
		h.kiosk.HandleKey(ev.Key, ev.Focused)

	case domain.MsgViewport:
		var req domain.ViewportRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil || req.Width <= 0 || req.Height <= 0 {
			h.log.Debugw("bad viewport event", "error", err)
			return
		}
		h.kiosk.OrientationChanged(domain.Viewport{Width: req.Width, Height: req.Height})

	case domain.MsgSwitchSource:
		var req domain.SwitchSourceRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			h.log.Debugw("bad source switch", "error", err)
			return
		}
		source, err := domain.ParseInputSource(req.Source)
		if err != nil {
			h.log.Debugw("bad source switch", "error", err)
			return
		}
		h.kiosk.SwitchTo(source)

	default:
		h.log.Debugw("unhandled inbound message", "type", msg.Type)
	}
}

func (h *Handler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "Price Check Kiosk",
		"clients": h.hub.ClientCount(),
	})
}

func (h *Handler) GetState(c echo.Context) error {
	return c.JSON(http.StatusOK, h.kiosk.State())
}

func (h *Handler) SwitchSource(c echo.Context) error {
	var req domain.SwitchSourceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	source, err := domain.ParseInputSource(req.Source)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.kiosk.SwitchTo(source)
	return c.JSON(http.StatusOK, h.kiosk.State())
}

func (h *Handler) SubmitScan(c echo.Context) error {
	var req domain.ScanRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if !h.kiosk.Submit(req.Code) {
		return c.JSON(http.StatusConflict, domain.ErrorResponse{
			Code:    domain.ErrCodePipelineBusy,
			Message: domain.ErrMsgPipelineBusy,
		})
	}
	return c.JSON(http.StatusAccepted, h.kiosk.State())
}

func (h *Handler) SetViewport(c echo.Context) error {
	var req domain.ViewportRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	h.kiosk.OrientationChanged(domain.Viewport{Width: req.Width, Height: req.Height})
	return c.JSON(http.StatusOK, h.kiosk.State())
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
