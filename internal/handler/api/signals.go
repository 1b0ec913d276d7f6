package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"AutoTrader/internal/domain/models"
	xhttp "AutoTrader/pkg/http"
	applogger "AutoTrader/pkg/logger"
)

// SignalSubmitter accepts trade signals and serves the latest per symbol.
type SignalSubmitter interface {
	Submit(ctx context.Context, sig models.TradeSignal) (models.SignalEvent, error)
	Latest(ctx context.Context, symbol string) (*models.SignalEvent, error)
}

// SignalStream upgrades a request into a live signal subscription.
type SignalStream interface {
	ServeWS(w http.ResponseWriter, r *http.Request) error
}

type SignalsHandler struct {
	svc    SignalSubmitter
	stream SignalStream
	l      *applogger.Logger
}

// NewSignalsHandler creates the signals handler. stream may be nil, in which
// case the websocket route is not registered.
func NewSignalsHandler(svc SignalSubmitter, stream SignalStream, l *applogger.Logger) *SignalsHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &SignalsHandler{svc: svc, stream: stream, l: l}
}

func (h *SignalsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/signals")
	g.POST("", h.Submit)
	g.GET("/latest", h.Latest)
	if h.stream != nil {
		e.GET("/ws/signals", h.Stream)
	}
}

func (h *SignalsHandler) Submit(c echo.Context) error {
	var sig models.TradeSignal
	if err := c.Bind(&sig); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid JSON body"))
	}
	ev, err := h.svc.Submit(c.Request().Context(), sig)
	if err != nil {
		return fail(c, h.l, "submit signal", err)
	}
	return xhttp.CreatedResponse(c, ev)
}

func (h *SignalsHandler) Latest(c echo.Context) error {
	ev, err := h.svc.Latest(c.Request().Context(), c.QueryParam("symbol"))
	if err != nil {
		return fail(c, h.l, "latest signal", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	return xhttp.SuccessResponse(c, ev)
}

// Stream hands the connection to the hub. The upgrader has already answered
// the client when ServeWS fails, so the error is only logged.
func (h *SignalsHandler) Stream(c echo.Context) error {
	if err := h.stream.ServeWS(c.Response(), c.Request()); err != nil {
		h.l.Warn("ws upgrade failed", applogger.String("remote", c.RealIP()), applogger.Error(err))
	}
	return nil
}
