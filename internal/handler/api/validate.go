package api

import (
	"github.com/labstack/echo/v4"

	"AutoTrader/internal/domain/models"
	xhttp "AutoTrader/pkg/http"
	applogger "AutoTrader/pkg/logger"
)

// ValidateHandler exposes the domain validators as stateless endpoints.
type ValidateHandler struct {
	v *models.Validator
	l *applogger.Logger
}

func NewValidateHandler(v *models.Validator, l *applogger.Logger) *ValidateHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &ValidateHandler{v: v, l: l}
}

func (h *ValidateHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/validate")
	g.POST("/candle", h.Candle)
	g.POST("/pair", h.Pair)
	g.POST("/signal", h.Signal)
}

func (h *ValidateHandler) Candle(c echo.Context) error {
	var in models.Candle
	if err := c.Bind(&in); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid JSON body"))
	}
	out, err := h.v.ValidateCandle(in)
	if err != nil {
		return fail(c, h.l, "validate candle", err)
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *ValidateHandler) Pair(c echo.Context) error {
	var in models.TradingPair
	if err := c.Bind(&in); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid JSON body"))
	}
	out, err := h.v.ValidateTradingPair(in)
	if err != nil {
		return fail(c, h.l, "validate pair", err)
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *ValidateHandler) Signal(c echo.Context) error {
	var in models.TradeSignal
	if err := c.Bind(&in); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid JSON body"))
	}
	out, err := h.v.ValidateTradeSignal(in)
	if err != nil {
		return fail(c, h.l, "validate signal", err)
	}
	return xhttp.SuccessResponse(c, out)
}
