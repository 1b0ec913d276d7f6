package api

import (
	"context"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"AutoTrader/internal/domain/models"
	"AutoTrader/internal/usecase"
	xhttp "AutoTrader/pkg/http"
	applogger "AutoTrader/pkg/logger"
	xutil "AutoTrader/pkg/util"
)

// CandleSubmitter accepts candle batches for the configured backend.
type CandleSubmitter interface {
	Submit(ctx context.Context, b models.CandleBatch) (accepted int, buffered bool, err error)
}

// CandleReader serves stored candles.
type CandleReader interface {
	GetCandles(ctx context.Context, p usecase.GetCandlesParams) (*usecase.GetCandlesResult, error)
}

type CandlesHandler struct {
	submit CandleSubmitter
	read   CandleReader
	l      *applogger.Logger
}

func NewCandlesHandler(submit CandleSubmitter, read CandleReader, l *applogger.Logger) *CandlesHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &CandlesHandler{submit: submit, read: read, l: l}
}

func (h *CandlesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/candles")
	g.POST("", h.Ingest)
	g.GET("", h.List)
}

// IngestResponse is returned by POST /api/v1/candles.
type IngestResponse struct {
	Symbol   string `json:"symbol"`
	Accepted int    `json:"accepted"`
	Buffered bool   `json:"buffered"`
}

func (h *CandlesHandler) Ingest(c echo.Context) error {
	var b models.CandleBatch
	if err := c.Bind(&b); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid JSON body"))
	}
	n, buffered, err := h.submit.Submit(c.Request().Context(), b)
	if err != nil {
		return fail(c, h.l, "ingest candles", err)
	}
	if buffered {
		h.l.Warn("candle batch buffered", applogger.String("symbol", b.Symbol), applogger.Int("count", n))
	}
	return xhttp.AcceptedResponse(c, IngestResponse{
		Symbol:   strings.ToUpper(b.Symbol),
		Accepted: n,
		Buffered: buffered,
	})
}

type listCandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,alphanum,max=32"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=5000"`
}

func (h *CandlesHandler) List(c echo.Context) error {
	req := &listCandlesRequest{}
	if verrs := xhttp.ReadAndValidateRequest(c, req); verrs != nil {
		return xhttp.BadRequestResponse(c, verrs)
	}

	var from, to time.Time
	if req.From != "" {
		t, ok := xutil.ParseTime(req.From)
		if !ok {
			return fail(c, h.l, "list candles", &models.ValidationError{Field: "from", Reason: "must be RFC3339 or unix seconds"})
		}
		from = t
	}
	if req.To != "" {
		t, ok := xutil.ParseTime(req.To)
		if !ok {
			return fail(c, h.l, "list candles", &models.ValidationError{Field: "to", Reason: "must be RFC3339 or unix seconds"})
		}
		to = t
	}

	res, err := h.read.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol: req.Symbol,
		From:   from,
		To:     to,
		Limit:  req.Limit,
	})
	if err != nil {
		return fail(c, h.l, "list candles", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, res)
}
