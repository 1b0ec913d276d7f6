package api

import (
	"strings"

	"github.com/labstack/echo/v4"

	"AutoTrader/internal/usecase"
	xhttp "AutoTrader/pkg/http"
)

type PairsHandler struct {
	pairs *usecase.PairRegistry
}

func NewPairsHandler(pairs *usecase.PairRegistry) *PairsHandler {
	return &PairsHandler{pairs: pairs}
}

func (h *PairsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/pairs")
	g.GET("", h.List)
	g.GET("/:symbol", h.Get)
}

func (h *PairsHandler) List(c echo.Context) error {
	all := h.pairs.All()
	return xhttp.ListResponse(c, all, int64(len(all)))
}

func (h *PairsHandler) Get(c echo.Context) error {
	symbol := c.Param("symbol")
	p, ok := h.pairs.Lookup(symbol)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("pair %s not configured", strings.ToUpper(symbol)))
	}
	return xhttp.SuccessResponse(c, p)
}
