package api

import (
	"io"

	"github.com/labstack/echo/v4"

	"AutoTrader/internal/llm/prompts"
	xhttp "AutoTrader/pkg/http"
	applogger "AutoTrader/pkg/logger"
)

type PromptsHandler struct {
	r *prompts.Renderer
	l *applogger.Logger
}

func NewPromptsHandler(r *prompts.Renderer, l *applogger.Logger) *PromptsHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &PromptsHandler{r: r, l: l}
}

func (h *PromptsHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/v1/prompts/:kind", h.Render)
}

// PromptResponse carries a rendered prompt.
type PromptResponse struct {
	Kind   prompts.Kind `json:"kind"`
	Prompt string       `json:"prompt"`
}

func (h *PromptsHandler) Render(c echo.Context) error {
	kind := prompts.Kind(c.Param("kind"))
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("unreadable body"))
	}
	out, err := h.r.Render(kind, body)
	if err != nil {
		return fail(c, h.l, "render prompt", err)
	}
	return xhttp.SuccessResponse(c, PromptResponse{Kind: kind, Prompt: out})
}
