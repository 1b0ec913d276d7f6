package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AutoTrader/internal/domain/models"
	"AutoTrader/internal/middleware"
	"AutoTrader/internal/service/ratelimit"
	"AutoTrader/internal/stream"
	"AutoTrader/pkg/config"
	xhttp "AutoTrader/pkg/http"
	"AutoTrader/pkg/metrics"
)

type okProc struct{}

func (okProc) ProcessBatch(_ context.Context, b models.CandleBatch) (int, error) {
	return len(b.Candles), nil
}

func TestAppStartAndShutdown(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0), xhttp.WithMetricsPath(""))
	pipeline := middleware.NewCandlePipeline(okProc{}, metrics.NewWithRegisterer(nil), nil)

	app := New(cfg, nil, srv, pipeline, nil, stream.NewHub(nil), ratelimit.New(5, 1))

	require.NoError(t, app.Start(context.Background()))
	assert.Eventually(t, func() bool { return srv.Echo().ListenerAddr() != nil }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))
}
