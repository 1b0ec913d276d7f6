package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AutoTrader/internal/domain/models"
	"AutoTrader/internal/llm/prompts"
	"AutoTrader/internal/middleware"
	"AutoTrader/internal/usecase"
	xhttp "AutoTrader/pkg/http"
)

type fakeSubmitter struct {
	buffered bool
	err      error
	got      models.CandleBatch
}

func (f *fakeSubmitter) Submit(_ context.Context, b models.CandleBatch) (int, bool, error) {
	f.got = b
	if f.err != nil {
		return 0, false, f.err
	}
	if err := models.ValidateCandleBatch(b); err != nil {
		return 0, false, err
	}
	return len(b.Candles), f.buffered, nil
}

type fakeReader struct {
	got usecase.GetCandlesParams
	err error
}

func (f *fakeReader) GetCandles(_ context.Context, p usecase.GetCandlesParams) (*usecase.GetCandlesResult, error) {
	f.got = p
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.GetCandlesResult{Symbol: strings.ToUpper(p.Symbol), Count: 0, Candles: []usecase.CandleView{}}, nil
}

type fakeSignals struct {
	latest map[string]models.SignalEvent
}

func (f *fakeSignals) Submit(_ context.Context, sig models.TradeSignal) (models.SignalEvent, error) {
	valid, err := models.ValidateTradeSignal(sig)
	if err != nil {
		return models.SignalEvent{}, err
	}
	ev := models.SignalEvent{ID: "sig-1", Signal: valid, ReceivedAt: 1}
	f.latest[valid.Symbol] = ev
	return ev, nil
}

func (f *fakeSignals) Latest(_ context.Context, symbol string) (*models.SignalEvent, error) {
	ev, ok := f.latest[strings.ToUpper(symbol)]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &ev, nil
}

type testAPI struct {
	srv     *xhttp.Server
	submit  *fakeSubmitter
	reader  *fakeReader
	signals *fakeSignals
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	v := models.NewValidator()
	pairs, err := usecase.NewPairRegistry(v, []models.TradingPair{{Base: "BTC", Quote: "USDT"}, {Base: "ETH", Quote: "USD"}})
	require.NoError(t, err)

	a := &testAPI{
		submit:  &fakeSubmitter{},
		reader:  &fakeReader{},
		signals: &fakeSignals{latest: map[string]models.SignalEvent{}},
	}
	a.srv = xhttp.NewServer([]xhttp.Handler{
		NewHealthHandler("autotrader-api", map[string]HealthCheck{
			"clickhouse": func(context.Context) error { return nil },
		}),
		NewValidateHandler(v, nil),
		NewCandlesHandler(a.submit, a.reader, nil),
		NewSignalsHandler(a.signals, nil, nil),
		NewPairsHandler(pairs),
		NewPromptsHandler(prompts.NewRenderer(v), nil),
	}, xhttp.WithMetricsPath(""))
	return a
}

func (a *testAPI) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	a.srv.Echo().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"autotrader-api"}`, rec.Body.String())

	rec = a.do(http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"clickhouse":"ok"`)
}

func TestHealthReadyDegraded(t *testing.T) {
	srv := xhttp.NewServer([]xhttp.Handler{
		NewHealthHandler("autotrader-api", map[string]HealthCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		}),
	}, xhttp.WithMetricsPath(""))
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestValidateEndpoints(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		want   string
	}{
		{"valid candle", "/api/v1/validate/candle", `{"timestamp":1,"open":1,"high":2,"low":1,"close":2,"volume":0}`, 200, `"high":2`},
		{"inverted candle", "/api/v1/validate/candle", `{"timestamp":1,"open":1,"high":0.5,"low":1,"close":1,"volume":0}`, 400, `"field":"ohlc"`},
		{"pair derives symbol", "/api/v1/validate/pair", `{"base":"sol","quote":"usdc"}`, 200, `"symbol":"SOLUSDC"`},
		{"pair canonical symbol", "/api/v1/validate/pair", `{"base":"BTC","quote":"USDT","symbol":"btcusdt"}`, 200, `"symbol":"BTCUSDT"`},
		{"candle symbol separator", "/api/v1/validate/candle", `{"timestamp":1,"open":1,"high":2,"low":1,"close":2,"volume":0,"symbol":"BTC/USDT"}`, 400, `"field":"symbol"`},
		{"pair same legs", "/api/v1/validate/pair", `{"base":"BTC","quote":"btc"}`, 400, `"code":"ERR_VALIDATION"`},
		{"signal ok", "/api/v1/validate/signal", `{"action":"hold","confidence":1,"reason":""}`, 200, `"action":"hold"`},
		{"signal bad confidence", "/api/v1/validate/signal", `{"action":"buy","confidence":-0.1}`, 400, `"field":"confidence"`},
		{"malformed json", "/api/v1/validate/signal", `{"action":`, 400, `"code":"ERR_BAD_REQUEST"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestIngestCandles(t *testing.T) {
	a := newTestAPI(t)
	body := `{"symbol":"btcusdt","candles":[{"timestamp":60,"open":1,"high":2,"low":1,"close":2,"volume":3}]}`

	rec := a.do(http.MethodPost, "/api/v1/candles", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":202,"message":"Accepted","data":{"symbol":"BTCUSDT","accepted":1,"buffered":false}}`, rec.Body.String())

	a.submit.buffered = true
	rec = a.do(http.MethodPost, "/api/v1/candles", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"buffered":true`)

	rec = a.do(http.MethodPost, "/api/v1/candles", `{"symbol":"BTCUSDT","candles":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"candles"`)

	a.submit.err = errors.Join(middleware.ErrBufferFull, errors.New("broker down"))
	rec = a.do(http.MethodPost, "/api/v1/candles", body)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListCandles(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/api/v1/candles?symbol=ETHUSD&from=1700000000&to=2023-11-15T00:00:00Z&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ETHUSD", a.reader.got.Symbol)
	assert.Equal(t, 10, a.reader.got.Limit)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), a.reader.got.From)
	assert.Equal(t, time.Date(2023, 11, 15, 0, 0, 0, 0, time.UTC), a.reader.got.To)

	rec = a.do(http.MethodGet, "/api/v1/candles?symbol=ETHUSD", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, a.reader.got.Limit)

	rec = a.do(http.MethodGet, "/api/v1/candles", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"symbol"`)

	rec = a.do(http.MethodGet, "/api/v1/candles?symbol=ETHUSD&from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"from"`)

	a.reader.err = usecase.ErrStoreUnavailable
	rec = a.do(http.MethodGet, "/api/v1/candles?symbol=ETHUSD", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSignals(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/api/v1/signals/latest?symbol=BTCUSDT", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/signals", `{"action":"buy","confidence":0.8,"reason":"breakout","symbol":"BTCUSDT"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"sig-1"`)

	rec = a.do(http.MethodGet, "/api/v1/signals/latest?symbol=btcusdt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reason":"breakout"`)

	rec = a.do(http.MethodPost, "/api/v1/signals", `{"action":"short","confidence":0.8}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"action"`)

	rec = a.do(http.MethodGet, "/ws/signals", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPairs(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/api/v1/pairs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":2`)
	assert.Contains(t, rec.Body.String(), `"symbol":"BTCUSDT"`)

	rec = a.do(http.MethodGet, "/api/v1/pairs/ethusd", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"quote":"USD"`)

	rec = a.do(http.MethodGet, "/api/v1/pairs/DOGEUSD", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPrompts(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodPost, "/api/v1/prompts/arbitrage",
		`{"pairs":[{"base":"BTC","quote":"USDT"},{"base":"BTC","quote":"USD"}],"candles":{}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `Identify arbitrage opportunities from: `)

	rec = a.do(http.MethodPost, "/api/v1/prompts/longterm", `[1]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/prompts/intraday", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
