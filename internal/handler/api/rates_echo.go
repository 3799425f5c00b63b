package api

import (
	"time"

	"RateSync/internal/domain/models"
	drepo "RateSync/internal/domain/repository"
	"RateSync/internal/service/metrics"
	"RateSync/internal/service/ratelimit"
	"RateSync/internal/usecase"
	xhttp "RateSync/pkg/http"
	xlogger "RateSync/pkg/logger"
	"RateSync/pkg/queue"

	"github.com/labstack/echo/v4"
)

// RatesEchoHandler exposes the sync engine over HTTP.
type RatesEchoHandler struct {
	logger *xlogger.Logger
	sync   *usecase.SyncOrchestrator
	trends *usecase.TrendRecalculator
	charts *usecase.ChartBuilder
	store  drepo.RateStore
	rl     *ratelimit.Limiter
	jobs   queue.QueueService
}

// SetJobQueue wires the optional background job queue. Without it the
// backfill endpoint reports service unavailable.
func (h *RatesEchoHandler) SetJobQueue(q queue.QueueService) { h.jobs = q }

func NewRatesEchoHandler(
	logger *xlogger.Logger,
	sync *usecase.SyncOrchestrator,
	trends *usecase.TrendRecalculator,
	charts *usecase.ChartBuilder,
	store drepo.RateStore,
) *RatesEchoHandler {
	metrics.Register()
	return &RatesEchoHandler{
		logger: logger,
		sync:   sync,
		trends: trends,
		charts: charts,
		store:  store,
		rl:     ratelimit.New(),
	}
}

func (h *RatesEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/rates/history", h.History)
	g.GET("/rates/cached", h.Cached)
	g.GET("/rates/trends", h.Trends)
	g.GET("/rates/latest", h.Latest)
	g.GET("/rates/chart", h.Chart)
	g.POST("/rates/backfill", h.Backfill)
	g.DELETE("/cache", h.ClearCache)
	g.DELETE("/admin/store", h.PurgeStore)
	e.GET("/health", h.Health)
}

type dayDTO struct {
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

type historyDTO struct {
	Currency       string   `json:"currency"`
	Days           []dayDTO `json:"days"`
	NewDataFetched bool     `json:"new_data_fetched"`
}

// History loads the full range through all three tiers.
func (h *RatesEchoHandler) History(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.EndpointLatency.WithLabelValues("history").Observe(time.Since(start).Seconds()) }()

	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rng, err := parseRange(req.From, req.To)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	if !h.rl.Allow(c.RealIP()+":history", 5, 2) {
		return xhttp.TooManyRequestsResponse(c)
	}

	ctx := c.Request().Context()
	res, err := h.sync.Load(ctx, req.Currency, rng)
	if err != nil {
		metrics.EndpointErrors.WithLabelValues("history").Inc()
		h.logger.Error("history load error",
			xlogger.String("currency", req.Currency),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, err)
	}

	if res.NewDataFetched {
		if terr := h.trends.MaybeRecalculate(ctx, res.FetchedRanges); terr != nil {
			h.logger.Warn("trend recalculation failed", xlogger.Error(terr))
		}
		h.charts.Invalidate(ctx)
	}

	return xhttp.SuccessResponse(c, historyDTO{
		Currency:       req.Currency,
		Days:           toDayDTOs(res.Series),
		NewDataFetched: res.NewDataFetched,
	})
}

// Cached serves the in-process tier only; no durable or network reads.
func (h *RatesEchoHandler) Cached(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.EndpointLatency.WithLabelValues("cached").Observe(time.Since(start).Seconds()) }()

	req := &models.CachedRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rng, err := parseRange(req.From, req.To)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	series := h.sync.GetCached(req.Currency, rng)
	return xhttp.SuccessResponse(c, historyDTO{
		Currency: req.Currency,
		Days:     toDayDTOs(series),
	})
}

// Trends returns the weekly-change aggregates, rebuilding on a cold cache.
func (h *RatesEchoHandler) Trends(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.EndpointLatency.WithLabelValues("trends").Observe(time.Since(start).Seconds()) }()

	trends := h.trends.Cached()
	if trends == nil {
		if err := h.trends.Recalculate(c.Request().Context()); err != nil {
			metrics.EndpointErrors.WithLabelValues("trends").Inc()
			h.logger.Error("trend rebuild error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		trends = h.trends.Cached()
	}
	if trends == nil {
		trends = []models.TrendRecord{}
	}
	return xhttp.SuccessResponse(c, trends)
}

// Latest returns the current snapshot.
func (h *RatesEchoHandler) Latest(c echo.Context) error {
	points := h.sync.CurrentSnapshot()
	if points == nil {
		points = []models.RatePoint{}
	}
	return xhttp.SuccessResponse(c, points)
}

// Chart returns a base/target cross-rate series.
func (h *RatesEchoHandler) Chart(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.EndpointLatency.WithLabelValues("chart").Observe(time.Since(start).Seconds()) }()

	req := &models.ChartRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rng, err := parseRange(req.From, req.To)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	if !h.rl.Allow(c.RealIP()+":chart", 5, 2) {
		return xhttp.TooManyRequestsResponse(c)
	}

	points, err := h.charts.Build(c.Request().Context(), req.Base, req.Target, rng)
	if err != nil {
		metrics.EndpointErrors.WithLabelValues("chart").Inc()
		h.logger.Error("chart build error",
			xlogger.String("base", req.Base),
			xlogger.String("target", req.Target),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, points)
}

// Backfill enqueues a background load for a large historical range.
func (h *RatesEchoHandler) Backfill(c echo.Context) error {
	req := &models.BackfillRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if _, err := parseRange(req.From, req.To); err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	if h.jobs == nil {
		return xhttp.ServiceUnavailableResponse(c)
	}

	payload := usecase.BackfillPayload{Currency: req.Currency, From: req.From, To: req.To}
	if err := h.jobs.PublishMessage(c.Request().Context(), usecase.BackfillJobType, payload); err != nil {
		metrics.EndpointErrors.WithLabelValues("backfill").Inc()
		h.logger.Error("backfill enqueue error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, payload)
}

// ClearCache drops the in-process tier and retry bookkeeping. The durable
// store holds the long-lived copy and stays intact; PurgeStore is the
// explicit destructive route.
func (h *RatesEchoHandler) ClearCache(c echo.Context) error {
	h.sync.ClearAllCache()
	return xhttp.NoContentResponse(c)
}

// PurgeStore truncates the durable store and drops the caches built from it.
// Irreversible, so it lives on its own admin route, never behind the cache
// clear.
func (h *RatesEchoHandler) PurgeStore(c echo.Context) error {
	if err := h.store.ClearAll(c.Request().Context()); err != nil {
		metrics.EndpointErrors.WithLabelValues("purge").Inc()
		h.logger.Error("store purge error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.sync.ClearAllCache()
	return xhttp.NoContentResponse(c)
}

// Health reports durable-tier reachability.
func (h *RatesEchoHandler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		return xhttp.ServiceUnavailableResponse(c)
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func parseRange(from, to string) (models.DateRange, error) {
	start, err := models.ParseDay(from)
	if err != nil {
		return models.DateRange{}, err
	}
	end, err := models.ParseDay(to)
	if err != nil {
		return models.DateRange{}, err
	}
	rng := models.DateRange{Start: start, End: end}
	if !rng.Valid() {
		return models.DateRange{}, &models.DateCalculationError{Reason: "from is after to"}
	}
	return rng, nil
}

func toDayDTOs(series models.Series) []dayDTO {
	out := make([]dayDTO, 0, len(series))
	for _, rec := range series {
		out = append(out, dayDTO{Date: rec.Date.String(), Rates: rec.Rates})
	}
	return out
}
