package api

import (
	"encoding/json"
	"time"

	models "TickFuse/internal/domain/models"
	domrepo "TickFuse/internal/domain/repository"
	"TickFuse/internal/service/cache"
	"TickFuse/internal/service/ratelimit"
	"TickFuse/internal/usecase"
	pkgcache "TickFuse/pkg/cache"
	"TickFuse/pkg/config"
	xhttp "TickFuse/pkg/http"
	xlogger "TickFuse/pkg/logger"
	xutil "TickFuse/pkg/util"

	"github.com/labstack/echo/v4"
)

// EngineEchoHandler exposes the fusion engine over HTTP following Clean
// Architecture: read-only views of the latest snapshot plus runtime tuning.
type EngineEchoHandler struct {
	logger  *xlogger.Logger
	engine  *usecase.Engine
	store   domrepo.BarStore // optional, nil when backend has no storage
	cache   cache.BytesCache
	limiter *ratelimit.Limiter
}

func NewEngineEchoHandler(logger *xlogger.Logger, engine *usecase.Engine, store domrepo.BarStore, c cache.BytesCache) *EngineEchoHandler {
	if c == nil {
		c = cache.NewTTLCache()
	}
	return &EngineEchoHandler{
		logger:  logger,
		engine:  engine,
		store:   store,
		cache:   c,
		limiter: ratelimit.New(),
	}
}

func (h *EngineEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/tick", h.Tick)
	g.GET("/indicators", h.Indicators)
	g.GET("/score", h.Score)
	g.GET("/history", h.History)
	g.GET("/bars", h.Bars)
	g.GET("/params", h.GetParams)
	g.PUT("/params", h.PutParams)
}

// Tick returns the current canonical price view.
func (h *EngineEchoHandler) Tick(c echo.Context) error {
	snap := h.engine.Snapshot()
	if snap == nil {
		return xhttp.NotFoundResponse(c, echo.Map{"error": "no canonical price yet"})
	}
	return xhttp.SuccessResponse(c, echo.Map{
		"ts":         snap.Tick.Timestamp,
		"price":      snap.Tick.Price,
		"source":     snap.Tick.ActiveSource,
		"confidence": snap.Tick.SourceConfidence,
		"stale":      snap.Tick.Stale,
		"degraded":   snap.Degraded,
	})
}

// Indicators returns per-resolution EMA and opening range state.
func (h *EngineEchoHandler) Indicators(c echo.Context) error {
	snap := h.engine.Snapshot()
	if snap == nil {
		return xhttp.NotFoundResponse(c, echo.Map{"error": "no canonical price yet"})
	}
	return xhttp.SuccessResponse(c, snap.Indicators)
}

// Score returns the latest confluence evaluation.
func (h *EngineEchoHandler) Score(c echo.Context) error {
	snap := h.engine.Snapshot()
	if snap == nil {
		return xhttp.NotFoundResponse(c, echo.Map{"error": "no canonical price yet"})
	}
	return xhttp.SuccessResponse(c, echo.Map{
		"ts":            snap.Score.Timestamp,
		"total":         snap.Score.TotalScore,
		"label":         snap.Score.Label,
		"confidence":    snap.Score.ConfidencePct,
		"contributions": snap.Score.Contributions,
		"factors":       snap.Score.Factors,
	})
}

// History returns the most recent signal transitions, newest last.
func (h *EngineEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.engine.Transitions(req.N))
}

// Bars returns sealed bar history for one resolution, oldest first.
// In-memory history answers most requests; deeper windows fall through
// to the storage backend when one is configured.
func (h *EngineEchoHandler) Bars(c echo.Context) error {
	req := &models.BarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res := domrepo.NormalizeResolution(req.Resolution)
	if !h.limiter.Allow("bars:"+c.RealIP(), 10, 5) {
		return xhttp.DataResponse(c, 429, echo.Map{"error": "rate limited"})
	}

	// explicit window goes straight to storage
	if req.From != "" && req.To != "" {
		if h.store == nil {
			return xhttp.BadRequestResponse(c, echo.Map{"error": "no storage backend for ranged queries"})
		}
		from, okFrom := xhttp.ParseTime(req.From)
		to, okTo := xhttp.ParseTime(req.To)
		if !okFrom || !okTo || to.Before(from) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid from/to window").
				WithParam("from", req.From).
				WithParam("to", req.To))
		}
		from, to = xutil.AlignFromTo(from, to, string(res))
		bars, err := h.store.GetBars(c.Request().Context(), from, to, res)
		if err != nil {
			h.logger.Error("bar store range query failed", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("bar range query failed").WithError(err))
		}
		if len(bars) == 0 {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no bars in window"))
		}
		return xhttp.SuccessResponse(c, bars)
	}

	key := pkgcache.GenerateKeyWithParams("bars", string(res), req.N)
	if b, ok, _ := h.cache.GetBytes(key); ok {
		return c.JSONBlob(200, b)
	}

	bars := h.engine.BarHistory(res, req.N)
	if len(bars) < req.N && h.store != nil {
		ctx := c.Request().Context()
		stored, err := h.store.GetLatestNBars(ctx, req.N, res)
		if err != nil {
			h.logger.Error("bar store query failed", xlogger.Error(err))
		} else if len(stored) > len(bars) {
			bars = mergeBars(stored, bars)
		}
	}

	body, err := json.Marshal(echo.Map{"data": bars})
	if err == nil {
		_ = h.cache.SetBytes(key, body, 2*time.Second)
		return c.JSONBlob(200, body)
	}
	return xhttp.SuccessResponse(c, bars)
}

// GetParams returns the active engine parameter set.
func (h *EngineEchoHandler) GetParams(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.Params())
}

// PutParams applies a partial runtime tune. A rejected update leaves the
// active parameters untouched.
func (h *EngineEchoHandler) PutParams(c echo.Context) error {
	req := &models.TuneRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	next := h.engine.Params().Clone()
	applyTune(next, req)
	if err := h.engine.UpdateParams(next); err != nil {
		h.logger.Warn("param update rejected", xlogger.Error(err))
		return xhttp.BadRequestResponse(c, echo.Map{"error": err.Error()})
	}
	h.logger.Info("engine params updated")
	return xhttp.SuccessResponse(c, h.engine.Params())
}

// applyTune copies only the fields the request set.
func applyTune(p *config.Params, req *models.TuneRequest) {
	if req.PrimaryIntervalMs > 0 {
		p.PrimaryInterval = time.Duration(req.PrimaryIntervalMs) * time.Millisecond
	}
	if req.FallbackIntervalMs > 0 {
		p.FallbackInterval = time.Duration(req.FallbackIntervalMs) * time.Millisecond
	}
	if req.StalenessMs > 0 {
		p.Staleness = time.Duration(req.StalenessMs) * time.Millisecond
	}
	if req.RecoveryCycles > 0 {
		p.RecoveryCycles = req.RecoveryCycles
	}
	if req.HysteresisCycles > 0 {
		p.HysteresisCycles = req.HysteresisCycles
	}
	if req.BullishThreshold != 0 {
		p.BullishThreshold = req.BullishThreshold
	}
	if req.BearishThreshold != 0 {
		p.BearishThreshold = req.BearishThreshold
	}
	if req.EMAFastPeriod > 0 {
		p.EMAFastPeriod = req.EMAFastPeriod
	}
	if req.EMASlowPeriod > 0 {
		p.EMASlowPeriod = req.EMASlowPeriod
	}
	if req.OpeningRangeMin > 0 {
		p.OpeningRangeMinutes = req.OpeningRangeMin
	}
	if req.LedgerRetention > 0 {
		p.LedgerRetention = req.LedgerRetention
	}
	if len(req.ResolutionWeights) == len(domrepo.AllResolutions()) {
		weights := make(map[string]float64, len(req.ResolutionWeights))
		for i, res := range domrepo.AllResolutions() {
			weights[string(res)] = req.ResolutionWeights[i]
		}
		p.ResolutionWeights = weights
	}
}

// mergeBars prefers freshest in-memory bars over stored ones on overlap.
func mergeBars(stored, mem []models.Bar) []models.Bar {
	if len(mem) == 0 {
		return stored
	}
	cut := mem[0].OpenTime
	out := make([]models.Bar, 0, len(stored)+len(mem))
	for _, b := range stored {
		if b.OpenTime.Before(cut) {
			out = append(out, b)
		}
	}
	return append(out, mem...)
}
