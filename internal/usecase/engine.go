package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"TickFuse/internal/domain/models"
	drepo "TickFuse/internal/domain/repository"
	mid "TickFuse/internal/middleware"
	"TickFuse/internal/services/normalize"
	"TickFuse/pkg/config"
	applogger "TickFuse/pkg/logger"

	"github.com/shopspring/decimal"
)

// snapshotTransitions caps how much ledger history rides along on every
// published snapshot; the full ledger stays queryable separately.
const snapshotTransitions = 50

// Engine runs the full fusion chain: two polling loops feed observations
// through the pipeline into per-source queues; the cycle loop drains them,
// reconciles, aggregates, scores, and publishes an immutable snapshot.
type Engine struct {
	params     *config.Store
	norm       *normalize.Normalizer
	recognizer drepo.Recognizer
	quotes     drepo.QuoteFetcher
	rec        *Reconciler
	agg        *Aggregator
	scorer     *Scorer
	ledger     *Ledger
	proc       *OutputProcessor
	pipe       *mid.FeedPipeline
	metrics    drepo.Metrics
	log        *applogger.Logger

	primaryCh  chan *models.Observation
	fallbackCh chan *models.Observation
	snapshot   atomic.Pointer[models.EngineSnapshot]

	mu      sync.Mutex // guards aggregator/scorer/reconciler state
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	fatal   atomic.Pointer[error]
	started bool
}

func NewEngine(
	params *config.Store,
	norm *normalize.Normalizer,
	recognizer drepo.Recognizer,
	quotes drepo.QuoteFetcher,
	rec *Reconciler,
	agg *Aggregator,
	scorer *Scorer,
	ledger *Ledger,
	proc *OutputProcessor,
	metrics drepo.Metrics,
	log *applogger.Logger,
) *Engine {
	e := &Engine{
		params:     params,
		norm:       norm,
		recognizer: recognizer,
		quotes:     quotes,
		rec:        rec,
		agg:        agg,
		scorer:     scorer,
		ledger:     ledger,
		proc:       proc,
		metrics:    metrics,
		log:        log,
		primaryCh:  make(chan *models.Observation, 256),
		fallbackCh: make(chan *models.Observation, 64),
	}
	e.pipe = mid.NewFeedPipeline(sinkFunc(e.enqueue), metrics)
	return e
}

type sinkFunc func(ctx context.Context, o *models.Observation) error

func (f sinkFunc) Enqueue(ctx context.Context, o *models.Observation) error { return f(ctx, o) }

// enqueue places an observation on its source's single-reader queue.
func (e *Engine) enqueue(_ context.Context, o *models.Observation) error {
	var ch chan *models.Observation
	switch o.Source {
	case models.SourcePrimary:
		ch = e.primaryCh
	case models.SourceFallback:
		ch = e.fallbackCh
	default:
		return fmt.Errorf("unknown source %q", o.Source)
	}
	select {
	case ch <- o:
		e.metrics.RecordObservation(string(o.Source))
		return nil
	default:
		return fmt.Errorf("%s queue full", o.Source)
	}
}

// Start launches the polling loops and the reconciliation cycle. It returns
// immediately; the loops stop when ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine already started")
	}
	e.started = true
	e.mu.Unlock()

	ctx, e.cancel = context.WithCancel(ctx)
	e.pipe.Start(ctx)

	e.wg.Add(3)
	go e.primaryLoop(ctx)
	go e.fallbackLoop(ctx)
	go e.cycleLoop(ctx)
	return nil
}

// Stop cancels all loops and waits for them to drain.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.pipe.Stop()
	e.wg.Wait()
}

// Err reports a fatal internal invariant violation, or nil.
func (e *Engine) Err() error {
	if p := e.fatal.Load(); p != nil {
		return *p
	}
	return nil
}

// Snapshot returns the latest published engine state, or nil before the
// first canonical tick. The returned value is immutable.
func (e *Engine) Snapshot() *models.EngineSnapshot {
	return e.snapshot.Load()
}

// Params returns a copy of the active engine parameters.
func (e *Engine) Params() *config.Params {
	return e.params.Current().Clone()
}

// UpdateParams validates and installs new parameters without restart. On
// rejection the engine keeps its prior valid configuration.
func (e *Engine) UpdateParams(p *config.Params) error {
	if err := e.params.Update(p); err != nil {
		return fmt.Errorf("%w: %v", models.ErrConfigInvalid, err)
	}
	e.log.Info("engine parameters updated")
	return nil
}

// BarHistory returns up to n sealed bars for a resolution, oldest first.
func (e *Engine) BarHistory(res drepo.Resolution, n int) []models.Bar {
	e.mu.Lock()
	defer e.mu.Unlock()
	bars := e.agg.History(res)
	if n > 0 && len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars
}

// Transitions returns the most recent n ledger entries, oldest first.
func (e *Engine) Transitions(n int) []models.SignalTransition {
	return e.ledger.Tail(n)
}

// primaryLoop polls the recognizer at the primary cadence. A failed or
// rejected read yields no observation for the cycle, never an error
// downstream.
func (e *Engine) primaryLoop(ctx context.Context) {
	defer e.wg.Done()
	for {
		p := e.params.Current()
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.PrimaryInterval):
		}

		pollCtx, cancel := context.WithTimeout(ctx, p.PrimaryTimeout)
		raw, err := e.recognizer.Recognize(pollCtx)
		cancel()
		if err != nil {
			e.recordPollFailure(models.SourcePrimary, err)
			continue
		}

		last, hasLast := e.lastCanonicalPrice()
		obs, err := e.norm.ParsePrimary(raw, time.Now(), last, hasLast)
		if err != nil {
			// almost always a misread, not a real move
			e.metrics.RecordReject(string(models.SourcePrimary), "parse")
			e.log.Debug("primary read rejected", applogger.Error(err))
			continue
		}
		if err := e.pipe.Process(ctx, obs); err != nil {
			e.log.Warn("primary enqueue failed", applogger.Error(err))
		}
	}
}

// fallbackLoop polls the quote API at the fallback cadence.
func (e *Engine) fallbackLoop(ctx context.Context) {
	defer e.wg.Done()
	for {
		p := e.params.Current()
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.FallbackInterval):
		}

		pollCtx, cancel := context.WithTimeout(ctx, p.FallbackTimeout)
		price, err := e.quotes.FetchQuote(pollCtx, p.Symbol)
		cancel()
		if err != nil {
			e.recordPollFailure(models.SourceFallback, err)
			continue
		}

		obs, err := e.norm.ParseFallback(price, time.Now())
		if err != nil {
			e.metrics.RecordReject(string(models.SourceFallback), "parse")
			e.log.Warn("fallback quote rejected", applogger.Error(err))
			continue
		}
		if err := e.pipe.Process(ctx, obs); err != nil {
			e.log.Warn("fallback enqueue failed", applogger.Error(err))
		}
	}
}

// cycleLoop is the serializing reconciliation step: it is the only
// goroutine that touches reconciler, aggregator, scorer and ledger state.
func (e *Engine) cycleLoop(ctx context.Context) {
	defer e.wg.Done()
	for {
		p := e.params.Current()
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.CycleInterval()):
		}
		if err := e.runCycle(ctx); err != nil {
			// broken internal invariant: flag distinctly and stop
			e.fatal.Store(&err)
			e.log.Error("engine invariant violation, stopping",
				applogger.String("failure", "invariant"), applogger.Error(err))
			e.cancel()
			return
		}
	}
}

func (e *Engine) runCycle(ctx context.Context) error {
	start := time.Now()
	obs := e.drain()

	e.mu.Lock()
	tick := e.rec.Reconcile(time.Now(), obs)
	if tick == nil {
		e.mu.Unlock()
		return nil
	}
	e.metrics.RecordActiveSource(string(tick.ActiveSource))

	sealed, err := e.agg.Apply(tick)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	price, _ := tick.Price.Float64()
	score, transition := e.scorer.Evaluate(tick.Timestamp, e.agg.Indicators(), price)
	if transition != nil {
		e.ledger.Append(*transition)
	}

	snap := &models.EngineSnapshot{
		Tick:        *tick,
		Indicators:  e.agg.Indicators(),
		Score:       score,
		Transitions: e.ledger.Tail(snapshotTransitions),
		Degraded:    tick.Stale,
	}
	e.mu.Unlock()

	e.snapshot.Store(snap)

	if e.proc != nil {
		if err := e.proc.ProcessTick(ctx, tick); err != nil {
			e.log.Warn("tick backend error", applogger.Error(err))
		}
		for i := range sealed {
			if err := e.proc.ProcessBar(ctx, &sealed[i]); err != nil {
				e.log.Warn("bar backend error", applogger.Error(err))
			}
		}
		if transition != nil {
			if err := e.proc.ProcessTransition(ctx, transition); err != nil {
				e.log.Warn("transition backend error", applogger.Error(err))
			}
		}
	}
	if transition != nil {
		e.log.Info("signal transition",
			applogger.String("from", string(transition.From)),
			applogger.String("to", string(transition.To)),
			applogger.Any("score", transition.Score))
	}

	e.metrics.RecordLatency("cycle", time.Since(start).Seconds())
	return nil
}

// drain empties both source queues without blocking.
func (e *Engine) drain() []*models.Observation {
	var obs []*models.Observation
	for {
		select {
		case o := <-e.primaryCh:
			obs = append(obs, o)
		case o := <-e.fallbackCh:
			obs = append(obs, o)
		default:
			return obs
		}
	}
}

func (e *Engine) lastCanonicalPrice() (decimal.Decimal, bool) {
	snap := e.snapshot.Load()
	if snap == nil {
		return decimal.Decimal{}, false
	}
	return snap.Tick.Price, true
}

func (e *Engine) recordPollFailure(src models.Source, err error) {
	kind := "poll"
	if errors.Is(err, context.DeadlineExceeded) {
		kind = "timeout"
	}
	e.metrics.RecordReject(string(src), kind)
	e.log.Debug("source poll failed",
		applogger.String("source", string(src)), applogger.Error(err))
}
