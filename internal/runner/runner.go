// Package runner drives the poll loop: fetch candles, compute indicators,
// evaluate both rule sets and hand fired, non-cooled signals to the
// notification dispatcher.
package runner

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sleepydogo/peceto-trading-bot/internal/chart"
	"github.com/sleepydogo/peceto-trading-bot/internal/indicator"
	"github.com/sleepydogo/peceto-trading-bot/internal/logger"
	"github.com/sleepydogo/peceto-trading-bot/internal/marketdata"
	"github.com/sleepydogo/peceto-trading-bot/internal/metrics"
	"github.com/sleepydogo/peceto-trading-bot/internal/model"
	"github.com/sleepydogo/peceto-trading-bot/internal/notification"
	redisstore "github.com/sleepydogo/peceto-trading-bot/internal/store/redis"
	"github.com/sleepydogo/peceto-trading-bot/internal/store/sqlite"
	"github.com/sleepydogo/peceto-trading-bot/internal/strategy"
)

// Config is the runner's share of the application configuration.
type Config struct {
	Symbol     string
	Interval   string
	Limit      int
	Indicators indicator.Config
	TieBreak   strategy.TieBreak
	// PhotoPath is attached to every signal alert when set.
	PhotoPath string
	// ExportDir receives the chart workbook on shutdown ("" disables export).
	ExportDir string
}

// Journal records fired signals and their outcome and reads them back for
// the shutdown report.
type Journal interface {
	Record(d model.SignalDetails, outcome sqlite.Outcome, at time.Time) (int64, error)
	UpdateOutcome(id int64, outcome sqlite.Outcome) error
	Recent(symbol, interval string, limit int) ([]sqlite.Entry, error)
	CountByOutcome(symbol, interval string, since time.Time) (map[sqlite.Outcome]int, error)
}

// Publisher mirrors signals, the latest row and the indicator checkpoint to
// downstream consumers.
type Publisher interface {
	PublishSignal(ctx context.Context, ev redisstore.SignalEvent) error
	StoreLatest(ctx context.Context, symbol, interval string, row model.IndicatorRow) error
	StoreCheckpoint(ctx context.Context, symbol, interval string, snap indicator.PipelineSnapshot) error
	LoadCheckpoint(ctx context.Context, symbol, interval string) (indicator.PipelineSnapshot, bool, error)
}

// ErrUnorderedSeries is returned when the fetched candles are not strictly
// ascending by open time, e.g. a bar delivered twice.
var ErrUnorderedSeries = errors.New("candles not strictly ascending")

// Deps are the runner's collaborators. Journal, Publisher, Hub and Console
// are optional and may be nil.
type Deps struct {
	Provider   marketdata.KlineProvider
	Gate       *strategy.CooldownGate
	Markers    *chart.MarkerLog
	Dispatcher *notification.Dispatcher
	Formatter  notification.Formatter
	Metrics    *metrics.Metrics
	Health     *metrics.HealthStatus
	Log        *zap.Logger

	Journal   Journal
	Publisher Publisher
	Hub       *chart.Hub
	Console   io.Writer
}

// CycleResult summarises one poll cycle.
type CycleResult struct {
	At    time.Time
	Rows  int
	Price float64
	// Skipped is set when the latest rows were not warm enough to evaluate.
	Skipped    bool
	Evaluation strategy.Evaluation
	// Fired is the signal left after conflict resolution, if any.
	Fired   *model.SignalDetails
	Outcome sqlite.Outcome
}

// Runner owns the poll loop for one symbol@interval.
type Runner struct {
	cfg       Config
	d         Deps
	evaluator *strategy.Evaluator
	log       *zap.Logger

	mu            sync.Mutex
	rows          []model.IndicatorRow
	lastDelivered *model.SignalDetails
	stats         map[model.SignalType]map[sqlite.Outcome]int
	cycles        int
	started       time.Time
	resumedFrom   time.Time

	now          func() time.Time
	pollInterval func(string) time.Duration
	errorBackoff time.Duration
}

// New creates a runner and installs its delivery callbacks on the dispatcher.
func New(cfg Config, d Deps) *Runner {
	if cfg.Limit <= 0 {
		cfg.Limit = marketdata.DefaultLimit
	}
	if cfg.TieBreak == "" {
		cfg.TieBreak = strategy.TieBreakBuy
	}
	r := &Runner{
		cfg:          cfg,
		d:            d,
		evaluator:    strategy.NewEvaluator(cfg.Indicators, cfg.Symbol, cfg.Interval),
		log:          d.Log.Named("runner"),
		stats:        make(map[model.SignalType]map[sqlite.Outcome]int),
		now:          time.Now,
		pollInterval: marketdata.PollInterval,
		errorBackoff: marketdata.ErrorBackoff,
	}
	d.Dispatcher.OnDelivered = r.delivered
	d.Dispatcher.OnFailed = r.deliveryFailed
	return r
}

// Run polls until ctx is cancelled, then exports the chart and prints the
// session summary.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	r.started = r.now()
	r.mu.Unlock()
	r.log.Info("runner started",
		zap.String("symbol", r.cfg.Symbol),
		zap.String("interval", r.cfg.Interval),
		zap.String("exchange", r.d.Provider.Name()),
		zap.Duration("poll", r.pollInterval(r.cfg.Interval)),
	)
	defer r.shutdown()
	r.resume(ctx)

	for {
		wait := r.pollInterval(r.cfg.Interval)
		if _, err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.log.Error("cycle failed", zap.Error(err), zap.Duration("retry_in", r.errorBackoff))
			wait = r.errorBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// RunOnce executes a single poll cycle.
func (r *Runner) RunOnce(ctx context.Context) (CycleResult, error) {
	start := r.now()
	ctx = logger.WithCycleID(ctx, logger.NewCycleID(r.cfg.Symbol, start))
	m := r.d.Metrics
	m.CyclesTotal.Inc()
	res := CycleResult{At: start}

	candles, err := r.d.Provider.Klines(ctx, r.cfg.Symbol, r.cfg.Interval, r.cfg.Limit)
	m.FetchDur.Observe(r.now().Sub(start).Seconds())
	if err != nil {
		m.CycleErrors.WithLabelValues("fetch").Inc()
		err = errors.Wrapf(err, "fetch %s %s", r.cfg.Symbol, r.cfg.Interval)
		r.d.Health.RecordCycle(start, err)
		return res, err
	}

	if !model.SortedAscending(candles) {
		m.CycleErrors.WithLabelValues("series").Inc()
		err = errors.Wrapf(ErrUnorderedSeries, "%s %s", r.cfg.Symbol, r.cfg.Interval)
		r.d.Health.RecordCycle(start, err)
		return res, err
	}

	computeStart := time.Now()
	pipeline := indicator.NewPipeline(r.cfg.Indicators)
	rows := pipeline.Feed(candles)
	m.ComputeDur.Observe(time.Since(computeStart).Seconds())
	res.Rows = len(rows)

	r.mu.Lock()
	r.rows = rows
	r.cycles++
	r.mu.Unlock()

	var last model.IndicatorRow
	if len(rows) > 0 {
		last = rows[len(rows)-1]
		res.Price = last.Close
		m.LastClose.Set(last.Close)
		if !math.IsNaN(last.RSI) {
			m.LastRSI.Set(last.RSI)
		}
		r.storeLatest(ctx, last)
		r.storeCheckpoint(ctx, pipeline)
	}

	ev, err := r.evaluator.Evaluate(rows)
	if err != nil {
		if strategy.IsInsufficientData(err) {
			m.InsufficientData.Inc()
			r.log.Warn("not enough data, skipping cycle", append(logger.Fields(ctx), zap.Error(err))...)
			res.Skipped = true
			r.d.Health.RecordCycle(start, nil)
			r.publishSnapshot(rows)
			return res, nil
		}
		m.CycleErrors.WithLabelValues("evaluate").Inc()
		r.d.Health.RecordCycle(start, err)
		return res, errors.Wrap(err, "evaluate")
	}
	m.SignalStrength.WithLabelValues(string(model.SignalBuy)).Set(float64(ev.Buy.Strength))
	m.SignalStrength.WithLabelValues(string(model.SignalSell)).Set(float64(ev.Sell.Strength))

	// Every fired side is marked on the chart; only the resolved one alerts.
	r.recordMarkers(ev)
	ev = strategy.Resolve(ev, r.cfg.TieBreak)
	res.Evaluation = ev

	if fired, ok := ev.Fired(); ok {
		res.Fired = &fired
		res.Outcome = r.handleFired(ctx, fired)
	}

	r.publishSnapshot(rows)
	r.d.Health.RecordCycle(start, nil)
	r.printStatus(ctx, res, last)
	return res, nil
}

func (r *Runner) recordMarkers(ev strategy.Evaluation) {
	if ev.BuyFired {
		r.d.Markers.Record(model.SignalBuy, marker(ev.Buy))
	}
	if ev.SellFired {
		r.d.Markers.Record(model.SignalSell, marker(ev.Sell))
	}
}

func marker(d model.SignalDetails) model.Marker {
	return model.Marker{Timestamp: d.Timestamp, Price: d.Price, Strength: d.Strength}
}

// handleFired applies the cooldown gate and queues the alert. The gate is
// updated only when the dispatcher accepts the alert.
func (r *Runner) handleFired(ctx context.Context, d model.SignalDetails) sqlite.Outcome {
	now := r.now()

	if r.d.Hub != nil {
		if err := r.d.Hub.PublishSignal(d); err != nil {
			r.log.Warn("chart signal publish failed", zap.Error(err))
		}
	}

	if r.d.Gate.InCooldown(d.Type, now) {
		r.log.Info("signal in cooldown",
			append(logger.Fields(ctx),
				zap.String("type", string(d.Type)),
				zap.Int("strength", d.Strength),
				zap.Duration("remaining", r.d.Gate.Remaining(d.Type, now)),
			)...)
		r.finish(ctx, d, sqlite.OutcomeSuppressed, now)
		return sqlite.OutcomeSuppressed
	}

	alert := notification.SignalAlert(r.d.Formatter, d)
	alert.PhotoPath = r.cfg.PhotoPath
	id := r.journal(d, sqlite.OutcomeDelivered, now)
	alert.JournalID = id

	if err := r.d.Dispatcher.Enqueue(alert); err != nil {
		r.log.Warn("alert not queued", append(logger.Fields(ctx), zap.String("type", string(d.Type)), zap.Error(err))...)
		if id != 0 {
			if uerr := r.d.Journal.UpdateOutcome(id, sqlite.OutcomeDropped); uerr != nil {
				r.log.Warn("journal update failed", zap.Error(uerr))
			}
		}
		r.finish(ctx, d, sqlite.OutcomeDropped, now)
		return sqlite.OutcomeDropped
	}

	r.d.Gate.RecordFired(d.Type, now)
	r.d.Metrics.DispatchPending.Set(float64(r.d.Dispatcher.Pending()))
	r.log.Info("signal queued",
		append(logger.Fields(ctx),
			zap.String("type", string(d.Type)),
			zap.Float64("price", d.Price),
			zap.Int("strength", d.Strength),
		)...)
	if r.d.Console != nil {
		fmt.Fprintln(r.d.Console, notification.RenderDetails(d))
	}

	r.mu.Lock()
	r.lastDelivered = &d
	r.mu.Unlock()
	r.d.Health.SetLastSignal(now)

	r.finish(ctx, d, sqlite.OutcomeDelivered, now)
	return sqlite.OutcomeDelivered
}

// finish counts the outcome and mirrors the signal to the publisher.
// Suppressed signals are journaled here; queued ones already were.
func (r *Runner) finish(ctx context.Context, d model.SignalDetails, outcome sqlite.Outcome, at time.Time) {
	r.d.Metrics.ObserveSignal(string(d.Type), string(outcome))
	r.countOutcome(d.Type, outcome)

	if outcome == sqlite.OutcomeSuppressed {
		r.journal(d, outcome, at)
	}

	if r.d.Publisher != nil {
		ev := redisstore.SignalEvent{Outcome: string(outcome), Signal: d, PublishedAt: at.UnixMilli()}
		if err := r.d.Publisher.PublishSignal(ctx, ev); err != nil {
			r.log.Warn("signal publish failed", zap.Error(err))
		}
	}
}

func (r *Runner) journal(d model.SignalDetails, outcome sqlite.Outcome, at time.Time) int64 {
	if r.d.Journal == nil {
		return 0
	}
	id, err := r.d.Journal.Record(d, outcome, at)
	if err != nil {
		r.log.Warn("journal write failed", zap.Error(err))
		return 0
	}
	return id
}

func (r *Runner) countOutcome(st model.SignalType, outcome sqlite.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byOutcome, ok := r.stats[st]
	if !ok {
		byOutcome = make(map[sqlite.Outcome]int)
		r.stats[st] = byOutcome
	}
	byOutcome[outcome]++
}

func (r *Runner) delivered(a notification.Alert) {
	r.d.Metrics.DispatchPending.Set(float64(r.d.Dispatcher.Pending()))
}

func (r *Runner) deliveryFailed(a notification.Alert, err error) {
	r.d.Metrics.NotifyFailures.Inc()
	if a.Signal != nil {
		r.d.Metrics.ObserveSignal(string(a.Signal.Type), string(sqlite.OutcomeFailed))
		r.countOutcome(a.Signal.Type, sqlite.OutcomeFailed)
	}
	if a.JournalID != 0 && r.d.Journal != nil {
		if uerr := r.d.Journal.UpdateOutcome(a.JournalID, sqlite.OutcomeFailed); uerr != nil {
			r.log.Warn("journal update failed", zap.Error(uerr))
		}
	}
}

func (r *Runner) storeLatest(ctx context.Context, row model.IndicatorRow) {
	if r.d.Publisher == nil {
		return
	}
	if err := r.d.Publisher.StoreLatest(ctx, r.cfg.Symbol, r.cfg.Interval, row); err != nil {
		r.log.Debug("latest row not stored", zap.Error(err))
	}
}

func (r *Runner) storeCheckpoint(ctx context.Context, p *indicator.Pipeline) {
	if r.d.Publisher == nil {
		return
	}
	if err := r.d.Publisher.StoreCheckpoint(ctx, r.cfg.Symbol, r.cfg.Interval, p.Snapshot()); err != nil {
		r.log.Debug("checkpoint not stored", zap.Error(err))
	}
}

// resume reads the checkpoint left by a previous run and reports how far
// behind it is and whether the indicator settings changed since.
func (r *Runner) resume(ctx context.Context) {
	if r.d.Publisher == nil {
		return
	}
	snap, ok, err := r.d.Publisher.LoadCheckpoint(ctx, r.cfg.Symbol, r.cfg.Interval)
	if err != nil {
		r.log.Warn("checkpoint unavailable", zap.Error(err))
		return
	}
	if !ok {
		r.log.Info("no checkpoint, cold start")
		return
	}
	p, err := indicator.RestorePipeline(snap)
	if err != nil {
		r.log.Warn("checkpoint rejected", zap.Error(err))
		return
	}

	r.mu.Lock()
	r.resumedFrom = p.LastTimestamp()
	r.mu.Unlock()

	fields := []zap.Field{zap.Time("last_bar", p.LastTimestamp())}
	if !p.LastTimestamp().IsZero() {
		fields = append(fields, zap.Duration("behind", r.now().Sub(p.LastTimestamp())))
	}
	if p.Config() != r.cfg.Indicators {
		r.log.Warn("indicator settings changed since checkpoint", fields...)
		return
	}
	r.log.Info("resuming after checkpoint", fields...)
}

func (r *Runner) publishSnapshot(rows []model.IndicatorRow) {
	if r.d.Hub == nil {
		return
	}
	if err := r.d.Hub.PublishSnapshot(r.cfg.Symbol, r.cfg.Interval, rows, r.d.Markers); err != nil {
		r.log.Warn("chart snapshot failed", zap.Error(err))
	}
}

func (r *Runner) printStatus(ctx context.Context, res CycleResult, last model.IndicatorRow) {
	if r.d.Console == nil {
		return
	}
	price := res.Price
	if p, err := r.d.Provider.LastPrice(ctx, r.cfg.Symbol); err == nil {
		price = p
	} else {
		r.log.Debug("ticker unavailable, using last close", zap.Error(err))
	}

	r.mu.Lock()
	lastSig := r.lastDelivered
	r.mu.Unlock()
	fmt.Fprintln(r.d.Console, StatusLine(r.cfg.Symbol, r.cfg.Interval, price, last.RSI, lastSig, res.At))
}

// Rows returns the indicator rows of the latest cycle.
func (r *Runner) Rows() []model.IndicatorRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

// ExportChart writes the latest rows and markers to the configured export
// directory and returns the file path.
func (r *Runner) ExportChart() (string, error) {
	if r.cfg.ExportDir == "" {
		return "", nil
	}
	path := filepath.Join(r.cfg.ExportDir, chart.ExportFileName(r.cfg.Symbol, r.cfg.Interval))
	if err := chart.ExportWorkbook(path, r.Rows(), r.d.Markers.Buys(), r.d.Markers.Sells()); err != nil {
		return "", err
	}
	return path, nil
}

func (r *Runner) shutdown() {
	if path, err := r.ExportChart(); err != nil {
		r.log.Error("chart export failed", zap.Error(err))
	} else if path != "" {
		r.log.Info("chart exported", zap.String("path", path))
	}

	if r.d.Console != nil {
		fmt.Fprintln(r.d.Console, r.Summary())
		if r.d.Journal != nil {
			fmt.Fprintln(r.d.Console, r.History(historyRows))
		}
	}
	r.log.Info("runner stopped", zap.Int("cycles", r.cycleCount()))
}

func (r *Runner) cycleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cycles
}
