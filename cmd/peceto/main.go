package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/sleepydogo/peceto-trading-bot/config"
	"github.com/sleepydogo/peceto-trading-bot/internal/chart"
	"github.com/sleepydogo/peceto-trading-bot/internal/logger"
	"github.com/sleepydogo/peceto-trading-bot/internal/marketdata"
	"github.com/sleepydogo/peceto-trading-bot/internal/metrics"
	"github.com/sleepydogo/peceto-trading-bot/internal/notification"
	"github.com/sleepydogo/peceto-trading-bot/internal/runner"
	redisstore "github.com/sleepydogo/peceto-trading-bot/internal/store/redis"
	"github.com/sleepydogo/peceto-trading-bot/internal/store/sqlite"
	"github.com/sleepydogo/peceto-trading-bot/internal/strategy"
)

const (
	chartReplaySize = 64
	livenessEvery   = 15 * time.Second
	drainTimeout    = 10 * time.Second
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Provide(
			config.Load,
			newLogger,
			newRegistry,
			newMetrics,
			newHealth,
			newProvider,
			newNotifier,
			newDispatcher,
			newJournal,
			newPublisher,
			newHub,
			newGate,
			chart.NewMarkerLog,
			newRunner,
		),
		fx.Invoke(
			registerServers,
			registerLoop,
		),
	)
	app.Run()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.Init("peceto", cfg.LogLevel)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.NewMetrics(reg)
}

// newHealth marks the bot unhealthy when no cycle completed within three
// poll periods plus one error backoff.
func newHealth(cfg *config.Config) *metrics.HealthStatus {
	stale := 3*marketdata.PollInterval(cfg.Interval) + marketdata.ErrorBackoff
	return metrics.NewHealthStatus(cfg.Symbol, cfg.Interval, stale)
}

func newProvider(cfg *config.Config) (marketdata.KlineProvider, error) {
	return marketdata.NewProvider(cfg.Market)
}

// newNotifier always logs alerts and adds Telegram and the webhook when
// configured.
func newNotifier(cfg *config.Config, log *zap.Logger) (notification.Notifier, error) {
	multi := notification.MultiNotifier{notification.NewLogNotifier(log)}
	if cfg.Telegram.Token != "" {
		tg, err := notification.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Telegram.Endpoint, log)
		if err != nil {
			return nil, err
		}
		multi = append(multi, tg)
	}
	if cfg.WebhookURL != "" {
		multi = append(multi, notification.NewWebhookNotifier(cfg.WebhookURL, log))
	}
	return multi, nil
}

func newDispatcher(cfg *config.Config, n notification.Notifier, m *metrics.Metrics, log *zap.Logger) *notification.Dispatcher {
	d := notification.NewDispatcher(n, cfg.Dispatch.Retry, cfg.Dispatch.QueueSize, log)
	d.OnDrop = func(notification.Alert) { m.DispatchPending.Set(float64(d.Pending())) }
	return d
}

// newJournal returns nil when no SQLite path is configured.
func newJournal(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*sqlite.Journal, error) {
	if cfg.SQLitePath == "" {
		return nil, nil
	}
	j, err := sqlite.Open(cfg.SQLitePath, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(j.Close))
	return j, nil
}

// newPublisher returns nil when Redis is not configured or unreachable at
// startup; the bot keeps running without it.
func newPublisher(lc fx.Lifecycle, cfg *config.Config, m *metrics.Metrics, log *zap.Logger) *redisstore.Publisher {
	if cfg.Redis.Addr == "" {
		return nil
	}
	cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
	cb.OnStateChange = func(from, to redisstore.State) {
		m.ObserveBreaker(int(to))
		log.Warn("redis circuit breaker", zap.String("from", from.String()), zap.String("to", to.String()))
	}

	p, err := redisstore.New(cfg.Redis, cb, log)
	if err != nil {
		log.Warn("redis disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		return nil
	}
	p.OnSkip = m.RedisSkippedWrites.Inc
	lc.Append(fx.StopHook(p.Close))
	return p
}

func newHub(m *metrics.Metrics, log *zap.Logger) *chart.Hub {
	hub := chart.NewHub(chartReplaySize, log)
	hub.OnClientCount = func(n int) { m.ChartClients.Set(float64(n)) }
	return hub
}

func newGate(cfg *config.Config) *strategy.CooldownGate {
	return strategy.NewCooldownGate(cfg.Cooldown)
}

type runnerParams struct {
	fx.In

	Config     *config.Config
	Provider   marketdata.KlineProvider
	Gate       *strategy.CooldownGate
	Markers    *chart.MarkerLog
	Dispatcher *notification.Dispatcher
	Metrics    *metrics.Metrics
	Health     *metrics.HealthStatus
	Journal    *sqlite.Journal
	Publisher  *redisstore.Publisher
	Hub        *chart.Hub
	Log        *zap.Logger
}

func newRunner(p runnerParams) *runner.Runner {
	tb, _ := strategy.ParseTieBreak(p.Config.TieBreak) // validated by config.Load

	deps := runner.Deps{
		Provider:   p.Provider,
		Gate:       p.Gate,
		Markers:    p.Markers,
		Dispatcher: p.Dispatcher,
		Formatter:  notification.NewFormatter(p.Config.Quote),
		Metrics:    p.Metrics,
		Health:     p.Health,
		Log:        p.Log,
		Hub:        p.Hub,
		Console:    os.Stdout,
	}
	// Keep the interfaces nil, not typed nils, when a store is disabled.
	if p.Journal != nil {
		deps.Journal = p.Journal
	}
	if p.Publisher != nil {
		deps.Publisher = p.Publisher
	}

	return runner.New(runner.Config{
		Symbol:     p.Config.Symbol,
		Interval:   p.Config.Interval,
		Limit:      p.Config.Limit,
		Indicators: p.Config.Indicators,
		TieBreak:   tb,
		PhotoPath:  p.Config.PhotoPath,
		ExportDir:  p.Config.ExportDir,
	}, deps)
}

func registerServers(lc fx.Lifecycle, cfg *config.Config, reg *prometheus.Registry, health *metrics.HealthStatus, hub *chart.Hub, log *zap.Logger) {
	if cfg.MetricsAddr != "" {
		ms := metrics.NewServer(cfg.MetricsAddr, reg, health, log)
		lc.Append(fx.Hook{OnStart: func(context.Context) error { return ms.Start() }, OnStop: ms.Stop})
	}
	if cfg.ChartAddr != "" {
		cs := chart.NewServer(cfg.ChartAddr, hub)
		lc.Append(fx.Hook{OnStart: func(context.Context) error { return cs.Start() }, OnStop: cs.Stop})
	}
}

type loopParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Runner     *runner.Runner
	Dispatcher *notification.Dispatcher
	Health     *metrics.HealthStatus
	Journal    *sqlite.Journal
	Publisher  *redisstore.Publisher
	Log        *zap.Logger
}

// registerLoop starts the dispatcher, the liveness checker and the poll
// loop. On stop the loop ends first, then queued alerts get drainTimeout to
// go out.
func registerLoop(p loopParams) {
	runCtx, cancelRun := context.WithCancel(context.Background())
	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	dispatchDone := make(chan struct{})

	var rdb *goredis.Client
	if p.Publisher != nil {
		rdb = p.Publisher.Client()
	}
	var sqlDB *sql.DB
	if p.Journal != nil {
		sqlDB = p.Journal.DB()
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(dispatchDone)
				p.Dispatcher.Run(dispatchCtx)
			}()
			p.Health.StartLivenessChecker(runCtx, rdb, sqlDB, livenessEvery)
			go func() {
				defer close(runDone)
				if err := p.Runner.Run(runCtx); err != nil {
					p.Log.Error("runner exited", zap.Error(err))
					_ = p.Shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancelRun()
			<-runDone

			p.Dispatcher.Close()
			select {
			case <-dispatchDone:
			case <-time.After(drainTimeout):
				p.Log.Warn("alert queue not drained", zap.Int("pending", p.Dispatcher.Pending()))
			case <-ctx.Done():
			}
			cancelDispatch()
			<-dispatchDone
			_ = p.Log.Sync()
			return nil
		},
	})
}
