// Package redis publishes signal events and the latest indicator row to Redis
// for downstream consumers.
package redis

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	goredis "github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sleepydogo/peceto-trading-bot/internal/indicator"
	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

const (
	defaultPrefix    = "peceto"
	defaultLatestTTL = 30 * time.Minute
	signalStreamLen  = 1000
)

// Config configures the Redis publisher.
type Config struct {
	Addr      string        `mapstructure:"addr"` // e.g. "localhost:6379"
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Prefix    string        `mapstructure:"prefix"`
	LatestTTL time.Duration `mapstructure:"latest_ttl"`
}

// SignalEvent is the payload published for every fired signal.
type SignalEvent struct {
	Outcome     string              `json:"outcome"`
	Signal      model.SignalDetails `json:"signal"`
	PublishedAt int64               `json:"published_at"` // unix ms
}

// Publisher writes through a circuit breaker so an unreachable Redis costs
// one rejected call per cycle instead of a network timeout.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
	prefix string
	ttl    time.Duration
	log    *zap.Logger

	// OnSkip is called when a write is rejected by the open breaker.
	OnSkip func()
}

// New connects to Redis and pings the server.
func New(cfg Config, cb *CircuitBreaker, log *zap.Logger) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "redis ping")
	}

	p := newPublisher(client, cb, cfg, log)
	p.log.Info("connected", zap.String("addr", cfg.Addr))
	return p, nil
}

func newPublisher(client *goredis.Client, cb *CircuitBreaker, cfg Config, log *zap.Logger) *Publisher {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.LatestTTL <= 0 {
		cfg.LatestTTL = defaultLatestTTL
	}
	return &Publisher{
		client: client,
		cb:     cb,
		prefix: cfg.Prefix,
		ttl:    cfg.LatestTTL,
		log:    log.Named("redis"),
	}
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker returns the publisher's circuit breaker.
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

// SignalChannel is the pub/sub channel for signal events.
func SignalChannel(prefix, symbol, interval string) string {
	return prefix + ":signal:" + symbol + ":" + interval
}

// SignalStream is the capped stream keeping recent signal events.
func SignalStream(prefix, symbol, interval string) string {
	return prefix + ":signals:" + symbol + ":" + interval
}

// LatestRowKey holds the most recent indicator row.
func LatestRowKey(prefix, symbol, interval string) string {
	return prefix + ":row:latest:" + symbol + ":" + interval
}

// CheckpointKey holds the indicator pipeline state after the latest cycle.
func CheckpointKey(prefix, symbol, interval string) string {
	return prefix + ":checkpoint:" + symbol + ":" + interval
}

// RowChannel is the pub/sub channel for indicator rows.
func RowChannel(prefix, symbol, interval string) string {
	return prefix + ":row:" + symbol + ":" + interval
}

// PublishSignal appends the event to the signal stream and publishes it.
func (p *Publisher) PublishSignal(ctx context.Context, ev SignalEvent) error {
	data, err := sonic.MarshalString(ev)
	if err != nil {
		return errors.Wrap(err, "redis marshal signal")
	}
	sym, iv := ev.Signal.Symbol, ev.Signal.Interval

	return p.exec(func() error {
		pipe := p.client.Pipeline()
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: SignalStream(p.prefix, sym, iv),
			MaxLen: signalStreamLen,
			Approx: true,
			Values: map[string]interface{}{"data": data},
		})
		pipe.Publish(ctx, SignalChannel(p.prefix, sym, iv), data)
		_, err := pipe.Exec(ctx)
		return errors.Wrap(err, "redis publish signal")
	})
}

// StoreLatest saves the latest row under a TTL key and publishes it.
func (p *Publisher) StoreLatest(ctx context.Context, symbol, interval string, row model.IndicatorRow) error {
	data, err := sonic.MarshalString(row.Wire())
	if err != nil {
		return errors.Wrap(err, "redis marshal row")
	}

	return p.exec(func() error {
		pipe := p.client.Pipeline()
		pipe.Set(ctx, LatestRowKey(p.prefix, symbol, interval), data, p.ttl)
		pipe.Publish(ctx, RowChannel(p.prefix, symbol, interval), data)
		_, err := pipe.Exec(ctx)
		return errors.Wrap(err, "redis store latest row")
	})
}

// StoreCheckpoint saves the pipeline snapshot without expiry so it survives
// restarts.
func (p *Publisher) StoreCheckpoint(ctx context.Context, symbol, interval string, snap indicator.PipelineSnapshot) error {
	data, err := indicator.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	return p.exec(func() error {
		err := p.client.Set(ctx, CheckpointKey(p.prefix, symbol, interval), data, 0).Err()
		return errors.Wrap(err, "redis store checkpoint")
	})
}

// LoadCheckpoint reads back the pipeline snapshot. ok is false when none
// was stored.
func (p *Publisher) LoadCheckpoint(ctx context.Context, symbol, interval string) (snap indicator.PipelineSnapshot, ok bool, err error) {
	err = p.exec(func() error {
		data, gerr := p.client.Get(ctx, CheckpointKey(p.prefix, symbol, interval)).Bytes()
		if gerr == goredis.Nil {
			return nil
		}
		if gerr != nil {
			return errors.Wrap(gerr, "redis load checkpoint")
		}
		snap, gerr = indicator.DecodeSnapshot(data)
		if gerr != nil {
			return gerr
		}
		ok = true
		return nil
	})
	return snap, ok, err
}

func (p *Publisher) exec(fn func() error) error {
	err := p.cb.Execute(fn)
	if errors.Is(err, ErrCircuitOpen) && p.OnSkip != nil {
		p.OnSkip()
	}
	return err
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
