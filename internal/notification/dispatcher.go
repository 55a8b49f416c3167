package notification

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Enqueue when the alert queue has no room.
	ErrQueueFull = errors.New("notification: queue full")
	// ErrDispatcherClosed is returned by Enqueue after Close.
	ErrDispatcherClosed = errors.New("notification: dispatcher closed")
)

// RetryPolicy controls redelivery of a failed alert.
type RetryPolicy struct {
	MaxRetries    int           `mapstructure:"max_retries"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
	Jitter        bool          `mapstructure:"jitter"`
}

// DefaultRetryPolicy returns 3 retries starting at 1s, doubling, capped at 1m.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
		Jitter:        true,
	}
}

// Delay returns the wait before retry number attempt (0-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.InitialDelay
	if attempt > 0 && p.BackoffFactor > 0 {
		delay = time.Duration(float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt)))
	}
	if p.Jitter {
		// ±10%
		delay += time.Duration(float64(delay) * 0.1 * (2*rand.Float64() - 1))
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Dispatcher decouples alert delivery from the poll loop. Alerts are queued
// without blocking and delivered by Run with retries.
type Dispatcher struct {
	notifier Notifier
	policy   RetryPolicy
	queue    chan Alert
	log      *zap.Logger

	mu     sync.RWMutex
	closed bool

	// Callbacks (for metrics and the signal journal)
	OnDelivered func(a Alert)
	OnFailed    func(a Alert, err error)
	OnDrop      func(a Alert)
}

// NewDispatcher creates a dispatcher with a bounded queue.
func NewDispatcher(n Notifier, policy RetryPolicy, queueSize int, log *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		notifier: n,
		policy:   policy,
		queue:    make(chan Alert, queueSize),
		log:      log.Named("dispatcher"),
	}
}

// Enqueue hands an alert to the delivery worker. It never blocks; a nil
// error means the alert was accepted.
func (d *Dispatcher) Enqueue(a Alert) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- a:
		return nil
	default:
		d.log.Warn("queue full, dropping alert", zap.String("title", a.Title))
		if d.OnDrop != nil {
			d.OnDrop(a)
		}
		return ErrQueueFull
	}
}

// Pending returns the number of queued alerts.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Close stops accepting alerts. Run drains what is already queued and returns.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
}

// Run delivers queued alerts until ctx is cancelled or the dispatcher is
// closed and drained.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, a)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, a Alert) {
	for attempt := 0; ; attempt++ {
		err := d.notifier.Send(ctx, a)
		if err == nil {
			if d.OnDelivered != nil {
				d.OnDelivered(a)
			}
			return
		}

		if attempt >= d.policy.MaxRetries || ctx.Err() != nil {
			d.log.Error("alert delivery failed",
				zap.String("title", a.Title),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			if d.OnFailed != nil {
				d.OnFailed(a, err)
			}
			return
		}

		delay := d.policy.Delay(attempt)
		d.log.Warn("alert delivery failed, retrying",
			zap.String("title", a.Title),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			if d.OnFailed != nil {
				d.OnFailed(a, ctx.Err())
			}
			return
		case <-timer.C:
		}
	}
}
