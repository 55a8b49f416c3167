// Package notification delivers signal alerts to external channels
// (Telegram, webhooks, the log) through a buffered dispatcher.
package notification

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertSignal   AlertLevel = "SIGNAL"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`

	// Signal is set for trading-signal alerts.
	Signal *model.SignalDetails `json:"signal,omitempty"`
	// PhotoPath optionally points at an image sent after the text.
	PhotoPath string `json:"-"`
	// JournalID links the alert to its signal journal entry (0 if none).
	JournalID int64 `json:"-"`
}

// SignalAlert builds the alert for a fired signal.
func SignalAlert(f Formatter, d model.SignalDetails) Alert {
	return Alert{
		Level:   AlertSignal,
		Title:   Title(d.Type),
		Message: f.Message(d),
		Signal:  &d,
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log. Used when no external
// channel is configured.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	fields := []zap.Field{
		zap.String("level", string(alert.Level)),
		zap.String("title", alert.Title),
		zap.String("message", alert.Message),
	}
	if alert.Signal != nil {
		fields = append(fields,
			zap.String("type", string(alert.Signal.Type)),
			zap.Int("strength", alert.Signal.Strength),
			zap.Float64("price", alert.Signal.Price),
		)
	}
	n.log.Info("alert", fields...)
	return nil
}

// MultiNotifier fans one alert out to several backends. Every backend is
// tried; the joined error reports all failures.
type MultiNotifier []Notifier

func (m MultiNotifier) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
