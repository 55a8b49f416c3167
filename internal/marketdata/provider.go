// Package marketdata fetches candle series and last prices from spot
// exchanges over their public REST APIs.
package marketdata

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

// DefaultLimit is the number of klines fetched per poll.
const DefaultLimit = 200

// KlineProvider is the candle source polled by the runner.
type KlineProvider interface {
	// Name returns the exchange name.
	Name() string
	// Klines returns up to limit most recent bars, oldest first.
	Klines(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error)
	// LastPrice returns the latest traded price.
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

// Options configures provider construction.
type Options struct {
	Exchange  string `mapstructure:"exchange"`
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Testnet   bool   `mapstructure:"testnet"`
}

// NewProvider builds the provider named by opts.Exchange.
func NewProvider(opts Options) (KlineProvider, error) {
	switch opts.Exchange {
	case "", ExchangeBinance:
		return NewBinanceProvider(opts.BaseURL, opts.Testnet), nil
	case ExchangeBybit:
		return NewBybitProvider(opts), nil
	default:
		return nil, fmt.Errorf("marketdata: unknown exchange %q", opts.Exchange)
	}
}

// Exchange names accepted by NewProvider.
const (
	ExchangeBinance = "binance"
	ExchangeBybit   = "bybit"
)

// parseOHLCV converts the five string price/volume fields shared by both
// exchanges' kline rows.
func parseOHLCV(open, high, low, close, volume string) (model.Candle, error) {
	var c model.Candle
	var err error
	fields := []struct {
		dst *float64
		src string
	}{
		{&c.Open, open}, {&c.High, high}, {&c.Low, low}, {&c.Close, close}, {&c.Volume, volume},
	}
	for _, f := range fields {
		if *f.dst, err = strconv.ParseFloat(f.src, 64); err != nil {
			return model.Candle{}, errors.Wrapf(err, "parse %q", f.src)
		}
	}
	return c, nil
}

// sortAscending orders a series oldest first. Exchanges disagree on order.
func sortAscending(series []model.Candle) {
	sort.Slice(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})
}
