package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

// BybitProvider reads spot market data through the Bybit v5 API client.
type BybitProvider struct {
	client   *bybit_api.Client
	category string
}

// NewBybitProvider creates a provider. Only public market endpoints are
// used, so key and secret may be empty.
func NewBybitProvider(opts Options) *BybitProvider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = bybit_api.MAINNET
		if opts.Testnet {
			baseURL = bybit_api.TESTNET
		}
	}
	return &BybitProvider{
		client:   bybit_api.NewBybitHttpClient(opts.APIKey, opts.APISecret, bybit_api.WithBaseURL(baseURL)),
		category: "spot",
	}
}

func (b *BybitProvider) Name() string { return ExchangeBybit }

// Klines fetches /v5/market/kline. Bybit returns rows newest first as
// [startTime, open, high, low, close, volume, turnover].
func (b *BybitProvider) Klines(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	code, ok := bybitIntervals[interval]
	if !ok {
		return nil, fmt.Errorf("bybit: unsupported interval %q", interval)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > 1000 {
		limit = 1000
	}

	params := map[string]interface{}{
		"category": b.category,
		"symbol":   symbol,
		"interval": code,
		"limit":    limit,
	}
	result, err := b.client.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "bybit: klines %s %s", symbol, interval)
	}

	var payload struct {
		List [][]string `json:"list"`
	}
	if err := decodeResult(result, &payload); err != nil {
		return nil, errors.Wrap(err, "bybit: klines")
	}

	series := make([]model.Candle, 0, len(payload.List))
	for i, row := range payload.List {
		if len(row) < 6 {
			return nil, fmt.Errorf("bybit: kline row %d: short row: %d fields", i, len(row))
		}
		startMs, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bybit: kline row %d start", i)
		}
		c, err := parseOHLCV(row[1], row[2], row[3], row[4], row[5])
		if err != nil {
			return nil, errors.Wrapf(err, "bybit: kline row %d", i)
		}
		c.Timestamp = time.UnixMilli(startMs).UTC()
		series = append(series, c)
	}
	sortAscending(series)
	return series, nil
}

// LastPrice fetches /v5/market/tickers.
func (b *BybitProvider) LastPrice(ctx context.Context, symbol string) (float64, error) {
	params := map[string]interface{}{
		"category": b.category,
		"symbol":   symbol,
	}
	result, err := b.client.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "bybit: ticker %s", symbol)
	}

	var payload struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	if err := decodeResult(result, &payload); err != nil {
		return 0, errors.Wrap(err, "bybit: ticker")
	}
	if len(payload.List) == 0 {
		return 0, fmt.Errorf("bybit: no ticker for %s", symbol)
	}
	price, err := strconv.ParseFloat(payload.List[0].LastPrice, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "bybit: parse price %q", payload.List[0].LastPrice)
	}
	return price, nil
}

// decodeResult checks the envelope's retCode and re-decodes its result.
func decodeResult(response interface{}, out interface{}) error {
	resp, ok := response.(*bybit_api.ServerResponse)
	if !ok || resp == nil {
		return fmt.Errorf("unexpected response type %T", response)
	}
	if resp.RetCode != 0 {
		return fmt.Errorf("API error: %s (code: %d)", resp.RetMsg, resp.RetCode)
	}
	raw, err := sonic.Marshal(resp.Result)
	if err != nil {
		return errors.Wrap(err, "marshal result")
	}
	return errors.Wrap(sonic.Unmarshal(raw, out), "decode result")
}
