package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

const (
	binanceMainnet = "https://api.binance.com"
	binanceTestnet = "https://testnet.binance.vision"
)

// BinanceProvider reads public spot market data from the Binance REST API.
type BinanceProvider struct {
	baseURL string
	client  *http.Client
}

// NewBinanceProvider creates a provider. An empty baseURL selects mainnet or
// testnet.
func NewBinanceProvider(baseURL string, testnet bool) *BinanceProvider {
	if baseURL == "" {
		baseURL = binanceMainnet
		if testnet {
			baseURL = binanceTestnet
		}
	}
	return &BinanceProvider{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (b *BinanceProvider) Name() string { return ExchangeBinance }

// Klines fetches /api/v3/klines. Each row is
// [openTime, open, high, low, close, volume, closeTime, ...].
func (b *BinanceProvider) Klines(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	var rows [][]interface{}
	if err := b.get(ctx, "/api/v3/klines", q, &rows); err != nil {
		return nil, errors.Wrapf(err, "binance: klines %s %s", symbol, interval)
	}

	series := make([]model.Candle, 0, len(rows))
	for i, row := range rows {
		c, err := binanceRow(row)
		if err != nil {
			return nil, errors.Wrapf(err, "binance: kline row %d", i)
		}
		series = append(series, c)
	}
	sortAscending(series)
	return series, nil
}

// LastPrice fetches /api/v3/ticker/price.
func (b *BinanceProvider) LastPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var ticker struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := b.get(ctx, "/api/v3/ticker/price", q, &ticker); err != nil {
		return 0, errors.Wrapf(err, "binance: ticker %s", symbol)
	}
	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "binance: parse price %q", ticker.Price)
	}
	return price, nil
}

func (b *BinanceProvider) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, body)
	}
	return errors.Wrap(sonic.Unmarshal(body, out), "decode")
}

func binanceRow(row []interface{}) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("short row: %d fields", len(row))
	}
	openMs, ok := row[0].(float64)
	if !ok {
		return model.Candle{}, fmt.Errorf("open time is %T", row[0])
	}
	str := make([]string, 5)
	for i := range str {
		s, ok := row[i+1].(string)
		if !ok {
			return model.Candle{}, fmt.Errorf("field %d is %T", i+1, row[i+1])
		}
		str[i] = s
	}
	c, err := parseOHLCV(str[0], str[1], str[2], str[3], str[4])
	if err != nil {
		return model.Candle{}, err
	}
	c.Timestamp = time.UnixMilli(int64(openMs)).UTC()
	return c, nil
}
