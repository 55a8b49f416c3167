package indicator

import (
	"fmt"
	"time"

	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

// Fixed windows of the indicator set.
const (
	MACDSignalPeriod = 9
	BollingerWindow  = 20
	BollingerMult    = 2.0
	ATRWindow        = 14
)

// Config holds the configurable periods and RSI thresholds.
type Config struct {
	EMAShortPeriod  int     `mapstructure:"ema_short"`
	EMAMediumPeriod int     `mapstructure:"ema_medium"`
	EMALongPeriod   int     `mapstructure:"ema_long"`
	RSIPeriod       int     `mapstructure:"rsi_period"`
	RSIOversold     float64 `mapstructure:"rsi_oversold"`
	RSIOverbought   float64 `mapstructure:"rsi_overbought"`
}

// DefaultConfig returns the 9/21/55 EMA, RSI(14) 30/70 setup.
func DefaultConfig() Config {
	return Config{
		EMAShortPeriod:  9,
		EMAMediumPeriod: 21,
		EMALongPeriod:   55,
		RSIPeriod:       14,
		RSIOversold:     30,
		RSIOverbought:   70,
	}
}

// Validate rejects non-positive periods and inverted RSI thresholds.
func (c Config) Validate() error {
	for name, p := range map[string]int{
		"ema_short":  c.EMAShortPeriod,
		"ema_medium": c.EMAMediumPeriod,
		"ema_long":   c.EMALongPeriod,
		"rsi_period": c.RSIPeriod,
	} {
		if p <= 0 {
			return fmt.Errorf("indicator: %s period must be positive, got %d", name, p)
		}
	}
	if c.RSIOversold <= 0 || c.RSIOverbought <= 0 || c.RSIOversold >= c.RSIOverbought {
		return fmt.Errorf("indicator: rsi thresholds must satisfy 0 < oversold < overbought, got %v/%v",
			c.RSIOversold, c.RSIOverbought)
	}
	return nil
}

// WarmupBars is the number of bars after which every indicator is defined.
func (c Config) WarmupBars() int {
	n := BollingerWindow
	for _, p := range []int{c.EMALongPeriod, c.RSIPeriod + 1, MACDSignalPeriod, ATRWindow} {
		if p > n {
			n = p
		}
	}
	return n
}

// Pipeline is the streaming form of the indicator set: one candle in,
// one IndicatorRow out. Designed for single-goroutine usage.
type Pipeline struct {
	cfg Config

	emaShort   *EMA
	emaMedium  *EMA
	emaLong    *EMA
	macdSignal *EMA
	rsi        *RSI
	boll       *StdDev
	atr        *ATR

	lastTS time.Time
}

// NewPipeline creates a cold pipeline for cfg.
func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		emaShort:   NewEMA(cfg.EMAShortPeriod),
		emaMedium:  NewEMA(cfg.EMAMediumPeriod),
		emaLong:    NewEMA(cfg.EMALongPeriod),
		macdSignal: NewEMA(MACDSignalPeriod),
		rsi:        NewRSI(cfg.RSIPeriod),
		boll:       NewStdDev(BollingerWindow),
		atr:        NewATR(ATRWindow),
	}
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// LastTimestamp is the open time of the last candle fed, zero if none.
func (p *Pipeline) LastTimestamp() time.Time { return p.lastTS }

// Next feeds one candle and returns its enriched row.
func (p *Pipeline) Next(c model.Candle) model.IndicatorRow {
	p.emaShort.Update(c.Close)
	p.emaMedium.Update(c.Close)
	p.emaLong.Update(c.Close)
	p.rsi.Update(c.Close)
	p.boll.Update(c.Close)
	p.atr.UpdateBar(c)
	p.lastTS = c.Timestamp

	macd := p.emaShort.Value() - p.emaMedium.Value()
	p.macdSignal.Update(macd)
	signal := p.macdSignal.Value()

	bands := p.boll.Bands(BollingerMult)

	return model.IndicatorRow{
		Candle:     c,
		EMAShort:   p.emaShort.Value(),
		EMAMedium:  p.emaMedium.Value(),
		EMALong:    p.emaLong.Value(),
		RSI:        p.rsi.Value(),
		MACD:       macd,
		MACDSignal: signal,
		MACDHist:   macd - signal,
		SMA20:      bands.Middle,
		StdDev:     bands.StdDev,
		UpperBand:  bands.Upper,
		LowerBand:  bands.Lower,
		TR:         p.atr.TR(),
		ATR:        p.atr.Value(),
	}
}

// Feed runs a series through the pipeline, continuing from its current state.
func (p *Pipeline) Feed(series []model.Candle) []model.IndicatorRow {
	rows := make([]model.IndicatorRow, len(series))
	for i, c := range series {
		rows[i] = p.Next(c)
	}
	return rows
}

// Compute derives the indicator rows for series. The result is
// index-aligned with the input; warm-up values are NaN.
func Compute(series []model.Candle, cfg Config) []model.IndicatorRow {
	return NewPipeline(cfg).Feed(series)
}
