// Package strategy scores the latest market state against the buy and sell
// rule sets, resolves conflicts between them and gates repeated alerts.
//
// Each rule set has five conditions evaluated on the last two indicator
// rows (prev, last). The number of satisfied conditions is the signal
// strength; a side fires at strength 3 or more.
package strategy

import (
	"math"

	"github.com/sleepydogo/peceto-trading-bot/internal/indicator"
	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

// Band proximity factors for the support/resistance conditions.
const (
	SupportFactor    = 1.01
	ResistanceFactor = 0.99
)

// Thresholds are the RSI levels used by the rule sets.
type Thresholds struct {
	Oversold   float64
	Overbought float64
}

type rule struct {
	name string
	met  func(prev, last model.IndicatorRow, th Thresholds) bool
}

// RuleSet is one side's ordered conditions and the indicator values
// attached to its details.
type RuleSet struct {
	Type     model.SignalType
	rules    []rule
	snapshot []string
}

// Names returns the condition names in evaluation order.
func (rs RuleSet) Names() []string {
	names := make([]string, len(rs.rules))
	for i, r := range rs.rules {
		names[i] = r.name
	}
	return names
}

// BuyRules is the bullish rule set.
var BuyRules = RuleSet{
	Type: model.SignalBuy,
	rules: []rule{
		{"ema_cross_up", func(p, l model.IndicatorRow, _ Thresholds) bool {
			return p.EMAShort <= p.EMAMedium && l.EMAShort > l.EMAMedium
		}},
		{"price_above_long_ema", func(_, l model.IndicatorRow, _ Thresholds) bool {
			return l.Close > l.EMALong
		}},
		{"rsi_oversold_exit", func(p, l model.IndicatorRow, th Thresholds) bool {
			return p.RSI < th.Oversold && l.RSI >= th.Oversold
		}},
		{"macd_cross_up", func(p, l model.IndicatorRow, _ Thresholds) bool {
			return p.MACD <= p.MACDSignal && l.MACD > l.MACDSignal
		}},
		{"near_support", func(_, l model.IndicatorRow, _ Thresholds) bool {
			return l.Close <= l.LowerBand*SupportFactor
		}},
	},
	snapshot: []string{"ema_short", "ema_medium", "ema_long", "rsi", "macd", "macd_signal", "lower_band"},
}

// SellRules mirrors BuyRules in the opposite direction.
var SellRules = RuleSet{
	Type: model.SignalSell,
	rules: []rule{
		{"ema_cross_down", func(p, l model.IndicatorRow, _ Thresholds) bool {
			return p.EMAShort >= p.EMAMedium && l.EMAShort < l.EMAMedium
		}},
		{"price_below_long_ema", func(_, l model.IndicatorRow, _ Thresholds) bool {
			return l.Close < l.EMALong
		}},
		{"rsi_overbought_entry", func(p, l model.IndicatorRow, th Thresholds) bool {
			return p.RSI > th.Overbought && l.RSI <= th.Overbought
		}},
		{"macd_cross_down", func(p, l model.IndicatorRow, _ Thresholds) bool {
			return p.MACD >= p.MACDSignal && l.MACD < l.MACDSignal
		}},
		{"near_resistance", func(_, l model.IndicatorRow, _ Thresholds) bool {
			return l.Close >= l.UpperBand*ResistanceFactor
		}},
	},
	snapshot: []string{"ema_short", "ema_medium", "ema_long", "rsi", "macd", "macd_signal", "upper_band"},
}

// requiredFields are checked on both rows before any rule runs.
var requiredFields = []string{
	"close", "ema_short", "ema_medium", "ema_long", "rsi",
	"macd", "macd_signal", "lower_band", "upper_band",
}

// Evaluator applies the rule sets to indicator rows. It holds no state
// besides its thresholds and labels, and is safe for concurrent use.
type Evaluator struct {
	th       Thresholds
	symbol   string
	interval string
}

// NewEvaluator creates an evaluator using the RSI thresholds of cfg.
// symbol and interval are copied onto every SignalDetails.
func NewEvaluator(cfg indicator.Config, symbol, interval string) *Evaluator {
	return &Evaluator{
		th:       Thresholds{Oversold: cfg.RSIOversold, Overbought: cfg.RSIOverbought},
		symbol:   symbol,
		interval: interval,
	}
}

// EvaluateBuy scores the buy rule set on the last two rows.
func (e *Evaluator) EvaluateBuy(rows []model.IndicatorRow) (bool, model.SignalDetails, error) {
	return e.evaluate(BuyRules, rows)
}

// EvaluateSell scores the sell rule set on the last two rows.
func (e *Evaluator) EvaluateSell(rows []model.IndicatorRow) (bool, model.SignalDetails, error) {
	return e.evaluate(SellRules, rows)
}

// Evaluation holds both sides of one cycle.
type Evaluation struct {
	Buy       model.SignalDetails
	Sell      model.SignalDetails
	BuyFired  bool
	SellFired bool
}

// Evaluate scores both rule sets. Neither side short-circuits the other.
func (e *Evaluator) Evaluate(rows []model.IndicatorRow) (Evaluation, error) {
	var ev Evaluation
	var err error
	if ev.BuyFired, ev.Buy, err = e.EvaluateBuy(rows); err != nil {
		return Evaluation{}, err
	}
	if ev.SellFired, ev.Sell, err = e.EvaluateSell(rows); err != nil {
		return Evaluation{}, err
	}
	return ev, nil
}

func (e *Evaluator) evaluate(rs RuleSet, rows []model.IndicatorRow) (bool, model.SignalDetails, error) {
	if len(rows) < 2 {
		return false, model.SignalDetails{}, &InsufficientDataError{Rows: len(rows)}
	}
	prev, last := rows[len(rows)-2], rows[len(rows)-1]
	if err := checkDefined("prev", prev); err != nil {
		return false, model.SignalDetails{}, err
	}
	if err := checkDefined("last", last); err != nil {
		return false, model.SignalDetails{}, err
	}

	details := model.SignalDetails{
		Type:        rs.Type,
		Symbol:      e.symbol,
		Interval:    e.interval,
		Price:       last.Close,
		Timestamp:   last.Timestamp,
		MaxStrength: model.MaxStrength,
		Conditions:  make([]model.Condition, 0, len(rs.rules)),
		Indicators:  make([]model.NamedValue, 0, len(rs.snapshot)),
	}
	for _, r := range rs.rules {
		met := r.met(prev, last, e.th)
		if met {
			details.Strength++
		}
		details.Conditions = append(details.Conditions, model.Condition{Name: r.name, Met: met})
	}
	for _, name := range rs.snapshot {
		v, _ := last.Field(name)
		details.Indicators = append(details.Indicators, model.NamedValue{Name: name, Value: v})
	}
	return details.Active(), details, nil
}

func checkDefined(which string, row model.IndicatorRow) error {
	for _, name := range requiredFields {
		if v, _ := row.Field(name); math.IsNaN(v) || math.IsInf(v, 0) {
			return &InsufficientDataError{Rows: 2, Row: which, Field: name}
		}
	}
	return nil
}
