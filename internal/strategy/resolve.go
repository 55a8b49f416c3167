package strategy

import (
	"fmt"
	"strings"

	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

// TieBreak selects the surviving side when both fire with equal strength.
type TieBreak string

const (
	TieBreakBuy  TieBreak = "buy"
	TieBreakSell TieBreak = "sell"
)

// ParseTieBreak parses "buy" or "sell" (case-insensitive).
func ParseTieBreak(s string) (TieBreak, error) {
	switch tb := TieBreak(strings.ToLower(strings.TrimSpace(s))); tb {
	case TieBreakBuy, TieBreakSell:
		return tb, nil
	case "":
		return TieBreakBuy, nil
	}
	return "", fmt.Errorf("strategy: unknown tie break %q (want buy or sell)", s)
}

// Resolve enforces mutual exclusivity: when both sides fired, the strictly
// stronger one stays fired; equal strengths go to tb.
func Resolve(ev Evaluation, tb TieBreak) Evaluation {
	if !ev.BuyFired || !ev.SellFired {
		return ev
	}
	switch {
	case ev.Buy.Strength > ev.Sell.Strength:
		ev.SellFired = false
	case ev.Sell.Strength > ev.Buy.Strength:
		ev.BuyFired = false
	case tb == TieBreakSell:
		ev.BuyFired = false
	default:
		ev.SellFired = false
	}
	return ev
}

// Fired returns the single fired side after Resolve, if any.
func (ev Evaluation) Fired() (model.SignalDetails, bool) {
	switch {
	case ev.BuyFired:
		return ev.Buy, true
	case ev.SellFired:
		return ev.Sell, true
	}
	return model.SignalDetails{}, false
}
