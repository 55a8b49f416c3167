package notification

import (
	"fmt"
	"strings"

	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

// TimeLayout is the timestamp layout used in alert texts.
const TimeLayout = "2006-01-02 15:04:05"

// Formatter renders signal details into the advisory alert text.
type Formatter struct {
	// Quote is the quote asset printed after prices (e.g. "USDT").
	Quote string
}

// NewFormatter creates a formatter for the given quote asset.
func NewFormatter(quote string) Formatter {
	if quote == "" {
		quote = "USDT"
	}
	return Formatter{Quote: quote}
}

// Title returns the alert headline for a signal type.
func Title(st model.SignalType) string {
	return fmt.Sprintf("%s %s SIGNAL DETECTED %s", emoji(st), st, emoji(st))
}

// Advice returns the fixed recommendation sentence for a signal type.
func Advice(st model.SignalType) string {
	if st == model.SignalBuy {
		return "Consider buying with a stop loss at -3%."
	}
	return "Consider selling or taking profits."
}

// Message renders the full alert body.
func (f Formatter) Message(d model.SignalDetails) string {
	var b strings.Builder

	b.WriteString(Title(d.Type))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "📊 %s @ %s\n", d.Symbol, d.Interval)
	fmt.Fprintf(&b, "💰 Price: %.2f %s\n", d.Price, f.Quote)
	fmt.Fprintf(&b, "⏰ Time: %s\n", d.Timestamp.Format(TimeLayout))
	fmt.Fprintf(&b, "💪 Signal strength: %d/%d\n\n", d.Strength, d.MaxStrength)

	b.WriteString("✅ Conditions:\n")
	for _, c := range d.Conditions {
		fmt.Fprintf(&b, "  %s %s\n", check(c.Met), ConditionLabel(c.Name))
	}

	b.WriteString("\n📈 Key indicators:\n")
	for _, line := range keyIndicators(d) {
		fmt.Fprintf(&b, "  %s\n", line)
	}

	fmt.Fprintf(&b, "\n💡 Advice: %s", Advice(d.Type))
	return b.String()
}

// ConditionLabel turns "ema_cross_up" into "Ema Cross Up".
func ConditionLabel(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func keyIndicators(d model.SignalDetails) []string {
	val := func(name string) float64 {
		v, _ := d.Indicator(name)
		return v
	}
	return []string{
		fmt.Sprintf("RSI: %.2f", val("rsi")),
		fmt.Sprintf("MACD: %.4f", val("macd")),
		fmt.Sprintf("EMA Short: %.2f", val("ema_short")),
		fmt.Sprintf("EMA Medium: %.2f", val("ema_medium")),
		fmt.Sprintf("EMA Long: %.2f", val("ema_long")),
	}
}

func check(met bool) string {
	if met {
		return "✓"
	}
	return "✗"
}

func emoji(st model.SignalType) string {
	if st == model.SignalBuy {
		return "🟢"
	}
	return "🔴"
}
