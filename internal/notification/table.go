package notification

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

// RenderDetails renders a fired signal as two console tables: the headline
// values and the condition checklist.
func RenderDetails(d model.SignalDetails) string {
	val := func(name string) float64 {
		v, _ := d.Indicator(name)
		return v
	}

	main := table.NewWriter()
	main.SetTitle(fmt.Sprintf("%s %s @ %s", d.Type, d.Symbol, d.Interval))
	main.SetStyle(table.StyleRounded)
	main.AppendHeader(table.Row{"Type", "Price", "Strength", "RSI", "MACD", "EMA Short", "EMA Medium", "EMA Long"})
	main.AppendRow(table.Row{
		string(d.Type),
		fmt.Sprintf("%.2f", d.Price),
		fmt.Sprintf("%d/%d", d.Strength, d.MaxStrength),
		fmt.Sprintf("%.2f", val("rsi")),
		fmt.Sprintf("%.4f", val("macd")),
		fmt.Sprintf("%.2f", val("ema_short")),
		fmt.Sprintf("%.2f", val("ema_medium")),
		fmt.Sprintf("%.2f", val("ema_long")),
	})

	conds := table.NewWriter()
	conds.SetStyle(table.StyleRounded)
	conds.AppendHeader(table.Row{"Condition", "Met"})
	for _, c := range d.Conditions {
		conds.AppendRow(table.Row{ConditionLabel(c.Name), check(c.Met)})
	}
	conds.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 22, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignCenter},
	})

	return main.Render() + "\n" + conds.Render()
}
