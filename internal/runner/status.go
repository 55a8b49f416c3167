package runner

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"github.com/sleepydogo/peceto-trading-bot/internal/model"
	"github.com/sleepydogo/peceto-trading-bot/internal/store/sqlite"
)

var (
	headStyle = lipgloss.NewStyle().Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	buyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	sellStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// StatusLine renders the one-line console status printed after each cycle:
// clock, pair, current price, RSI and the last queued signal.
func StatusLine(symbol, interval string, price, rsi float64, last *model.SignalDetails, at time.Time) string {
	rsiText := "RSI n/a"
	if !math.IsNaN(rsi) {
		rsiText = fmt.Sprintf("RSI %.2f", rsi)
	}

	parts := []string{
		dimStyle.Render(at.Format("15:04:05")),
		headStyle.Render(fmt.Sprintf("%s@%s", symbol, interval)),
		fmt.Sprintf("price %.2f", price),
		rsiText,
	}
	if last == nil {
		parts = append(parts, dimStyle.Render("no signal yet"))
	} else {
		style := buyStyle
		if last.Type == model.SignalSell {
			style = sellStyle
		}
		parts = append(parts, "last "+style.Render(fmt.Sprintf("%s %d/%d", last.Type, last.Strength, last.MaxStrength))+
			" @ "+last.Timestamp.UTC().Format("2006-01-02 15:04"))
	}
	return strings.Join(parts, " | ")
}

var summaryOutcomes = []sqlite.Outcome{
	sqlite.OutcomeDelivered,
	sqlite.OutcomeSuppressed,
	sqlite.OutcomeDropped,
	sqlite.OutcomeFailed,
}

// historyRows is how many journal entries the shutdown report lists.
const historyRows = 10

// Summary renders the per-type signal outcome counts of this session. With
// a journal, a last row shows what the journal holds since the session
// started, which includes deliveries that failed after the last cycle.
func (r *Runner) Summary() string {
	var (
		journaled map[sqlite.Outcome]int
		jerr      error
	)
	r.mu.Lock()
	started, resumed := r.started, r.resumedFrom
	r.mu.Unlock()
	if r.d.Journal != nil {
		journaled, jerr = r.d.Journal.CountByOutcome(r.cfg.Symbol, r.cfg.Interval, started)
		if jerr != nil {
			r.log.Warn("journal counts unavailable", zap.Error(jerr))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s @ %s session (%d cycles)", r.cfg.Symbol, r.cfg.Interval, r.cycles))
	t.SetStyle(table.StyleRounded)

	header := table.Row{"Type"}
	for _, o := range summaryOutcomes {
		header = append(header, string(o))
	}
	t.AppendHeader(header)

	for _, st := range []model.SignalType{model.SignalBuy, model.SignalSell} {
		row := table.Row{string(st)}
		for _, o := range summaryOutcomes {
			row = append(row, r.stats[st][o])
		}
		t.AppendRow(row)
	}
	if journaled != nil {
		t.AppendSeparator()
		row := table.Row{"journal"}
		for _, o := range summaryOutcomes {
			row = append(row, journaled[o])
		}
		t.AppendRow(row)
	}
	if !resumed.IsZero() {
		t.SetCaption("resumed after checkpoint at %s", resumed.UTC().Format("2006-01-02 15:04"))
	}
	return t.Render()
}

// History renders the latest journal entries, newest first.
func (r *Runner) History(limit int) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s @ %s recent signals", r.cfg.Symbol, r.cfg.Interval))
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Bar", "Type", "Strength", "Price", "Outcome"})

	entries, err := r.d.Journal.Recent(r.cfg.Symbol, r.cfg.Interval, limit)
	if err != nil {
		r.log.Warn("journal history unavailable", zap.Error(err))
		return t.Render()
	}
	for _, e := range entries {
		t.AppendRow(table.Row{
			e.Details.Timestamp.UTC().Format("2006-01-02 15:04"),
			string(e.Details.Type),
			fmt.Sprintf("%d/%d", e.Details.Strength, e.Details.MaxStrength),
			fmt.Sprintf("%.2f", e.Details.Price),
			string(e.Outcome),
		})
	}
	return t.Render()
}
