package sqlite

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Recent returns the latest limit entries for symbol@interval, newest first.
func (j *Journal) Recent(symbol, interval string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(`
		SELECT id, outcome, details, recorded_at
		FROM signals
		WHERE symbol = ? AND interval = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`, symbol, interval, limit)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite query signals")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			outcome  string
			details  string
			recorded int64
		)
		if err := rows.Scan(&e.ID, &outcome, &details, &recorded); err != nil {
			return nil, errors.Wrap(err, "sqlite scan signal")
		}
		if err := sonic.UnmarshalString(details, &e.Details); err != nil {
			return nil, errors.Wrapf(err, "sqlite decode signal %d", e.ID)
		}
		e.Outcome = Outcome(outcome)
		e.Recorded = time.UnixMilli(recorded).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByOutcome returns how many signals of each outcome were journaled for
// symbol@interval since the given time.
func (j *Journal) CountByOutcome(symbol, interval string, since time.Time) (map[Outcome]int, error) {
	rows, err := j.db.Query(`
		SELECT outcome, COUNT(*)
		FROM signals
		WHERE symbol = ? AND interval = ? AND recorded_at >= ?
		GROUP BY outcome
	`, symbol, interval, since.UnixMilli())
	if err != nil {
		return nil, errors.Wrap(err, "sqlite count signals")
	}
	defer rows.Close()

	counts := make(map[Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, errors.Wrap(err, "sqlite scan count")
		}
		counts[Outcome(outcome)] = n
	}
	return counts, rows.Err()
}
