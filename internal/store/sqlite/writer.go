// Package sqlite keeps a local journal of every fired signal and what
// happened to it.
package sqlite

import (
	"database/sql"
	"time"

	"github.com/bytedance/sonic"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

// Outcome is what happened to a fired signal.
type Outcome string

const (
	OutcomeDelivered  Outcome = "delivered"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeDropped    Outcome = "dropped"
	OutcomeFailed     Outcome = "failed"
)

// Entry is one journal row.
type Entry struct {
	ID       int64
	Details  model.SignalDetails
	Outcome  Outcome
	Recorded time.Time
}

// Journal is a single-connection SQLite signal journal.
type Journal struct {
	db  *sql.DB
	log *zap.Logger
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// Open opens (or creates) the journal at path with WAL mode and the schema.
func Open(path string, log *zap.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "sqlite open")
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite schema")
	}

	log = log.Named("sqlite")
	log.Info("opened signal journal", zap.String("path", path))
	return &Journal{db: db, log: log}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signals (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol      TEXT    NOT NULL,
			interval    TEXT    NOT NULL,
			type        TEXT    NOT NULL,
			bar_ts      INTEGER NOT NULL,
			price       REAL    NOT NULL,
			strength    INTEGER NOT NULL,
			outcome     TEXT    NOT NULL,
			details     TEXT    NOT NULL,
			recorded_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_signals_symbol_recorded
			ON signals (symbol, interval, recorded_at);
	`)
	return err
}

// Record appends one fired signal with its outcome.
func (j *Journal) Record(d model.SignalDetails, outcome Outcome, at time.Time) (int64, error) {
	details, err := sonic.Marshal(d)
	if err != nil {
		return 0, errors.Wrap(err, "sqlite marshal details")
	}

	res, err := j.db.Exec(`
		INSERT INTO signals (symbol, interval, type, bar_ts, price, strength, outcome, details, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.Symbol, d.Interval, string(d.Type), d.Timestamp.UnixMilli(), d.Price, d.Strength,
		string(outcome), string(details), at.UnixMilli())
	if err != nil {
		return 0, errors.Wrap(err, "sqlite insert signal")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "sqlite last insert id")
	}
	j.log.Debug("journaled signal",
		zap.Int64("id", id),
		zap.String("type", string(d.Type)),
		zap.String("outcome", string(outcome)),
	)
	return id, nil
}

// UpdateOutcome changes the outcome of an existing entry, e.g. when a queued
// alert later fails delivery.
func (j *Journal) UpdateOutcome(id int64, outcome Outcome) error {
	res, err := j.db.Exec(`UPDATE signals SET outcome = ? WHERE id = ?`, string(outcome), id)
	if err != nil {
		return errors.Wrap(err, "sqlite update outcome")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Errorf("sqlite: no signal with id %d", id)
	}
	return nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
