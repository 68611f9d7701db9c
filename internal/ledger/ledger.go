// Package ledger provides an append-only audit trail of every command the
// panel sent to the controller. The trail answers "which operator action
// moved the vents at 14:03" months later, so entries are never rewritten.
package ledger

import (
	"database/sql"
	"fmt"
	"time"
)

// Outcome records how a command attempt ended.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeFailed  Outcome = "failed"
	OutcomeRefused Outcome = "refused"
)

// Entry is a single recorded command.
type Entry struct {
	ID             int64
	Command        string
	Scope          string
	Target         string
	Value          *float64
	Outcome        Outcome
	Detail         string
	IdempotencyKey string
	Timestamp      time.Time
}

// Ledger appends and queries command history.
type Ledger struct {
	db *sql.DB
}

// New creates a Ledger using the provided database connection.
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Record appends one command entry. For OutcomeSent with a non-empty
// idempotency key the insert is first-writer-wins: a retried command that
// already succeeded is silently ignored (enforced by the unique partial
// index on idempotency_key).
func (l *Ledger) Record(e Entry) error {
	now := time.Now().UTC().Unix()
	if !e.Timestamp.IsZero() {
		now = e.Timestamp.UTC().Unix()
	}

	insertSQL := `INSERT INTO command_ledger (command, scope, target, value, outcome, detail, idempotency_key, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if e.Outcome == OutcomeSent && e.IdempotencyKey != "" {
		insertSQL = `INSERT OR IGNORE INTO command_ledger (command, scope, target, value, outcome, detail, idempotency_key, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	}

	_, err := l.db.Exec(insertSQL,
		e.Command, e.Scope, e.Target, e.Value, string(e.Outcome), e.Detail, e.IdempotencyKey, now)
	return err
}

// Recent returns the newest entries first.
func (l *Ledger) Recent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, command, scope, target, value, outcome, detail, idempotency_key, timestamp
		FROM command_ledger
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// RecentByCommand returns the newest entries of one command type.
func (l *Ledger) RecentByCommand(command string, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, command, scope, target, value, outcome, detail, idempotency_key, timestamp
		FROM command_ledger
		WHERE command = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, command, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the retention window.
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	result, err := l.db.Exec(`
		DELETE FROM command_ledger WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var scope, target, detail, idempotencyKey sql.NullString
		var value sql.NullFloat64
		var outcome string
		var timestamp int64

		err := rows.Scan(
			&entry.ID, &entry.Command, &scope, &target, &value, &outcome, &detail, &idempotencyKey, &timestamp,
		)
		if err != nil {
			return nil, err
		}

		entry.Outcome = Outcome(outcome)
		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		if scope.Valid {
			entry.Scope = scope.String
		}
		if target.Valid {
			entry.Target = target.String
		}
		if detail.Valid {
			entry.Detail = detail.String
		}
		if idempotencyKey.Valid {
			entry.IdempotencyKey = idempotencyKey.String
		}
		if value.Valid {
			v := value.Float64
			entry.Value = &v
		}

		entries = append(entries, &entry)
	}

	if len(entries) == 0 {
		return entries, rows.Err()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger rows: %w", err)
	}
	return entries, nil
}
