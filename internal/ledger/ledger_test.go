package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmcare/ventpanel/internal/db"
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return New(database.DB)
}

func TestLedgerRecordAndRecent(t *testing.T) {
	l := newLedger(t)
	v := 100.0

	require.NoError(t, l.Record(Entry{Command: "bulk_position", Scope: "all", Value: &v, Outcome: OutcomeSent, IdempotencyKey: "k1"}))
	require.NoError(t, l.Record(Entry{Command: "set_position", Scope: "vent", Target: "3", Outcome: OutcomeFailed, Detail: "timeout"}))

	entries, err := l.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first on equal timestamps by rowid.
	assert.Equal(t, "set_position", entries[0].Command)
	assert.Equal(t, OutcomeFailed, entries[0].Outcome)
	assert.Equal(t, "timeout", entries[0].Detail)
	assert.Equal(t, "bulk_position", entries[1].Command)
	require.NotNil(t, entries[1].Value)
	assert.Equal(t, 100.0, *entries[1].Value)
}

func TestLedgerIdempotency_FirstWriterWins(t *testing.T) {
	l := newLedger(t)

	require.NoError(t, l.Record(Entry{Command: "set_mode", Outcome: OutcomeSent, IdempotencyKey: "same"}))
	require.NoError(t, l.Record(Entry{Command: "set_mode", Outcome: OutcomeSent, IdempotencyKey: "same"}))

	entries, err := l.Recent(10)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "retry with the same key records once")
	assert.Equal(t, "same", entries[0].IdempotencyKey)
}

func TestLedgerEmptyKeysAreNotDeduped(t *testing.T) {
	l := newLedger(t)

	require.NoError(t, l.Record(Entry{Command: "set_mode", Outcome: OutcomeSent}))
	require.NoError(t, l.Record(Entry{Command: "set_mode", Outcome: OutcomeSent}))

	entries, err := l.Recent(10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLedgerRefusedEntriesAreNotDeduped(t *testing.T) {
	l := newLedger(t)

	require.NoError(t, l.Record(Entry{Command: "set_position", Outcome: OutcomeRefused, IdempotencyKey: "same"}))
	require.NoError(t, l.Record(Entry{Command: "set_position", Outcome: OutcomeRefused, IdempotencyKey: "same"}))

	entries, err := l.Recent(10)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "only successful sends dedupe on the key")
}

func TestLedgerRecentByCommand(t *testing.T) {
	l := newLedger(t)
	require.NoError(t, l.Record(Entry{Command: "set_mode", Outcome: OutcomeSent}))
	require.NoError(t, l.Record(Entry{Command: "set_position", Outcome: OutcomeSent}))

	entries, err := l.RecentByCommand("set_mode", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "set_mode", entries[0].Command)
}

func TestLedgerDeleteOlderThan(t *testing.T) {
	l := newLedger(t)
	require.NoError(t, l.Record(Entry{Command: "old", Outcome: OutcomeSent, Timestamp: time.Now().Add(-48 * time.Hour)}))
	require.NoError(t, l.Record(Entry{Command: "new", Outcome: OutcomeSent}))

	removed, err := l.DeleteOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	entries, err := l.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].Command)
}
