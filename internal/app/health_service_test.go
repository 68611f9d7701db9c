package app

import (
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmcare/ventpanel/internal/config"
	"github.com/farmcare/ventpanel/internal/db"
	"github.com/farmcare/ventpanel/internal/ledger"
)

func newAuditService(t *testing.T) (*HealthService, *ledger.Ledger) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	audit := ledger.New(database.DB)
	return NewHealthService(&config.Config{}, nil, nil, audit), audit
}

func TestHandleCommandsListsRecent(t *testing.T) {
	s, audit := newAuditService(t)
	v := 100.0
	require.NoError(t, audit.Record(ledger.Entry{Command: "bulk_position", Scope: "all", Value: &v, Outcome: ledger.OutcomeSent}))
	require.NoError(t, audit.Record(ledger.Entry{Command: "set_mode", Target: "manual", Outcome: ledger.OutcomeSent}))

	rec := httptest.NewRecorder()
	s.handleCommands(rec, httptest.NewRequest("GET", "/commands", nil))
	require.Equal(t, 200, rec.Code)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "set_mode", rows[0]["command"], "newest first")
}

func TestHandleCommandsFilterAndLimit(t *testing.T) {
	s, audit := newAuditService(t)
	require.NoError(t, audit.Record(ledger.Entry{Command: "set_position", Outcome: ledger.OutcomeSent}))
	require.NoError(t, audit.Record(ledger.Entry{Command: "set_mode", Outcome: ledger.OutcomeSent}))

	rec := httptest.NewRecorder()
	s.handleCommands(rec, httptest.NewRequest("GET", "/commands?command=set_position", nil))
	require.Equal(t, 200, rec.Code)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "set_position", rows[0]["command"])

	rec = httptest.NewRecorder()
	s.handleCommands(rec, httptest.NewRequest("GET", "/commands?limit=nope", nil))
	assert.Equal(t, 400, rec.Code)
}
