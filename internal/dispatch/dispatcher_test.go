package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmcare/ventpanel/internal/db"
	"github.com/farmcare/ventpanel/internal/ledger"
	"github.com/farmcare/ventpanel/internal/model"
	"github.com/farmcare/ventpanel/internal/notify"
	"github.com/farmcare/ventpanel/internal/session"
)

type call struct {
	name    string
	target  string
	percent int
}

type fakeAPI struct {
	mu       sync.Mutex
	calls    []call
	modeErr  error
	posErr   error
	confirm  string
	blockAll chan struct{}
}

func (f *fakeAPI) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeAPI) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]call, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeAPI) SetMode(_ context.Context, mode string) (string, error) {
	f.record(call{name: "mode", target: mode})
	if f.modeErr != nil {
		return "", f.modeErr
	}
	if f.confirm != "" {
		return f.confirm, nil
	}
	return mode, nil
}

func (f *fakeAPI) SetVentPosition(_ context.Context, ventID, percent int) error {
	f.record(call{name: "vent", target: itoa(ventID), percent: percent})
	return f.posErr
}

func (f *fakeAPI) SetGroupPosition(_ context.Context, groupID string, percent int) error {
	f.record(call{name: "group", target: groupID, percent: percent})
	return f.posErr
}

func (f *fakeAPI) SetAllPosition(_ context.Context, percent int) error {
	if f.blockAll != nil {
		<-f.blockAll
	}
	f.record(call{name: "all", percent: percent})
	return f.posErr
}

func itoa(v int) string {
	return string(rune('0' + v))
}

func newDispatcher(api *fakeAPI, tracker *session.Tracker, refetch func()) *Dispatcher {
	return New(api, tracker, notify.NewCenter(time.Minute), nil, nil, zerolog.Nop(), 10*time.Millisecond, refetch)
}

func TestEnsureManualMode_NoopWhenAlreadyManual(t *testing.T) {
	api := &fakeAPI{}
	tracker := session.NewTracker()
	tracker.ApplyServerMode(model.ModeManual)
	d := newDispatcher(api, tracker, nil)

	require.NoError(t, d.EnsureManualMode(context.Background()))
	assert.Empty(t, api.Calls(), "no network call when already manual")
}

func TestEnsureManualMode_RecordsConfirmedModeOnly(t *testing.T) {
	api := &fakeAPI{confirm: "auto"}
	tracker := session.NewTracker()
	d := newDispatcher(api, tracker, nil)

	err := d.EnsureManualMode(context.Background())
	assert.Error(t, err, "controller refusing the switch is an error")
	assert.False(t, tracker.IsManual())
}

func TestCommand_AllScopeRefusedInAuto(t *testing.T) {
	api := &fakeAPI{}
	tracker := session.NewTracker()
	notices := notify.NewCenter(time.Minute)
	d := New(api, tracker, notices, nil, nil, zerolog.Nop(), 10*time.Millisecond, nil)

	err := d.Command(context.Background(), model.ScopeAll, "", 70)
	require.NoError(t, err, "local refusal is not an error")
	assert.Empty(t, api.Calls(), "refusal must not reach the network")

	active := notices.Active()
	require.Len(t, active, 1)
	assert.Equal(t, notify.LevelWarning, active[0].Level)
}

func TestCommand_VentScopePassesThroughInAuto(t *testing.T) {
	api := &fakeAPI{}
	d := newDispatcher(api, session.NewTracker(), nil)

	require.NoError(t, d.Command(context.Background(), model.ScopeVent, "3", 55))
	calls := api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, call{name: "vent", target: "3", percent: 55}, calls[0])
}

func TestCommand_GroupScope(t *testing.T) {
	api := &fakeAPI{}
	tracker := session.NewTracker()
	tracker.ApplyServerMode(model.ModeManual)
	d := newDispatcher(api, tracker, nil)

	require.NoError(t, d.Command(context.Background(), model.ScopeGroup, "south", 25))
	calls := api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, call{name: "group", target: "south", percent: 25}, calls[0])
}

func TestCommand_FailureSurfacesError(t *testing.T) {
	api := &fakeAPI{posErr: errors.New("boom")}
	tracker := session.NewTracker()
	tracker.ApplyServerMode(model.ModeManual)
	notices := notify.NewCenter(time.Minute)
	d := New(api, tracker, notices, nil, nil, zerolog.Nop(), 10*time.Millisecond, nil)

	err := d.Command(context.Background(), model.ScopeAll, "", 70)
	assert.Error(t, err)

	active := notices.Active()
	require.Len(t, active, 1)
	assert.Equal(t, notify.LevelError, active[0].Level)
}

func TestOpenAll_PromotesThenSendsOnce(t *testing.T) {
	api := &fakeAPI{}
	tracker := session.NewTracker()
	d := newDispatcher(api, tracker, nil)

	require.NoError(t, d.OpenAll(context.Background()))

	calls := api.Calls()
	require.Len(t, calls, 2, "exactly one mode change and one position command")
	assert.Equal(t, call{name: "mode", target: "manual"}, calls[0])
	assert.Equal(t, call{name: "all", percent: 100}, calls[1])
	assert.True(t, tracker.IsManual())
}

func TestCloseAll_SkipsModeChangeWhenManual(t *testing.T) {
	api := &fakeAPI{}
	tracker := session.NewTracker()
	tracker.ApplyServerMode(model.ModeManual)
	d := newDispatcher(api, tracker, nil)

	require.NoError(t, d.CloseAll(context.Background()))

	calls := api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, call{name: "all", percent: 0}, calls[0])
}

func TestBulk_RejectsConcurrentRuns(t *testing.T) {
	api := &fakeAPI{blockAll: make(chan struct{})}
	tracker := session.NewTracker()
	tracker.ApplyServerMode(model.ModeManual)
	d := newDispatcher(api, tracker, nil)

	done := make(chan error, 1)
	go func() { done <- d.OpenAll(context.Background()) }()

	// Wait for the first run to reach the blocking call.
	assert.Eventually(t, d.Busy, time.Second, time.Millisecond)

	err := d.CloseAll(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(api.blockAll)
	require.NoError(t, <-done)
	assert.False(t, d.Busy())
}

func TestIdempotencyKey_ContentAndBucket(t *testing.T) {
	v := 70.0
	at := time.Now()

	same := idempotencyKey("set_position", "vent", "3", &v, at)
	assert.Equal(t, same, idempotencyKey("set_position", "vent", "3", &v, at.Add(time.Nanosecond)),
		"identical command in the same window derives the same key")

	other := 80.0
	assert.NotEqual(t, same, idempotencyKey("set_position", "vent", "3", &other, at))
	assert.NotEqual(t, same, idempotencyKey("set_position", "vent", "4", &v, at))
	assert.NotEqual(t, same, idempotencyKey("set_position", "vent", "3", &v, at.Add(2*idempotencyWindow)),
		"a later window derives a fresh key")
}

func TestCommand_DoubleFireAuditsOnce(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	audit := ledger.New(database.DB)

	api := &fakeAPI{}
	tracker := session.NewTracker()
	tracker.ApplyServerMode(model.ModeManual)
	d := New(api, tracker, notify.NewCenter(time.Minute), audit, nil, zerolog.Nop(), 10*time.Millisecond, nil)

	require.NoError(t, d.Command(context.Background(), model.ScopeVent, "3", 55))
	require.NoError(t, d.Command(context.Background(), model.ScopeVent, "3", 55))

	assert.Len(t, api.Calls(), 2, "both commands still reach the controller")
	entries, err := audit.Recent(10)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "the double fire is one audit entry")
}

func TestCommand_SchedulesCoalescedRefetch(t *testing.T) {
	var mu sync.Mutex
	count := 0
	refetch := func() {
		mu.Lock()
		count++
		mu.Unlock()
	}

	api := &fakeAPI{}
	tracker := session.NewTracker()
	tracker.ApplyServerMode(model.ModeManual)
	d := newDispatcher(api, tracker, refetch)

	// Two quick commands must collapse into one re-fetch.
	require.NoError(t, d.Command(context.Background(), model.ScopeVent, "1", 10))
	require.NoError(t, d.Command(context.Background(), model.ScopeVent, "2", 20))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}
