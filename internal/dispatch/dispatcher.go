// Package dispatch turns operator gestures into controller commands. It owns
// the safety rules around control authority: all-vent slider moves are
// refused locally outside manual mode, bulk actions promote to manual first,
// and every successful command schedules a coalesced state re-fetch so the
// display converges on what the controller actually did.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmcare/ventpanel/internal/eventbus"
	"github.com/farmcare/ventpanel/internal/ledger"
	"github.com/farmcare/ventpanel/internal/model"
	"github.com/farmcare/ventpanel/internal/notify"
	"github.com/farmcare/ventpanel/internal/session"
)

// ErrBusy is returned when a bulk action is already in flight.
var ErrBusy = errors.New("bulk action already in progress")

// commandAPI is the slice of the controller client the dispatcher needs.
type commandAPI interface {
	SetMode(ctx context.Context, mode string) (string, error)
	SetVentPosition(ctx context.Context, ventID, percent int) error
	SetGroupPosition(ctx context.Context, groupID string, percent int) error
	SetAllPosition(ctx context.Context, percent int) error
}

// Dispatcher sends position and mode commands.
type Dispatcher struct {
	api     commandAPI
	session *session.Tracker
	notices *notify.Center
	audit   *ledger.Ledger
	bus     *eventbus.Bus
	log     zerolog.Logger

	refetch      func()
	refetchDelay time.Duration

	bulkBusy atomic.Bool

	timerMu      sync.Mutex
	refetchTimer *time.Timer
}

const defaultRefetchDelay = time.Second

// idempotencyWindow buckets identical commands: a double-fired command inside
// one window derives the same audit key, so the ledger records it once.
const idempotencyWindow = 2 * time.Second

// idempotencyKey derives the audit key from the command content and a coarse
// time bucket.
func idempotencyKey(command, scope, target string, value *float64, at time.Time) string {
	v := "-"
	if value != nil {
		v = strconv.FormatFloat(*value, 'f', -1, 64)
	}
	bucket := at.UnixNano() / int64(idempotencyWindow)
	return fmt.Sprintf("%s|%s|%s|%s|%d", command, scope, target, v, bucket)
}

// New creates a dispatcher. audit and bus may be nil; refetch is called after
// the coalescing delay whenever a command succeeded.
func New(api commandAPI, tracker *session.Tracker, notices *notify.Center, audit *ledger.Ledger, bus *eventbus.Bus, logger zerolog.Logger, refetchDelay time.Duration, refetch func()) *Dispatcher {
	if refetchDelay <= 0 {
		refetchDelay = defaultRefetchDelay
	}
	return &Dispatcher{
		api:          api,
		session:      tracker,
		notices:      notices,
		audit:        audit,
		bus:          bus,
		log:          logger,
		refetch:      refetch,
		refetchDelay: refetchDelay,
	}
}

// Busy reports whether a bulk action is in flight. The UI disables the bulk
// buttons while this is true.
func (d *Dispatcher) Busy() bool {
	return d.bulkBusy.Load()
}

// EnsureManualMode promotes the controller to manual authority. It is
// idempotent: when the tracker already shows manual, no request is made.
// Only the server-confirmed mode is ever recorded.
func (d *Dispatcher) EnsureManualMode(ctx context.Context) error {
	if d.session.IsManual() {
		return nil
	}
	confirmed, err := d.api.SetMode(ctx, string(model.ModeManual))
	if err != nil {
		return fmt.Errorf("switch to manual mode: %w", err)
	}
	d.session.ApplyServerMode(model.Mode(confirmed))
	if !d.session.IsManual() {
		return fmt.Errorf("controller stayed in %s mode", confirmed)
	}
	d.log.Info().Str("mode", confirmed).Msg("Control authority switched")
	return nil
}

// SetMode switches control authority explicitly and re-fetches state so the
// display picks up whatever the automation does next.
func (d *Dispatcher) SetMode(ctx context.Context, mode model.Mode) error {
	confirmed, err := d.api.SetMode(ctx, string(mode))
	if err != nil {
		d.notices.Error("Mode change failed: " + err.Error())
		return err
	}
	d.session.ApplyServerMode(model.Mode(confirmed))
	d.log.Info().Str("mode", confirmed).Msg("Control authority switched")
	d.notices.Success("Mode: " + confirmed)
	d.commandSucceeded("set_mode", "", confirmed, nil)
	return nil
}

// Command sends one slider move. The target is the vent id for ScopeVent and
// the group id for ScopeGroup; it is ignored for ScopeAll. An all-scope move
// outside manual mode is refused locally with a warning and no network call;
// vent and group moves always go out and the controller decides.
func (d *Dispatcher) Command(ctx context.Context, scope model.Scope, target string, percent int) error {
	if scope == model.ScopeAll && !d.session.IsManual() {
		d.notices.Warn("Switch to manual mode to move all vents")
		d.recordRefused("set_position", scope, target, percent)
		return nil
	}

	var err error
	switch scope {
	case model.ScopeVent:
		var ventID int
		ventID, err = strconv.Atoi(target)
		if err != nil {
			return fmt.Errorf("bad vent id %q: %w", target, err)
		}
		err = d.api.SetVentPosition(ctx, ventID, percent)
	case model.ScopeGroup:
		err = d.api.SetGroupPosition(ctx, target, percent)
	case model.ScopeAll:
		err = d.api.SetAllPosition(ctx, percent)
	default:
		return fmt.Errorf("unknown command scope %q", scope)
	}

	if err != nil {
		d.notices.Error("Position command failed: " + err.Error())
		d.recordOutcome(ledger.Entry{
			Command: "set_position",
			Scope:   string(scope),
			Target:  target,
			Value:   floatPtr(percent),
			Outcome: ledger.OutcomeFailed,
			Detail:  err.Error(),
		})
		return err
	}

	v := float64(percent)
	d.commandSucceeded("set_position", string(scope), target, &v)
	return nil
}

// OpenAll drives every vent fully open, promoting to manual first.
func (d *Dispatcher) OpenAll(ctx context.Context) error {
	return d.bulk(ctx, 100, "Opening all vents")
}

// CloseAll drives every vent fully closed, promoting to manual first.
func (d *Dispatcher) CloseAll(ctx context.Context) error {
	return d.bulk(ctx, 0, "Closing all vents")
}

// bulk runs the two-step sequence: at most one mode change, then exactly one
// all-vents position command. Concurrent invocations are rejected.
func (d *Dispatcher) bulk(ctx context.Context, percent int, message string) error {
	if !d.bulkBusy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer d.bulkBusy.Store(false)

	if err := d.EnsureManualMode(ctx); err != nil {
		d.notices.Error(err.Error())
		d.recordOutcome(ledger.Entry{
			Command: "bulk_position",
			Scope:   string(model.ScopeAll),
			Value:   floatPtr(percent),
			Outcome: ledger.OutcomeFailed,
			Detail:  err.Error(),
		})
		return err
	}

	if err := d.api.SetAllPosition(ctx, percent); err != nil {
		d.notices.Error("Bulk command failed: " + err.Error())
		d.recordOutcome(ledger.Entry{
			Command: "bulk_position",
			Scope:   string(model.ScopeAll),
			Value:   floatPtr(percent),
			Outcome: ledger.OutcomeFailed,
			Detail:  err.Error(),
		})
		return err
	}

	d.notices.Success(message)
	v := float64(percent)
	d.commandSucceeded("bulk_position", string(model.ScopeAll), "", &v)
	return nil
}

// commandSucceeded records the audit entry, publishes the bus event and
// schedules the coalesced re-fetch.
func (d *Dispatcher) commandSucceeded(command, scope, target string, value *float64) {
	d.recordOutcome(ledger.Entry{
		Command:        command,
		Scope:          scope,
		Target:         target,
		Value:          value,
		Outcome:        ledger.OutcomeSent,
		IdempotencyKey: idempotencyKey(command, scope, target, value, time.Now()),
	})
	if d.bus != nil {
		d.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeCommandSent,
			Data: map[string]interface{}{
				"command": command,
				"scope":   scope,
				"target":  target,
			},
		})
	}
	d.scheduleRefetch()
}

func (d *Dispatcher) recordRefused(command string, scope model.Scope, target string, percent int) {
	d.log.Warn().
		Str("command", command).
		Str("scope", string(scope)).
		Int("percent", percent).
		Msg("Command refused outside manual mode")
	d.recordOutcome(ledger.Entry{
		Command: command,
		Scope:   string(scope),
		Target:  target,
		Value:   floatPtr(percent),
		Outcome: ledger.OutcomeRefused,
		Detail:  "auto mode",
	})
}

func (d *Dispatcher) recordOutcome(e ledger.Entry) {
	if d.audit == nil {
		return
	}
	if err := d.audit.Record(e); err != nil {
		d.log.Error().Err(err).Str("command", e.Command).Msg("Failed to record command in ledger")
	}
}

// scheduleRefetch coalesces: a command landing while a re-fetch is pending
// pushes the single pending timer out instead of stacking another.
func (d *Dispatcher) scheduleRefetch() {
	if d.refetch == nil {
		return
	}
	d.timerMu.Lock()
	defer d.timerMu.Unlock()
	if d.refetchTimer != nil && d.refetchTimer.Reset(d.refetchDelay) {
		return
	}
	d.refetchTimer = time.AfterFunc(d.refetchDelay, d.refetch)
}

func floatPtr(percent int) *float64 {
	v := float64(percent)
	return &v
}
