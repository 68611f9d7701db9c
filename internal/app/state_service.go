package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/farmcare/ventpanel/internal/controller"
	"github.com/farmcare/ventpanel/internal/dashboard"
	"github.com/farmcare/ventpanel/internal/eventbus"
	"github.com/farmcare/ventpanel/internal/session"
	"github.com/farmcare/ventpanel/internal/state"
)

// StateService polls the installation snapshot. Each successful poll updates
// the snapshot store, records the server-confirmed mode and refreshes the
// control form (which protects itself while dirty).
type StateService struct {
	client   *controller.Client
	store    *state.Store
	session  *session.Tracker
	form     *dashboard.Form
	bus      *eventbus.Bus
	interval time.Duration

	kick   chan struct{}
	polled atomic.Bool
}

func NewStateService(client *controller.Client, store *state.Store, tracker *session.Tracker, form *dashboard.Form, bus *eventbus.Bus, interval time.Duration) *StateService {
	return &StateService{
		client:   client,
		store:    store,
		session:  tracker,
		form:     form,
		bus:      bus,
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
}

// Start launches the poll loop.
func (s *StateService) Start(ctx context.Context) {
	go s.run(ctx)
}

// Refetch requests an immediate out-of-cycle poll. Requests arriving while
// one is already queued collapse into it.
func (s *StateService) Refetch() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Polled reports whether at least one poll succeeded. The readiness probe
// uses this.
func (s *StateService) Polled() bool {
	return s.polled.Load()
}

func (s *StateService) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		case <-s.kick:
			s.poll(ctx)
		}
	}
}

func (s *StateService) poll(ctx context.Context) {
	st, err := s.client.State(ctx)
	if err != nil {
		// Keep the previous snapshot; the dashboard shows stale data with
		// its fetch timestamp rather than going blank.
		log.Warn().Err(err).Msg("State poll failed")
		return
	}

	s.store.SetState(st)
	s.session.ApplyServerMode(st.Mode)
	s.form.Refresh(st.Config)
	s.polled.Store(true)

	s.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeStateRefreshed,
		Data: map[string]interface{}{
			"mode":  string(st.Mode),
			"vents": len(st.Vents),
		},
	})
}
