package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/farmcare/ventpanel/internal/controller"
	"github.com/farmcare/ventpanel/internal/eventbus"
	"github.com/farmcare/ventpanel/internal/notify"
	"github.com/farmcare/ventpanel/internal/state"
)

// UpdateService polls the controller's updater. A missing updater (404/503)
// keeps the surface hidden without noise; a newly seen version produces
// exactly one notice until the version changes again.
type UpdateService struct {
	client   *controller.Client
	store    *state.Store
	notices  *notify.Center
	bus      *eventbus.Bus
	interval time.Duration

	mu       sync.Mutex
	notified string
}

func NewUpdateService(client *controller.Client, store *state.Store, notices *notify.Center, bus *eventbus.Bus, interval time.Duration) *UpdateService {
	return &UpdateService{
		client:   client,
		store:    store,
		notices:  notices,
		bus:      bus,
		interval: interval,
	}
}

// Start launches the poll loop.
func (s *UpdateService) Start(ctx context.Context) {
	go s.run(ctx)
}

// CheckNow triggers an explicit update check (admin token required).
func (s *UpdateService) CheckNow(ctx context.Context) error {
	status, err := s.client.CheckUpdate(ctx)
	if err != nil {
		if err == controller.ErrMissingToken {
			s.notices.Warn("Set the admin token to check for updates")
			return nil
		}
		s.notices.Error("Update check failed: " + err.Error())
		return err
	}
	s.apply(status)
	return nil
}

// RunNow installs the pending update (admin token required).
func (s *UpdateService) RunNow(ctx context.Context) error {
	status, err := s.client.RunUpdate(ctx)
	if err != nil {
		if err == controller.ErrMissingToken {
			s.notices.Warn("Set the admin token to run updates")
			return nil
		}
		s.notices.Error("Update failed: " + err.Error())
		return err
	}
	s.apply(status)
	s.notices.Info("Update started; the controller may restart")
	return nil
}

func (s *UpdateService) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *UpdateService) poll(ctx context.Context) {
	status, err := s.client.UpdateStatus(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Update status poll failed")
		return
	}
	s.apply(status)
}

func (s *UpdateService) apply(status *controller.UpdateStatus) {
	s.store.SetUpdateStatus(status)
	if status.Hidden() || !status.Available || status.LatestVersion == "" {
		return
	}

	s.mu.Lock()
	already := s.notified == status.LatestVersion
	if !already {
		s.notified = status.LatestVersion
	}
	s.mu.Unlock()
	if already {
		return
	}

	s.notices.Info("Controller update available: " + status.LatestVersion)
	s.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeUpdateAvailable,
		Data: map[string]interface{}{
			"current": status.CurrentVersion,
			"latest":  status.LatestVersion,
		},
	})
}
