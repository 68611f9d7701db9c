package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/farmcare/ventpanel/internal/controller"
	"github.com/farmcare/ventpanel/internal/eventbus"
	"github.com/farmcare/ventpanel/internal/state"
)

// History fetch limits. The controller caps at 500 per request; below 10 the
// chart is useless.
const (
	historyLimitMin     = 10
	historyLimitMax     = 500
	historyLimitDefault = 100
)

// ClampHistoryLimit folds any requested sample count into the supported range.
func ClampHistoryLimit(limit int) int {
	if limit <= 0 {
		return historyLimitDefault
	}
	if limit < historyLimitMin {
		return historyLimitMin
	}
	if limit > historyLimitMax {
		return historyLimitMax
	}
	return limit
}

// HistoryService polls the sensor history on a slow cadence.
type HistoryService struct {
	client   *controller.Client
	store    *state.Store
	bus      *eventbus.Bus
	interval time.Duration
	limit    int
}

func NewHistoryService(client *controller.Client, store *state.Store, bus *eventbus.Bus, interval time.Duration, limit int) *HistoryService {
	return &HistoryService{
		client:   client,
		store:    store,
		bus:      bus,
		interval: interval,
		limit:    ClampHistoryLimit(limit),
	}
}

// Start launches the poll loop.
func (s *HistoryService) Start(ctx context.Context) {
	go s.run(ctx)
}

// FetchNow performs one immediate fetch with an operator-chosen limit, e.g.
// from the refresh button next to the history view.
func (s *HistoryService) FetchNow(ctx context.Context, limit int) ([]controller.HistoryEntry, error) {
	entries, err := s.client.History(ctx, ClampHistoryLimit(limit))
	if err != nil {
		return nil, err
	}
	s.store.SetHistory(entries)
	s.publish(len(entries))
	return entries, nil
}

func (s *HistoryService) run(ctx context.Context) {
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

func (s *HistoryService) poll(ctx context.Context) {
	entries, err := s.client.History(ctx, s.limit)
	if err != nil {
		log.Warn().Err(err).Msg("History poll failed")
		return
	}
	s.store.SetHistory(entries)
	s.publish(len(entries))
}

func (s *HistoryService) publish(count int) {
	s.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeHistoryRefreshed,
		Data: map[string]interface{}{"entries": count},
	})
}
