package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/farmcare/ventpanel/internal/config"
	"github.com/farmcare/ventpanel/internal/controller"
	"github.com/farmcare/ventpanel/internal/dashboard"
	"github.com/farmcare/ventpanel/internal/db"
	"github.com/farmcare/ventpanel/internal/dispatch"
	"github.com/farmcare/ventpanel/internal/editor"
	"github.com/farmcare/ventpanel/internal/eventbus"
	"github.com/farmcare/ventpanel/internal/kv"
	"github.com/farmcare/ventpanel/internal/ledger"
	"github.com/farmcare/ventpanel/internal/notify"
	"github.com/farmcare/ventpanel/internal/push"
	"github.com/farmcare/ventpanel/internal/session"
	"github.com/farmcare/ventpanel/internal/state"
	"github.com/farmcare/ventpanel/internal/testmode"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Tokens *kv.TokenStore
	Bus    *eventbus.Bus

	// Controller client and caches
	Client  *controller.Client
	Store   *state.Store
	Session *session.Tracker
	Notices *notify.Center

	// Operator surfaces
	Dispatcher *dispatch.Dispatcher
	Form       *dashboard.Form
	Editor     *editor.Editor
	Test       *testmode.Manager

	// Pollers and outward surfaces
	State   *StateService
	History *HistoryService
	Update  *UpdateService
	Push    *push.Broadcaster
	Health  *HealthService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	// Initialize command ledger and persisted settings
	s.Ledger = ledger.New(database.DB)
	s.Tokens = kv.NewTokenStore(kv.NewBucket(database.DB, "settings"))

	// Initialize event bus
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	// Initialize controller client with the persisted token wired in
	s.Client = controller.NewClient(
		cfg.Controller.BaseURL,
		cfg.Controller.Timeout.Duration(),
		cfg.Controller.RateLimitRPS,
	)
	s.Client.SetTokenSource(s.Tokens.Token)

	// Initialize local state
	s.Store = state.NewStore()
	s.Session = session.NewTracker()
	s.Notices = notify.NewCenter(cfg.Notices.TTL.Duration())
	s.Notices.SetSink(func(n notify.Notice) {
		s.Bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeNotice,
			Data: map[string]interface{}{
				"level": string(n.Level),
				"text":  n.Text,
			},
		})
	})

	// Initialize operator surfaces
	s.Form = dashboard.NewForm(s.Client, s.Session, s.Notices, log.With().Str("component", "form").Logger())
	s.Editor = editor.New(s.Client, log.With().Str("component", "editor").Logger())
	s.Test = testmode.NewManager(s.Client, s.Notices, log.With().Str("component", "testmode").Logger())

	// Initialize pollers before the dispatcher so its re-fetch hook can kick
	// the state loop
	s.State = NewStateService(s.Client, s.Store, s.Session, s.Form, s.Bus, cfg.Poll.State.Duration())
	s.History = NewHistoryService(s.Client, s.Store, s.Bus, cfg.Poll.History.Duration(), cfg.History.Limit)
	s.Update = NewUpdateService(s.Client, s.Store, s.Notices, s.Bus, cfg.Poll.UpdateCheck.Duration())

	s.Dispatcher = dispatch.New(
		s.Client,
		s.Session,
		s.Notices,
		s.Ledger,
		s.Bus,
		log.With().Str("component", "dispatch").Logger(),
		cfg.Poll.CommandRefetch.Duration(),
		s.State.Refetch,
	)

	// Event stream for dashboard clients; the broadcaster is the consumer
	// end of the bus
	s.Push = push.NewBroadcaster(log.With().Str("component", "push").Logger())
	s.Push.Attach(s.Bus)

	// Initialize health service
	s.Health = NewHealthService(cfg, s.State, s.Push, s.Ledger)

	return s, nil
}

// Start starts all services in the correct order.
func (s *Services) Start(ctx context.Context) error {
	s.State.Start(ctx)
	s.History.Start(ctx)
	s.Update.Start(ctx)
	s.Health.Start(ctx)

	go s.ledgerJanitor(ctx)

	return nil
}

// ledgerJanitor trims old command ledger entries on the configured cadence.
func (s *Services) ledgerJanitor(ctx context.Context) {
	interval := s.cfg.Ledger.CleanupInterval.Duration()
	retention := time.Duration(s.cfg.Ledger.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Ledger.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Ledger cleanup failed")
				continue
			}
			if removed > 0 {
				log.Debug().Int64("removed", removed).Msg("Ledger cleanup done")
			}
			if _, err := kv.CleanupExpired(s.DB.DB); err != nil {
				log.Error().Err(err).Msg("KV cleanup failed")
			}
		}
	}
}

// ClearToken removes the persisted admin token.
func (s *Services) ClearToken() error {
	return s.Tokens.Clear()
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Bus != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		s.Bus.Close(shutdownCtx)
		cancel()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
