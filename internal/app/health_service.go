package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/farmcare/ventpanel/internal/config"
	"github.com/farmcare/ventpanel/internal/ledger"
)

// HealthService provides HTTP health check endpoints, the event stream and
// the command audit listing.
type HealthService struct {
	cfg    *config.Config
	state  *StateService
	events http.Handler
	audit  *ledger.Ledger
	server *http.Server
}

// NewHealthService creates a new HealthService. events and audit may be nil;
// the corresponding endpoints are simply not mounted.
func NewHealthService(cfg *config.Config, state *StateService, events http.Handler, audit *ledger.Ledger) *HealthService {
	return &HealthService{
		cfg:    cfg,
		state:  state,
		events: events,
		audit:  audit,
	}
}

// Start begins the health check server if enabled.
func (s *HealthService) Start(ctx context.Context) {
	if !s.cfg.Healthcheck.Enabled {
		return
	}

	go s.run(ctx)
}

func (s *HealthService) run(ctx context.Context) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Healthcheck.GetHost(), s.cfg.Healthcheck.GetPort())

	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Ready means the first state poll landed; before that the panel has
	// nothing to show
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s.state != nil && !s.state.Polled() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"waiting_for_controller"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	if s.events != nil {
		mux.Handle("/events", s.events)
	}
	if s.audit != nil {
		mux.HandleFunc("/commands", s.handleCommands)
	}

	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	log.Info().Str("addr", addr).Msg("Starting health check server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Health check server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Health check server error")
	}
}

const (
	commandsLimitDefault = 50
	commandsLimitMax     = 500
)

// handleCommands lists recent command audit entries, newest first. Optional
// ?command= filters by command type, ?limit= bounds the page.
func (s *HealthService) handleCommands(w http.ResponseWriter, r *http.Request) {
	limit := commandsLimitDefault
	if text := r.URL.Query().Get("limit"); text != "" {
		v, err := strconv.Atoi(text)
		if err != nil || v < 1 {
			http.Error(w, `{"error":"bad limit"}`, http.StatusBadRequest)
			return
		}
		limit = v
	}
	if limit > commandsLimitMax {
		limit = commandsLimitMax
	}

	var entries []*ledger.Entry
	var err error
	if command := r.URL.Query().Get("command"); command != "" {
		entries, err = s.audit.RecentByCommand(command, limit)
	} else {
		entries, err = s.audit.Recent(limit)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to read command ledger")
		http.Error(w, `{"error":"ledger read failed"}`, http.StatusInternalServerError)
		return
	}

	type row struct {
		Command   string   `json:"command"`
		Scope     string   `json:"scope,omitempty"`
		Target    string   `json:"target,omitempty"`
		Value     *float64 `json:"value,omitempty"`
		Outcome   string   `json:"outcome"`
		Detail    string   `json:"detail,omitempty"`
		Timestamp string   `json:"timestamp"`
	}
	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, row{
			Command:   e.Command,
			Scope:     e.Scope,
			Target:    e.Target,
			Value:     e.Value,
			Outcome:   string(e.Outcome),
			Detail:    e.Detail,
			Timestamp: e.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}
