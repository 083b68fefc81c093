package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/galleralive/realtime/internal/config"
	"github.com/galleralive/realtime/internal/eventbus"
	"github.com/galleralive/realtime/internal/logging"
	"github.com/galleralive/realtime/pkg/dispatch"
	"github.com/galleralive/realtime/pkg/domain"
	"github.com/galleralive/realtime/pkg/negotiation"
	"github.com/galleralive/realtime/pkg/realtime"
	"github.com/galleralive/realtime/pkg/transport/sse"
	ws "github.com/galleralive/realtime/pkg/transport/websocket"
)

func main() {
	configPath := flag.String("config", "", "path to config file (json or yaml)")
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{Path: *configPath})
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := eventbus.NewInMemoryBus(1024)
	bus.Start(ctx)
	defer bus.Stop()

	registry := realtime.NewRegistry(logger)
	hub := realtime.NewHub(registry, bus, logger, realtime.HubOptions{
		HistoryCapacity: cfg.Hub.HistoryCapacity,
		HistoryMaxAge:   cfg.Hub.HistoryMaxAge,
		ReplayCount:     cfg.Hub.ReplayCount,
	})

	store := negotiation.NewStore(bus, logger, negotiation.StoreOptions{
		MaxPending:     cfg.Proposal.MaxPending,
		DefaultTimeout: cfg.Proposal.DefaultTimeout,
		GraceDelay:     cfg.Proposal.GraceDelay,
	})
	defer store.Stop()

	notifier := negotiation.NewNotifier(hub, logger)
	notifier.Attach(bus)

	monitor := realtime.NewMonitor(hub, logger, realtime.MonitorOptions{
		Interval: cfg.Liveness.Interval,
		Timeout:  cfg.Liveness.Timeout,
	})
	monitor.Start(ctx)
	defer monitor.Stop()

	dispatcher := dispatch.NewDispatcher(hub, logger)
	collector := realtime.NewCollector(registry, store)

	// stand-in for the platform session service: identity arrives as query
	// parameters, already validated upstream
	auth := domain.AuthenticatorFunc(func(r *http.Request) (domain.Identity, error) {
		return domain.Identity{
			UserID: r.URL.Query().Get("user"),
			Role:   r.URL.Query().Get("role"),
		}, nil
	})

	wsServer := ws.NewServer(
		ws.WithHub(hub),
		ws.WithAuthenticator(auth),
		ws.WithRouter(negotiation.NewRouter(store, logger)),
		ws.WithPendingSource(store),
		ws.WithLogger(logger),
	)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Method(http.MethodGet, "/ws", wsServer)
	r.Method(http.MethodGet, "/events", sse.NewHandler(hub, auth, logger))

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(collector.Snapshot())
	})

	// internal seam for the betting domain logic
	r.Route("/internal", func(r chi.Router) {
		r.Post("/fights/{fightID}/status", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Previous string `json:"previous"`
				Status   string `json:"status"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			sent := dispatcher.FightStatusChanged(req.Context(), chi.URLParam(req, "fightID"), body.Previous, body.Status)
			json.NewEncoder(w).Encode(map[string]int{"sent": sent})
		})

		r.Post("/bets", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				BetID   string  `json:"betId"`
				FightID string  `json:"fightId"`
				UserID  string  `json:"userId"`
				Amount  float64 `json:"amount"`
				Side    string  `json:"side"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			sent := dispatcher.BetPlaced(req.Context(), body.BetID, body.FightID, body.UserID, body.Amount, body.Side)
			json.NewEncoder(w).Encode(map[string]int{"sent": sent})
		})

		r.Post("/bets/matched", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				BetID        string  `json:"betId"`
				MatchedBetID string  `json:"matchedBetId"`
				FightID      string  `json:"fightId"`
				Amount       float64 `json:"amount"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			sent := dispatcher.BetMatched(req.Context(), body.BetID, body.MatchedBetID, body.FightID, body.Amount)
			json.NewEncoder(w).Encode(map[string]int{"sent": sent})
		})

		r.Post("/fights/{fightID}/odds", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Red     float64 `json:"red"`
				Blue    float64 `json:"blue"`
				Version int     `json:"version"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			sent := dispatcher.OddsUpdated(req.Context(), chi.URLParam(req, "fightID"), body.Red, body.Blue, body.Version)
			json.NewEncoder(w).Encode(map[string]int{"sent": sent})
		})

		r.Post("/notices", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Message  string `json:"message"`
				Priority string `json:"priority"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			priority := domain.Priority(body.Priority)
			if priority == "" {
				priority = domain.PriorityMedium
			}
			sent := dispatcher.SystemNotice(req.Context(), body.Message, priority)
			json.NewEncoder(w).Encode(map[string]int{"sent": sent})
		})

		r.Post("/payments", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				PaymentID string  `json:"paymentId"`
				UserID    string  `json:"userId"`
				Amount    float64 `json:"amount"`
				Status    string  `json:"status"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			sent := dispatcher.PaymentProcessed(req.Context(), body.PaymentID, body.UserID, body.Amount, body.Status)
			json.NewEncoder(w).Encode(map[string]int{"sent": sent})
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	// no server-wide WriteTimeout: event streams are long-lived. Stream
	// writers set per-write deadlines and dead clients are evicted by the
	// liveness monitor.
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
		hub.Stop()
	}()

	logger.Info("server starting", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
