package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dahanmed/careops/internal/care"
	careapi "github.com/dahanmed/careops/internal/care/api"
	careinfra "github.com/dahanmed/careops/internal/care/infrastructure"
	"github.com/dahanmed/careops/internal/emr"
	"github.com/dahanmed/careops/internal/realtime"
	"github.com/dahanmed/careops/internal/report"
	"github.com/dahanmed/careops/internal/shared/auth"
	"github.com/dahanmed/careops/internal/shared/config"
	"github.com/dahanmed/careops/internal/shared/database"
	"github.com/dahanmed/careops/internal/shared/events"
	"github.com/dahanmed/careops/internal/shared/logging"
	"github.com/dahanmed/careops/internal/shared/metrics"
	secmiddleware "github.com/dahanmed/careops/internal/shared/middleware"
	"github.com/dahanmed/careops/internal/sqlclient"
	"github.com/dahanmed/careops/internal/task"
	taskapi "github.com/dahanmed/careops/internal/task/api"
	taskinfra "github.com/dahanmed/careops/internal/task/infrastructure"
	treatmentapi "github.com/dahanmed/careops/internal/treatment/api"
	treatmentinfra "github.com/dahanmed/careops/internal/treatment/infrastructure"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    *events.EsdbBus
	EMR    *emr.Adapter
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Init("careops", cfg.Server.Env)
	log := logging.Component("main")

	app := &App{Config: cfg}

	// Initialize database (optional - skip if not available)
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Warn().Err(err).Msg("database not available, running in limited mode")
	} else {
		app.DB = db
		defer db.Close()

		// Run migrations
		if err := database.Migrate(ctx, db.Pool); err != nil {
			log.Warn().Err(err).Msg("migration failed")
		}
	}

	// Initialize event bus (optional - skip if not available). The interface
	// stays nil unless the connection succeeded so handlers can nil-check it.
	var bus events.Bus
	esdbBus, err := events.NewBus(ctx, cfg.EventStore, logging.Component("events"))
	if err != nil {
		log.Warn().Err(err).Msg("event store not available, running without service events")
	} else {
		app.Bus = esdbBus
		bus = esdbBus
		defer esdbBus.Close()
		log.Info().Msg("event bus initialized")
	}

	// EMR adapter (optional - the clinic may run without the legacy system up)
	if bus != nil {
		adapter := emr.New(cfg.EMR, bus, logging.Component("emr"))
		if err := adapter.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("EMR adapter failed to start")
		} else {
			app.EMR = adapter
			log.Info().
				Str("host", cfg.EMR.Host).
				Dur("poll_interval", cfg.EMR.PollInterval).
				Msg("EMR adapter started")
		}
	}

	// Store-backed today dashboard, kept fresh by the realtime channel with
	// a polling fallback
	store := sqlclient.NewClient(cfg.StoreAPI, logging.Component("sqlclient"))
	dash := &dashboard{store: store, log: logging.Component("dashboard")}

	rtClient := realtime.NewClient(
		cfg.StoreAPI.BaseURL+"/api/subscribe",
		logging.Component("realtime"),
		realtime.WithReconnectDelay(cfg.Sync.ReconnectDelay),
	)
	refresher := realtime.NewRefresher(rtClient, cfg.Sync, dash.refresh, logging.Component("refresher"))
	refresher.Start(ctx)
	defer refresher.Stop()

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	rateLimiter := secmiddleware.NewIPRateLimiter(100, 200)
	r.Use(rateLimiter.Middleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.Env == "production" {
			r.Use(auth.Middleware(cfg.Auth))
		}

		r.Get("/dashboard/today", dash.handler)

		if app.DB != nil {
			careItems := careinfra.NewPostgresItemRepository(app.DB.Pool)
			careRules := careinfra.NewPostgresRuleRepository(app.DB.Pool)
			careStatus := careinfra.NewPostgresStatusRepository(app.DB.Pool)
			careHandler := careapi.NewHandler(careItems, careRules, careStatus, bus, logging.Component("care"))
			r.Mount("/care", careHandler.Routes())

			taskRepo := taskinfra.NewPostgresRepository(app.DB.Pool)
			taskTemplates := taskinfra.NewPostgresTemplateRepository(app.DB.Pool)
			taskHandler := taskapi.NewHandler(taskRepo, taskTemplates)
			r.Mount("/tasks", taskHandler.Routes())

			treatmentRepo := treatmentinfra.NewPostgresRepository(app.DB.Pool)
			treatmentHandler := treatmentapi.NewHandler(treatmentRepo, bus, logging.Component("treatment"))
			r.Mount("/treatments", treatmentHandler.Routes())

			// Subscribers turn service events into care items and tasks
			if bus != nil {
				careSubscriber := care.NewSubscriber(careItems, careRules, bus, logging.Component("care-subscriber"))
				if err := careSubscriber.Start(ctx); err != nil {
					log.Warn().Err(err).Msg("care subscriber failed to start")
				}

				taskSubscriber := task.NewSubscriber(taskRepo, taskTemplates, bus, logging.Component("task-subscriber"))
				if err := taskSubscriber.Start(ctx); err != nil {
					log.Warn().Err(err).Msg("task subscriber failed to start")
				}
			}
		}

		// Classification reports read straight from the EMR
		if app.EMR != nil {
			reportHandler := report.NewHandler(report.NewBuilder(app.EMR))
			r.Mount("/reports", reportHandler.Routes())
		}
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
		if app.EMR != nil {
			if err := app.EMR.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("EMR adapter shutdown error")
			}
		}
		close(done)
	}()

	log.Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Msg("careops started")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	log.Info().Msg("server stopped")
}

// dashboard caches today's open care items and tasks from the store so the
// front desk view does not hit the store on every request
type dashboard struct {
	store *sqlclient.Client
	log   zerolog.Logger

	mu          sync.RWMutex
	careItems   []map[string]any
	tasks       []map[string]any
	refreshedAt time.Time
	source      string
}

func (d *dashboard) refresh(ctx context.Context, source string) {
	today := time.Now()

	careSQL, err := sqlclient.TodayCareItemsSQL(today)
	if err != nil {
		d.log.Error().Err(err).Msg("failed to build care item query")
		return
	}
	careItems, err := d.store.Query(ctx, careSQL)
	if err != nil {
		d.log.Error().Err(err).Str("source", source).Msg("failed to refresh care items")
		return
	}

	taskSQL, err := sqlclient.TodayTasksSQL(today)
	if err != nil {
		d.log.Error().Err(err).Msg("failed to build task query")
		return
	}
	tasks, err := d.store.Query(ctx, taskSQL)
	if err != nil {
		d.log.Error().Err(err).Str("source", source).Msg("failed to refresh tasks")
		return
	}

	d.mu.Lock()
	d.careItems = careItems
	d.tasks = tasks
	d.refreshedAt = time.Now()
	d.source = source
	d.mu.Unlock()

	d.log.Debug().
		Str("source", source).
		Int("care_items", len(careItems)).
		Int("tasks", len(tasks)).
		Msg("dashboard refreshed")
}

func (d *dashboard) handler(w http.ResponseWriter, r *http.Request) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"care_items":   d.careItems,
		"tasks":        d.tasks,
		"refreshed_at": d.refreshedAt,
		"source":       d.source,
	})
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "careops",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["eventstore"] = "not ready: " + err.Error()
			} else {
				checks["eventstore"] = "ready"
			}
		} else {
			checks["eventstore"] = "not configured"
		}

		if app.EMR != nil {
			if err := app.EMR.Health(r.Context()); err != nil {
				checks["emr"] = "not ready: " + err.Error()
			} else {
				checks["emr"] = "ready"
			}
		} else {
			checks["emr"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
