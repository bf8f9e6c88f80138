package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/elena-voice/elena/internal/appointment"
	"github.com/elena-voice/elena/internal/calendar"
	"github.com/elena-voice/elena/internal/config"
	"github.com/elena-voice/elena/internal/dispatch"
	"github.com/elena-voice/elena/internal/httpapi"
	"github.com/elena-voice/elena/internal/observability"
	"github.com/elena-voice/elena/internal/oracle"
	"github.com/elena-voice/elena/internal/reconciler"
	"github.com/elena-voice/elena/internal/session"
	"github.com/elena-voice/elena/internal/telephony"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("skipping .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	loc := cfg.Location()

	metrics := observability.NewMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)

	ctx := context.Background()

	var (
		store     appointment.Store
		storeMode string
	)
	if cfg.DatabaseURL != "" {
		pg, err := appointment.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("appointment store init failed: %v", err)
		}
		store = pg
		storeMode = "postgres"
	} else {
		store = appointment.NewMemoryStore()
		storeMode = "in-memory"
		log.Printf("DATABASE_URL not set; appointments are kept in memory and lost on restart")
	}
	defer store.Close()

	var mirror calendar.Mirror
	if cfg.MirrorConfigured() {
		g, err := calendar.NewGoogle(ctx, calendar.GoogleConfig{
			CalendarID:         cfg.GoogleCalendarID,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			Location:           loc,
		})
		if err != nil {
			log.Fatalf("google calendar mirror init failed: %v", err)
		}
		mirror = g
		log.Printf("calendar mirror: google calendar %s", cfg.GoogleCalendarID)
	} else {
		log.Printf("calendar mirror: disabled")
	}

	appointments := appointment.NewService(store, mirror, loc, cfg.MirrorTimeout, metrics)

	systemPrompt := oracle.BuildSystemPrompt(oracle.PromptConfig{
		InstructionFile:     cfg.SystemInstructionFile,
		BusinessContextFile: cfg.BusinessContextFile,
		Location:            loc,
	})

	var brain oracle.Client
	switch strings.ToLower(strings.TrimSpace(cfg.OracleProvider)) {
	case "gemini":
		g, err := oracle.NewGemini(ctx, oracle.GeminiConfig{
			APIKey:       cfg.GeminiAPIKey,
			Model:        cfg.GeminiModel,
			SystemPrompt: systemPrompt,
		})
		if err != nil {
			log.Fatalf("gemini oracle init failed: %v", err)
		}
		brain = g
		log.Printf("oracle provider: gemini (%s)", cfg.GeminiModel)
	case "mock":
		brain = oracle.NewMock()
		log.Printf("oracle provider: mock")
	default:
		log.Fatalf("invalid ORACLE_PROVIDER: %q (expected gemini|mock)", cfg.OracleProvider)
	}

	sessions := session.NewStore(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(callID string) {
		metrics.CallEvents.WithLabelValues("expired").Inc()
		metrics.ActiveCalls.Set(float64(sessions.ActiveCount()))
		log.Printf("(%s) session expired after inactivity", callID)
	})

	dispatcher := dispatch.New(dispatch.Config{
		Sessions:      sessions,
		Oracle:        brain,
		Appointments:  appointments,
		Metrics:       metrics,
		MaxChainHops:  cfg.MaxChainHops,
		OracleTimeout: cfg.OracleTimeout,
		Location:      loc,
	})

	renderer := telephony.NewRenderer(telephony.Config{
		Voice:          cfg.TwilioVoice,
		Language:       cfg.TwilioLanguage,
		GatherEndpoint: cfg.GatherEndpoint,
	})

	api := httpapi.New(cfg, dispatcher, appointments, renderer, metrics, storeMode)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)
	if mirror != nil {
		reconciler.New(appointments, cfg.MirrorReconcileInterval).Start(runCtx)
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
