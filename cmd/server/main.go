package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mmuslimabdulj/goat-doodle/internal/archive"
	"github.com/mmuslimabdulj/goat-doodle/internal/auth"
	"github.com/mmuslimabdulj/goat-doodle/internal/config"
	httpHandler "github.com/mmuslimabdulj/goat-doodle/internal/delivery/http"
	"github.com/mmuslimabdulj/goat-doodle/internal/delivery/ws"
	"github.com/mmuslimabdulj/goat-doodle/internal/game"
	"github.com/mmuslimabdulj/goat-doodle/internal/logger"
	"github.com/mmuslimabdulj/goat-doodle/internal/metrics"
	"github.com/mmuslimabdulj/goat-doodle/internal/middleware"
	"github.com/mmuslimabdulj/goat-doodle/internal/presence"
	"github.com/mmuslimabdulj/goat-doodle/internal/usecase"
	"github.com/mmuslimabdulj/goat-doodle/internal/words"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load .env file (ignore error if not exists, e.g. in production)
	_ = godotenv.Load()
	cfg := config.LoadFromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogPretty, os.Stdout)
	if cfg.TicketSecret == config.DefaultConfig().TicketSecret {
		log.Warn().Msg("TICKET_SECRET not set, using the development secret")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// Word service
	var primary words.Source
	if cfg.WordServiceURL != "" {
		primary = words.NewClient(&http.Client{Timeout: cfg.WordServiceTimeout}, cfg.WordServiceURL)
	} else {
		log.Info().Msg("WORD_SERVICE_URL not set, serving words from the local table")
	}
	wordSource := words.NewResilient(primary, words.NewFallback(nil), cfg.WordServiceTimeout, log)
	wordSource.OnFallback = collector.WordFallback

	// Archive
	var games archive.Archiver = archive.Nop{}
	var archiveStore *archive.Store
	if cfg.DatabaseURL != "" {
		s, err := archive.Open(cfg.DatabaseURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("open archive")
		}
		archiveStore, games = s, s
	}

	// Game core
	rnd := game.NewRandomSource(time.Now().UnixNano())
	store := game.NewSessionStore(rnd, cfg.MaxStrokeHistory)
	orch := game.NewOrchestrator(store, game.NewGuard(), rnd, log)
	orch.SetRecorder(collector)
	guesses := game.NewGuessEvaluator(store, cfg.PointsPerGuess, log)
	guesses.SetRecorder(collector)
	guesses.SetReactor(wordSource, cfg.WordServiceTimeout)

	tracker := presence.NewTracker(orch, store, cfg.DepartureGrace, log)
	tracker.SetJoinGrace(cfg.JoinGrace)

	// Delivery
	names := usecase.NewNameGenerator()
	rooms := ws.NewRooms(log)
	dispatcher := ws.NewDispatcher(ws.Deps{
		Store:   store,
		Orch:    orch,
		Guesses: guesses,
		Tracker: tracker,
		Rooms:   rooms,
		Words:   wordSource,
		Archive: games,
		Names:   names,
		Metrics: collector,
		Settings: ws.Settings{
			WordSelectTimeout: cfg.WordSelectTimeout,
			RoundTimerSlack:   cfg.RoundTimerSlack,
		},
	}, log)

	handler := httpHandler.NewHandler(httpHandler.Deps{
		Store:      store,
		Tracker:    tracker,
		Rooms:      rooms,
		Dispatcher: dispatcher,
		Tickets:    auth.NewIssuer(cfg.TicketSecret, cfg.TicketTTL),
		Names:      names,
		Archive:    games,
		Limits: ws.Limits{
			Guess:          cfg.RateLimitGuess,
			Stroke:         cfg.RateLimitStroke,
			MaxMessageSize: cfg.MaxMessageSize,
		},
		AllowedOrigins: cfg.AllowedOrigins,
	}, log)

	apiLimiter := middleware.NewIPRateLimiter(cfg.RateLimitAPI, max(1, int(cfg.RateLimitAPI)*2))
	wsLimiter := middleware.NewIPRateLimiter(cfg.RateLimitWS, max(1, int(cfg.RateLimitWS)*2))

	router := handler.Routes(httpHandler.RouterOptions{
		APILimiter: apiLimiter,
		WSLimiter:  wsLimiter,
		Metrics:    metrics.Handler(registry),
		StaticDir:  "./static",
		Log:        log,
	})

	// Janitor
	ctx, stop := context.WithCancel(context.Background())
	janitor := game.NewJanitor(store, log)
	janitor.Interval = cfg.SweepInterval
	janitor.Retention = cfg.SessionRetention
	janitor.IdleTTL = cfg.IdleRoomTTL
	janitor.OnDelete = dispatcher.DropRoom
	go janitor.Run(ctx)

	// Create server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msgf("doodle running at http://localhost:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	stop()
	rooms.CloseAll()
	dispatcher.Wait()
	apiLimiter.Stop()
	wsLimiter.Stop()
	if archiveStore != nil {
		if err := archiveStore.Close(); err != nil {
			log.Error().Err(err).Msg("close archive")
		}
	}

	log.Info().Msg("server exited gracefully")
}
