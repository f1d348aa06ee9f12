package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/sediba/edubot/internal/adapters/groq"
	httpadapter "github.com/sediba/edubot/internal/adapters/http"
	redisadapter "github.com/sediba/edubot/internal/adapters/redis"
	"github.com/sediba/edubot/internal/adapters/sms"
	"github.com/sediba/edubot/internal/config"
	"github.com/sediba/edubot/internal/content"
	"github.com/sediba/edubot/internal/delivery"
	"github.com/sediba/edubot/internal/logging"
	"github.com/sediba/edubot/internal/metrics"
	"github.com/sediba/edubot/internal/quiz"
	"github.com/sediba/edubot/internal/session"
	"github.com/sediba/edubot/internal/ussd"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the USSD gateway callback server",
	Long: `Starts the EduBot service: an HTTP server for Africa's Talking USSD
callbacks, Redis-backed session state, and a background SMS delivery
pool. All configuration comes from EDUBOT_* environment variables.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel))

	catalog, err := content.Load()
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}
	if min := catalog.MinQuestions(); min < cfg.MaxCount() {
		return fmt.Errorf("static banks hold %d questions per topic but quizzes up to %d are selectable", min, cfg.MaxCount())
	}

	reg := prometheus.NewRegistry()
	mx := metrics.New(reg)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	// A dead Redis is not fatal at startup. Callbacks answer with an
	// error screen until it comes back.
	pingCtx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		logger.Warn("redis unreachable, callbacks will fail until it recovers",
			"addr", cfg.RedisAddr,
			"error", err,
		)
	}

	store := redisadapter.NewFromClient(rdb, redisadapter.WithTTL(cfg.SessionTTL))
	manager := session.NewManager(store,
		session.WithLocker(redisadapter.NewLocker(rdb, "ussd:")),
		session.WithLockTTL(cfg.SessionLockTTL),
		session.WithLogger(logger),
	)

	quizOpts := []quiz.Option{
		quiz.WithTimeout(cfg.GenerationTimeout),
		quiz.WithDifficulty(cfg.QuizDifficulty),
		quiz.WithLogger(logger),
		quiz.WithMetrics(mx),
	}
	if cfg.GenerationEnabled && cfg.GroqAPIKey != "" {
		quizOpts = append(quizOpts, quiz.WithGenerator(groq.NewClient(cfg.GroqAPIKey,
			groq.WithModel(cfg.GroqModel),
			groq.WithMaxTokens(cfg.GroqMaxTokens),
			groq.WithLogger(logger),
		)))
		logger.Info("quiz generation enabled", "model", cfg.GroqModel)
	} else {
		logger.Info("quiz generation disabled, serving static banks only")
	}
	orchestrator := quiz.NewOrchestrator(catalog, quizOpts...)

	sender := sms.NewClient(cfg.ATUsername, cfg.ATAPIKey,
		sms.WithSenderID(cfg.SMSSenderID),
		sms.WithLogger(logger),
	)
	dispatcher := delivery.New(sender,
		delivery.WithWorkers(cfg.DeliveryWorkers),
		delivery.WithQueueSize(cfg.DeliveryQueueSize),
		delivery.WithLogger(logger),
		delivery.WithMetrics(mx),
	)

	machine := ussd.NewMachine(manager, orchestrator, catalog,
		ussd.WithCounts(cfg.AllowedCounts, cfg.DefaultCount),
		ussd.WithLogger(logger),
		ussd.WithMetrics(mx),
	)

	server := httpadapter.NewServer(machine, dispatcher,
		httpadapter.WithServiceCode(cfg.ServiceCode),
		httpadapter.WithVersion(version),
		httpadapter.WithRequestTimeout(cfg.RequestTimeout),
		httpadapter.WithDebug(cfg.Debug),
		httpadapter.WithGatherer(reg),
		httpadapter.WithLogger(logger),
	)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.Router(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("edubot listening",
			"addr", cfg.HTTPAddr,
			"service_code", cfg.ServiceCode,
			"version", version,
		)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("shutdown started", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown did not complete, forcing close", "error", err)
			if err := srv.Close(); err != nil {
				logger.Error("server close failed", "error", err)
			}
		}

		// In-flight callbacks have finished; let their queued SMS sends
		// drain before exiting.
		dispatcher.Close()
		logger.Info("shutdown complete")
	}
	return nil
}
