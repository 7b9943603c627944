package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"frequency/config"
	"frequency/content"
	"frequency/db"
	"frequency/db/memory"
	"frequency/dialogue"
	"frequency/frequency"
	"frequency/handlers"
	"frequency/llm"
	"frequency/logger"
	"frequency/metrics"
	"frequency/narrative"
	"frequency/notebook"
	"frequency/session"
	"frequency/trust"
	"frequency/voice"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the radio server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := logger.New(config.GetLogMode())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	if config.GetLogMode() == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, mode, err := openStore(ctx, log)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	llmClient, err := llm.New(ctx, llm.Config{
		APIKey:          config.GetGeminiAPIKey(),
		Model:           config.GetGeminiModel(),
		TranscribeModel: config.GetGeminiTranscribeModel(),
		Temperature:     config.GetLLMTemperature(),
		MaxTokens:       config.GetLLMMaxTokens(),
	}, log, m)
	if err != nil {
		return err
	}
	tts := voice.New(voice.Config{
		APIKey: config.GetElevenLabsAPIKey(),
		Model:  config.GetElevenLabsModel(),
	}, log, m)

	nar := narrative.NewEngine(store, log)
	dir := frequency.NewDirectory(store, nar, log)
	nar.UseUnlocker(dir)
	svc := &session.Services{
		Users:       store,
		Resetter:    store,
		Directory:   dir,
		Narrative:   nar,
		Dialogue:    dialogue.NewEngine(store, trust.NewLedger(store, log), nar, llmClient, tts, log),
		Notebook:    notebook.NewService(store, log),
		Transcriber: llmClient,
		Metrics:     m,
		Log:         log,
	}
	registry := session.NewRegistry(m)
	origins := config.GetAllowedOrigins()

	router := handlers.NewRouter(handlers.RouterConfig{
		WSHandler:        handlers.NewWSHandler(svc, registry, origins, config.GetConnectGrace(), log),
		FrequencyHandler: handlers.NewFrequencyHandler(dir, log),
		HistoryHandler:   handlers.NewHistoryHandler(store, log),
		ContentHandler:   handlers.NewContentHandler(nar, log),
		HealthHandler:    handlers.NewHealthHandler(registry, mode),
		Gatherer:         reg,
		AllowedOrigins:   origins,
		Log:              log,
	})

	srv := &http.Server{
		Addr:              ":" + config.GetPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server running", "addr", srv.Addr, "store", mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down", "sessions", registry.Len())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		registry.CloseAll()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore connects to MongoDB, or builds a seeded in-memory store when no
// URI is configured.
func openStore(ctx context.Context, log *logger.Logger) (db.Store, string, error) {
	uri := config.GetMongoDBURI()
	if uri != "" {
		store, err := db.InitMongoDB(ctx, uri, config.GetMongoDatabase(), log)
		if err != nil {
			return nil, "", fmt.Errorf("connect to MongoDB: %w", err)
		}
		return store, "mongodb", nil
	}

	log.Warn("MONGODB_URI not set, running in demo mode with an in-memory store")
	store := memory.New()
	cat, err := content.Default()
	if err != nil {
		return nil, "", err
	}
	if _, err := content.Seed(ctx, store, cat, log); err != nil {
		return nil, "", fmt.Errorf("seed demo store: %w", err)
	}
	return store, "memory", nil
}
