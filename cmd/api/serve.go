package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"negotiate/api/internal/app"
	"negotiate/api/internal/authpw"
	"negotiate/api/internal/config"
	"negotiate/api/internal/filestore"
	"negotiate/api/internal/jobs"
	"negotiate/api/internal/logger"
	"negotiate/api/internal/processing"
	"negotiate/api/internal/ratelimit"
	"negotiate/api/internal/retriever"
	"negotiate/api/internal/search"
	"negotiate/api/internal/store"
	"negotiate/api/internal/verification"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, config.Load())
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	dataStore := store.NewPostgresStore(db)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts, log)

	opts := app.Options{
		Search:   searchService,
		Accounts: authpw.NewService(dataStore),
		Logger:   log,
	}
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		files, err := filestore.New(ctx, filestore.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return err
		}
		opts.Files = files
	} else {
		log.Warn("MINIO_ENDPOINT not set, file uploads disabled")
	}

	processor := processing.NewClient(processing.Config{
		BaseURL: cfg.ProcessingAPIHost,
		Token:   cfg.ProcessingAPIToken,
		Timeout: cfg.ProcessingTimeout,
	})
	allocator := retriever.NewAllocator(dataStore, cfg.RetrieverIDMaxAttempts, log)
	workflow := verification.New(verification.Settings{FileHost: cfg.PublicHost}, processor, dataStore, allocator, log)

	service := app.New(cfg, dataStore, workflow, opts)
	if err := service.Bootstrap(ctx); err != nil {
		log.Warn("bootstrap error, will retry on next restart", "error", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, log)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		limiter, err := ratelimit.New(cfg.RedisURL, ratelimit.Options{
			Limit:          cfg.RateLimitPerMinute,
			Window:         time.Minute,
			TrustedProxies: cfg.TrustedProxies,
		}, log)
		if err != nil {
			return err
		}
		defer limiter.Close()
		httpServer.WithRateLimit(limiter.Middleware)
	}

	runner := jobs.NewRunner(log, jobs.NewSearchReindex(searchService, cfg.SearchReindexSchedule))
	if err := runner.Start(); err != nil {
		return err
	}
	defer runner.Stop()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening", "app", cfg.AppName, "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
