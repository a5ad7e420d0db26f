package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"cloud.google.com/go/firestore"
	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/tomaszkw/docmeter/internal/async"
	"github.com/tomaszkw/docmeter/internal/common"
	"github.com/tomaszkw/docmeter/internal/endpoint"
	"github.com/tomaszkw/docmeter/internal/meter"
	"github.com/tomaszkw/docmeter/internal/quota"
	"github.com/tomaszkw/docmeter/internal/repository"
	"github.com/tomaszkw/docmeter/internal/secure"
	"github.com/tomaszkw/docmeter/internal/service"
	"github.com/tomaszkw/docmeter/internal/storage"
	"github.com/tomaszkw/docmeter/internal/submit"
	"github.com/tomaszkw/docmeter/internal/track"
	httptransport "github.com/tomaszkw/docmeter/internal/transport/http"
)

func main() {
	// Logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	log := logger.Sugar()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// DB pool
	pool, err := repository.Open(ctx, cfg.Database, nil)
	if err != nil {
		log.Fatalf("creating DB pool: %v", err)
	}
	defer pool.Close()

	if err := repository.HealthCheck(ctx, pool, cfg.Database); err != nil {
		log.Fatalf("DB health failed: %v", err)
	}
	log.Infow("DB health OK")

	// GCP clients
	fsClient, err := firestore.NewClient(ctx, cfg.Realtime.ProjectID)
	if err != nil {
		log.Fatalf("creating firestore client: %v", err)
	}
	defer fsClient.Close()

	gcsClient, err := gcs.NewClient(ctx)
	if err != nil {
		log.Fatalf("creating storage client: %v", err)
	}
	defer gcsClient.Close()

	// Backend plumbing
	resolver := endpoint.NewResolver(&endpoint.HTTPDiscoverer{URL: cfg.Backend.DiscoveryURL}, nil)
	httpClient := &http.Client{Timeout: cfg.Backend.RequestTimeout}

	jobs := repository.NewJobRepository(pool, nil)
	updates := async.NewWriteQueue(jobs, nil)

	svc := service.New(
		meter.New(nil, cfg.Meter.Workers),
		quota.NewGate(nil),
		quota.NewFirestoreSnapshotSource(fsClient, "accounts", nil),
		secure.NewGate(nil),
		storage.NewGCSUploader(gcsClient, cfg.Storage.Bucket, nil),
		submit.New(resolver, httpClient, nil),
		track.NewTracker(track.NewFirestoreFeed(fsClient, cfg.Realtime.Collection, nil), nil),
		jobs,
		nil,
	).WithUpdateQueue(updates)

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           httptransport.NewHandler(svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("HTTP serving on %s", cfg.Server.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("http shutdown: %v", err)
	}
	updates.Shutdown(shutdownCtx)
	log.Info("stopped.")
}
