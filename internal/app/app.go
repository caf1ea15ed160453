package app

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/claimsmart/claimsmart-backend/internal/config"
	"github.com/claimsmart/claimsmart-backend/internal/core"
	"github.com/claimsmart/claimsmart-backend/internal/core/database"
	"github.com/claimsmart/claimsmart-backend/internal/core/objectclient"
	"github.com/claimsmart/claimsmart-backend/internal/core/ocr"
	"github.com/claimsmart/claimsmart-backend/internal/core/pipeline"
	"github.com/claimsmart/claimsmart-backend/internal/core/review"
	"github.com/claimsmart/claimsmart-backend/internal/services"
)

// App holds the explicitly constructed dependency graph: store, object
// storage, providers, pipeline and HTTP server. Nothing is package-global
// except the logger.
type App struct {
	Store    *database.ClaimStore
	Objects  *objectclient.S3Client
	Review   core.ReviewProvider
	Pipeline *pipeline.Pipeline
	Server   *Server

	cfg *config.Config
	log *zap.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	store, err := database.NewClaimStore(initCtx, cfg, log)
	if err != nil {
		return nil, err
	}

	objects, err := objectclient.NewS3Client(initCtx, cfg, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	ocrProvider, err := ocr.NewProvider(cfg, objects)
	if err != nil {
		store.Close()
		return nil, err
	}

	reviewProvider, err := review.NewProvider(initCtx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	pipe := pipeline.New(store, ocrProvider, reviewProvider, pipeline.Config{
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.MaxAttempts,
	}, log)

	claims := services.NewClaimService(store, objects, cfg.BucketName, cfg.MaxAttempts, log)
	server := NewServer(cfg, store, claims, log)

	return &App{
		Store:    store,
		Objects:  objects,
		Review:   reviewProvider,
		Pipeline: pipe,
		Server:   server,
		cfg:      cfg,
		log:      log,
	}, nil
}

// Run starts the pipeline workers, the reconciliation watcher, and the HTTP
// server, and blocks until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.Pipeline.Start(gctx, a.cfg.PipelineWorkers)

	g.Go(func() error {
		err := a.Pipeline.Run(gctx)
		if gctx.Err() != nil {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return a.Server.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) Close() {
	// The gemini review provider holds a gRPC connection.
	if closer, ok := a.Review.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.log.Warn("closing review provider", zap.Error(err))
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}
}
