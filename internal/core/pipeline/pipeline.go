// Package pipeline advances claims through the asynchronous enrichment
// stages: OCR extraction after intake, then automated review once the
// extracted fields are present. Stages react to record state, not to calls
// from the write paths; the watcher polls the store and reconciles, so a
// missed or redelivered event changes nothing.
package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/claimsmart/claimsmart-backend/internal/core"
	"github.com/claimsmart/claimsmart-backend/internal/resilience"
)

// Stage names the two asynchronous enrichment steps.
type Stage string

const (
	StageOCR    Stage = "ocr"
	StageReview Stage = "review"
)

type job struct {
	claimID string
	stage   Stage
}

// Config tunes the watcher and worker pool.
type Config struct {
	// PollInterval is how often the watcher scans for claims needing work.
	PollInterval time.Duration
	// MaxAttempts caps per-claim attempts per stage. A claim at the cap is
	// considered stalled and is left for manual intervention.
	MaxAttempts int
	// BatchSize limits how many claims one poll picks up per stage.
	BatchSize int
}

// Pipeline owns the job queue, the worker pool and the reconciliation
// watcher.
type Pipeline struct {
	store  core.ClaimStore
	ocr    core.OCRProvider
	review core.ReviewProvider
	cfg    Config
	log    *zap.Logger

	jobs chan job

	mu       sync.Mutex
	inflight map[job]struct{}
}

func New(store core.ClaimStore, ocr core.OCRProvider, review core.ReviewProvider, cfg Config, log *zap.Logger) *Pipeline {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &Pipeline{
		store:    store,
		ocr:      ocr,
		review:   review,
		cfg:      cfg,
		log:      log,
		jobs:     make(chan job, 64),
		inflight: make(map[job]struct{}),
	}
}

// Start runs the worker goroutines reading from the jobs channel.
func (p *Pipeline) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					p.log.Debug("pipeline worker shutting down", zap.Int("worker", w))
					return
				case j := <-p.jobs:
					p.processOne(ctx, j, w)
					p.markDone(j)
				}
			}
		}(w)
	}
}

// Run is the reconciliation loop. It scans the store for claims whose next
// stage has not happened yet and dispatches them to the workers. Blocks
// until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		p.pollOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Pipeline) pollOnce(ctx context.Context) {
	needOCR, err := p.store.ListClaimsNeedingOCR(ctx, p.cfg.MaxAttempts, p.cfg.BatchSize)
	if err != nil {
		p.log.Error("pipeline: list claims needing ocr", zap.Error(err))
	}
	for i := range needOCR {
		p.enqueue(ctx, job{claimID: needOCR[i].ID, stage: StageOCR})
	}

	needReview, err := p.store.ListClaimsNeedingReview(ctx, p.cfg.MaxAttempts, p.cfg.BatchSize)
	if err != nil {
		p.log.Error("pipeline: list claims needing review", zap.Error(err))
	}
	for i := range needReview {
		p.enqueue(ctx, job{claimID: needReview[i].ID, stage: StageReview})
	}
}

// enqueue dispatches a job unless the same claim/stage is already queued or
// being processed. The store guards make duplicates harmless; this just
// avoids pointless duplicate calls to the external services.
func (p *Pipeline) enqueue(ctx context.Context, j job) {
	p.mu.Lock()
	if _, busy := p.inflight[j]; busy {
		p.mu.Unlock()
		return
	}
	p.inflight[j] = struct{}{}
	p.mu.Unlock()

	select {
	case p.jobs <- j:
	case <-ctx.Done():
		p.markDone(j)
	}
}

func (p *Pipeline) markDone(j job) {
	p.mu.Lock()
	delete(p.inflight, j)
	p.mu.Unlock()
}

func (p *Pipeline) retryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = 2
	cfg.InitialBackoff = time.Second
	return cfg
}
