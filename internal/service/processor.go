package service

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"supplydocs/internal/docgen"
	"supplydocs/internal/metrics"
	"supplydocs/internal/model"
	"supplydocs/internal/repository"
	"supplydocs/internal/storage"
	"supplydocs/internal/templates"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Options configure the processing loop.
type Options struct {
	// PollInterval is the sleep between cycles in daemon mode.
	PollInterval time.Duration
	// RunOnce makes Run perform a single cycle and return.
	RunOnce bool
	// MaxConcurrent bounds the per-request pipelines running in parallel
	// within one cycle.
	MaxConcurrent int
	// SupplyTemplate and ClaimsTemplate are the template object names.
	SupplyTemplate string
	ClaimsTemplate string
}

// CycleStats is a snapshot of the most recent processing cycle.
type CycleStats struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Fetched    int       `json:"fetched"`
	Generated  int       `json:"generated"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

// Processor polls the repository for requests awaiting documents, renders
// and uploads each document, and advances the request status once the
// artifact is confirmed to exist in storage.
//
// All collaborators are injected; the processor holds no ambient state.
type Processor struct {
	repo      repository.RequestRepository
	templates templates.Store
	store     storage.Storage
	renderer  docgen.Renderer
	log       *logrus.Logger
	metrics   *metrics.WorkerMetrics
	opts      Options

	mu     sync.Mutex
	last   CycleStats
	hasRun bool
}

// NewProcessor constructs a Processor. Zero option values fall back to
// defaults (hourly polling, 8 concurrent pipelines).
func NewProcessor(
	repo repository.RequestRepository,
	tmpl templates.Store,
	store storage.Storage,
	renderer docgen.Renderer,
	log *logrus.Logger,
	m *metrics.WorkerMetrics,
	opts Options,
) *Processor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Hour
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	return &Processor{
		repo:      repo,
		templates: tmpl,
		store:     store,
		renderer:  renderer,
		log:       log,
		metrics:   m,
		opts:      opts,
	}
}

// Run executes processing cycles until the context is canceled. In RunOnce
// mode it performs a single cycle and returns its error, so a supervising
// process can exit non-zero on a failed batch run.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := p.RunCycle(ctx); err != nil {
			if p.opts.RunOnce {
				return err
			}
			p.log.WithError(err).Error("processing cycle failed")
		}

		if p.opts.RunOnce {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.opts.PollInterval):
		}
	}
}

// RunCycle performs one fetch + fan-out + join pass. Per-request failures
// are isolated and logged; only a failed fetch is returned to the caller.
func (p *Processor) RunCycle(ctx context.Context) error {
	start := time.Now()
	p.log.Info("processing cycle started")

	pending, err := p.repo.FetchPendingDocuments(ctx)
	if err != nil {
		p.metrics.CyclesTotal.WithLabelValues("error").Inc()
		p.recordCycle(CycleStats{
			StartedAt:  start,
			FinishedAt: time.Now(),
			Error:      err.Error(),
		})
		return fmt.Errorf("fetch pending documents: %w", err)
	}

	var generated, failed atomic.Int64

	// In-flight pipelines run on a detached context so a shutdown never
	// aborts a unit between upload and status update; cancellation only
	// stops new units from starting.
	workCtx := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	g.SetLimit(p.opts.MaxConcurrent)
	for _, doc := range pending {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := p.processDocument(workCtx, doc); err != nil {
				failed.Add(1)
				p.log.WithFields(logrus.Fields{
					"request_id": doc.RequestID(),
					"kind":       string(doc.Kind),
				}).WithError(err).Error("document pipeline failed")
				return nil
			}
			generated.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	stats := CycleStats{
		StartedAt:  start,
		FinishedAt: time.Now(),
		Fetched:    len(pending),
		Generated:  int(generated.Load()),
		Failed:     int(failed.Load()),
	}
	p.recordCycle(stats)
	p.metrics.CyclesTotal.WithLabelValues("ok").Inc()
	p.log.WithFields(logrus.Fields{
		"fetched":     stats.Fetched,
		"generated":   stats.Generated,
		"failed":      stats.Failed,
		"duration_ms": stats.FinishedAt.Sub(stats.StartedAt).Milliseconds(),
	}).Info("document processing completed")

	return nil
}

// processDocument runs one request's pipeline: fetch template, render,
// upload, confirm existence, then advance status. The steps are strictly
// sequential; the status update happens only after the existence check
// confirms the artifact is durable.
func (p *Processor) processDocument(ctx context.Context, doc model.PendingDocument) error {
	kind := string(doc.Kind)

	templateName := p.opts.SupplyTemplate
	if doc.Kind == model.KindClaims {
		templateName = p.opts.ClaimsTemplate
	}

	tmpl, err := p.templates.Fetch(ctx, templateName)
	if err != nil {
		p.metrics.DocumentFailures.WithLabelValues(kind, "template").Inc()
		return fmt.Errorf("fetch template: %w", err)
	}

	var rendered []byte
	if doc.Kind == model.KindClaims {
		rendered, err = p.renderer.RenderClaimsDocument(*doc.Claims, tmpl)
	} else {
		rendered, err = p.renderer.RenderSupplyDocument(*doc.Supply, tmpl)
	}
	if err != nil {
		p.metrics.DocumentFailures.WithLabelValues(kind, "render").Inc()
		return fmt.Errorf("render document: %w", err)
	}

	name := doc.ArtifactName()
	_, err = p.store.Put(ctx, name, bytes.NewReader(rendered), storage.PutObjectOptions{
		Size:        int64(len(rendered)),
		ContentType: docxContentType,
	})
	if err != nil {
		p.metrics.DocumentFailures.WithLabelValues(kind, "upload").Inc()
		return fmt.Errorf("upload artifact %s: %w", name, err)
	}

	// Upload success alone is not trusted as proof of durability; the
	// status transition is irreversible, so require a confirmation read.
	ok, err := p.store.Exists(ctx, name)
	if err != nil {
		p.metrics.DocumentFailures.WithLabelValues(kind, "confirm").Inc()
		return fmt.Errorf("confirm artifact %s: %w", name, err)
	}
	if !ok {
		p.metrics.DocumentFailures.WithLabelValues(kind, "confirm").Inc()
		return fmt.Errorf("document %s not found, status not updated", name)
	}

	matched, err := p.repo.UpdateStatus(ctx, doc.RequestID(), doc.TargetStatus())
	if err != nil {
		p.metrics.DocumentFailures.WithLabelValues(kind, "status").Inc()
		return fmt.Errorf("update status: %w", err)
	}
	if !matched {
		// The artifact is already durable; the next cycle re-confirms it
		// and retries the update, so a zero-row match is only a warning.
		p.log.WithFields(logrus.Fields{
			"request_id": doc.RequestID(),
			"status":     doc.TargetStatus().String(),
		}).Warn("status update matched no rows")
	} else {
		p.log.WithFields(logrus.Fields{
			"request_id": doc.RequestID(),
			"status":     doc.TargetStatus().String(),
		}).Info("status updated")
	}

	p.metrics.DocumentsGenerated.WithLabelValues(kind).Inc()
	return nil
}

// LastCycle reports the most recent cycle snapshot. The second return is
// false until the first cycle has run.
func (p *Processor) LastCycle() (CycleStats, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.hasRun
}

func (p *Processor) recordCycle(stats CycleStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = stats
	p.hasRun = true
}
