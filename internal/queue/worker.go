package queue

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/eventscope/internal/model"
	"github.com/sells-group/eventscope/internal/resilience"
	"github.com/sells-group/eventscope/internal/scrape"
	"github.com/sells-group/eventscope/internal/store"
)

// Ingester chunks, embeds and indexes a stored event. Implemented by the
// RAG pipeline.
type Ingester interface {
	IngestEvent(ctx context.Context, event *model.Event) error
}

// WorkerOptions tunes the worker pool.
type WorkerOptions struct {
	Concurrency      int
	ScrapeRetries    int
	ScrapeRetryDelay time.Duration
	FailOnIndexError bool
}

// WorkerPool consumes jobs from the broker and runs them through the
// scrape, persist and index stages.
type WorkerPool struct {
	broker   Broker
	registry *scrape.Registry
	store    store.Store
	ingester Ingester
	opts     WorkerOptions
}

// NewWorkerPool wires a worker pool. ingester may be nil, in which case
// events are stored but not indexed.
func NewWorkerPool(broker Broker, registry *scrape.Registry, st store.Store, ingester Ingester, opts WorkerOptions) *WorkerPool {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.ScrapeRetries <= 0 {
		opts.ScrapeRetries = 1
	}
	return &WorkerPool{
		broker:   broker,
		registry: registry,
		store:    st,
		ingester: ingester,
		opts:     opts,
	}
}

const (
	dequeueBackoff    = 250 * time.Millisecond
	dequeueBackoffMax = 30 * time.Second
)

// Run blocks processing jobs until the context is cancelled. Jobs already
// dequeued are finished before workers exit. Dequeue failures are retried
// with backoff so a broker hiccup never kills the pool; workers only exit
// on context cancellation.
func (p *WorkerPool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.opts.Concurrency; i++ {
		worker := i
		g.Go(func() error {
			log := zap.L().With(zap.Int("worker", worker))
			backoff := dequeueBackoff
			for {
				job, err := p.broker.Dequeue(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					log.Warn("dequeue failed, retrying",
						zap.Error(err),
						zap.Duration("backoff", backoff),
					)
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(backoff):
					}
					backoff *= 2
					if backoff > dequeueBackoffMax {
						backoff = dequeueBackoffMax
					}
					continue
				}
				backoff = dequeueBackoff
				p.process(ctx, log, job)
			}
		})
	}
	return g.Wait()
}

func (p *WorkerPool) process(ctx context.Context, log *zap.Logger, job *model.Job) {
	log = log.With(
		zap.String("job_id", job.ID),
		zap.String("url", job.Payload.URL),
		zap.Int("attempt", job.Attempts),
	)
	log.Info("job started")

	scraper, err := p.registry.For(job.Payload.URL)
	if err != nil {
		p.failJob(ctx, log, job, err)
		return
	}
	log = log.With(zap.String("platform", scraper.Platform()))

	retryCfg := resilience.FixedDelay(p.opts.ScrapeRetries, p.opts.ScrapeRetryDelay)
	retryCfg.OnRetry = resilience.RetryLogger(scraper.Platform(), "scrape")

	event, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*model.Event, error) {
		return scraper.Scrape(ctx, job.Payload.URL)
	})
	if err != nil {
		p.failJob(ctx, log, job, eris.Wrap(err, "scrape"))
		return
	}

	stored, err := p.store.CreateEvent(ctx, *event)
	if err != nil {
		p.failJob(ctx, log, job, eris.Wrap(err, "persist"))
		return
	}
	log = log.With(zap.String("event_id", stored.ID))

	if p.ingester != nil {
		if err := p.ingestEvent(ctx, stored); err != nil {
			if p.opts.FailOnIndexError {
				p.failJob(ctx, log, job, eris.Wrap(err, "index"))
				return
			}
			// The event is stored and visible. Indexing can be retried
			// out of band, so the job still succeeds.
			log.Warn("event stored but not indexed", zap.Error(err))
		}
	}

	result := model.JobResult{EventID: stored.ID, Status: "success"}
	if err := p.broker.Complete(ctx, job.ID, result); err != nil {
		log.Error("complete job", zap.Error(err))
		return
	}
	log.Info("job completed")
}

func (p *WorkerPool) ingestEvent(ctx context.Context, event *model.Event) error {
	if err := p.ingester.IngestEvent(ctx, event); err != nil {
		return err
	}
	if err := p.store.MarkEventIndexed(ctx, event.ID); err != nil {
		return eris.Wrap(err, "mark indexed")
	}
	return nil
}

func (p *WorkerPool) failJob(ctx context.Context, log *zap.Logger, job *model.Job, jobErr error) {
	final := !model.IsRetryable(jobErr)

	// Job bookkeeping must survive caller cancellation.
	if errors.Is(ctx.Err(), context.Canceled) {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	requeued, err := p.broker.Fail(ctx, job.ID, jobErr.Error(), final)
	if err != nil {
		log.Error("record job failure", zap.Error(err))
		return
	}
	if requeued {
		log.Warn("job failed, requeued", zap.Error(jobErr))
		return
	}
	log.Error("job failed permanently", zap.Error(jobErr))
}
