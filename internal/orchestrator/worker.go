package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/partscout/partscout/internal/database"
	"github.com/partscout/partscout/internal/logging"
	"github.com/partscout/partscout/internal/metrics"
	"github.com/partscout/partscout/internal/models"
)

// Worker claims pending jobs and runs their search phase in the background.
// A semaphore bounds how many jobs run at once; the poll ticker keeps
// latency low without hammering the database.
type Worker struct {
	service *Service
	logger  *logging.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWorker creates a background job worker
func NewWorker(service *Service, logger *logging.Logger) *Worker {
	return &Worker{
		service: service,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the worker loop. Call Stop to shut it down.
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop signals the worker and waits for in-flight jobs to finish
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	<-w.doneCh
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	sem := make(chan struct{}, w.service.maxJobs)
	ticker := time.NewTicker(w.service.pollEvery)
	defer ticker.Stop()

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-w.stopCh:
			wg.Wait()
			return
		case <-ticker.C:
		}

		w.claimAvailable(ctx, sem, &wg)
	}
}

// claimAvailable starts as many pending jobs as free semaphore slots allow
func (w *Worker) claimAvailable(ctx context.Context, sem chan struct{}, wg *sync.WaitGroup) {
	for {
		select {
		case sem <- struct{}{}:
		default:
			return
		}

		job, err := w.service.jobs.ClaimPending(ctx)
		if err != nil {
			<-sem
			if !errors.Is(err, database.ErrJobNotFound) {
				w.logger.Error("failed to claim pending job",
					logging.WithField("error", err.Error()))
			}
			return
		}

		wg.Add(1)
		go func(job *models.ImportJob) {
			defer wg.Done()
			defer func() { <-sem }()
			w.process(ctx, job)
		}(job)
	}
}

func (w *Worker) process(ctx context.Context, job *models.ImportJob) {
	w.logger.Info("processing import job",
		logging.WithField("job_id", job.ID),
		logging.WithField("parts", len(job.Parts)))

	if err := w.service.runJob(ctx, job); err != nil {
		metrics.JobsProcessed.WithLabelValues("failed").Inc()
		return
	}
	metrics.JobsProcessed.WithLabelValues("searched").Inc()
}
