package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/contractreview/internal/config"
	"github.com/dgallion1/contractreview/internal/history"
	"github.com/dgallion1/contractreview/internal/parser"
	"github.com/dgallion1/contractreview/internal/render"
	"github.com/dgallion1/contractreview/internal/review"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("review queue is full")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("orchestrator stopped")

const summaryChars = 200

// HistoryRecorder stores the outcome of finished reviews.
type HistoryRecorder interface {
	Add(rec history.Record) (history.Record, error)
}

// Orchestrator runs queued review jobs on a fixed pool of workers.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	reviewer *review.Reviewer
	renderer ReportRenderer
	history  HistoryRecorder
	log      *slog.Logger
	cfg      config.Config

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// NewOrchestrator creates the pipeline. hist may be nil.
func NewOrchestrator(cfg config.Config, reviewer *review.Reviewer, renderer ReportRenderer, hist HistoryRecorder, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		queue:    make(chan *Job, cfg.MaxQueueSize),
		reviewer: reviewer,
		renderer: renderer,
		history:  hist,
		log:      log,
		cfg:      cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	g, gctx := errgroup.WithContext(workerCtx)
	o.group = g

	workers := max(o.cfg.MaxConcurrentReviews, 1)
	for i := range workers {
		g.Go(func() error {
			log := o.log.With("worker", i)
			for {
				select {
				case <-gctx.Done():
					return nil
				case job, ok := <-o.queue:
					if !ok {
						return nil
					}
					o.process(gctx, log, job)
				}
			}
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := o.jobs.Cleanup(); n > 0 {
					o.log.Debug("expired jobs removed", "count", n)
				}
			}
		}
	})
}

// Stop cancels running jobs and waits for the workers to exit. It is safe to call more than once.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	if o.group != nil {
		if err := o.group.Wait(); err != nil {
			o.log.Error("worker exited with error", "error", err)
		}
	}
	for job := range o.queue {
		job.Finish(Result{Message: "服务已停止", Failure: &Failure{Severity: Fatal, Kind: KindCanceled, Detail: ErrStopped.Error()}})
		o.removeUpload(job)
	}
}

// Submit queues a job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return ErrStopped
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.Finish(Result{Message: "审查队列已满", Failure: &Failure{Severity: Fatal, Kind: KindInternal, Detail: ErrQueueFull.Error()}})
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

func (o *Orchestrator) process(ctx context.Context, log *slog.Logger, job *Job) {
	log = log.With("job_id", job.ID, "filename", job.Filename)
	defer o.removeUpload(job)
	defer func() {
		if r := recover(); r != nil {
			log.Error("review panicked", "panic", r)
			job.Finish(Result{Message: "审查流程出错", Failure: &Failure{Severity: Fatal, Kind: KindInternal, Detail: fmt.Sprint(r)}})
		}
	}()

	start := time.Now()
	coord := NewCoordinator(o.reviewer, o.renderer, log,
		WithProgress(job.SetProgress),
		WithStepObserver(func(s Step) {
			if st := statusForStep(s); st != "" && st != StatusCompleted {
				job.SetStatus(st)
			}
		}),
		WithExtractOptions(parser.WithPdftotextFallback(o.cfg.PDFFallbackPdftotext)),
	)

	var res Result
	if job.Quick {
		res = coord.QuickReview(ctx, job.Request(), job.FocusAreas)
	} else {
		res = coord.ReviewContract(ctx, job.Request())
	}
	job.Finish(res)
	log.Info("job finished", "success", res.Success, "elapsed", time.Since(start).Round(time.Millisecond))
	o.record(log, job, res)
}

func (o *Orchestrator) record(log *slog.Logger, job *Job, res Result) {
	if o.history == nil {
		return
	}
	rec := HistoryRecord(job.Request(), o.cfg.ModelType, o.cfg.Backend().Model, res)
	if _, err := o.history.Add(rec); err != nil {
		log.Warn("history record not saved", "error", err)
	}
}

// HistoryRecord builds the history entry for a finished review.
func HistoryRecord(req Request, modelType, modelName string, res Result) history.Record {
	// An upload is temporary, so the record keeps the client's file name.
	path := req.FilePath
	if req.FileName != "" {
		path = req.FileName
	}
	rec := history.Record{
		FileName:     fileName(req),
		FilePath:     path,
		ClientRole:   req.ClientRole,
		ContractType: req.ContractType,
		UserConcerns: req.UserConcerns,
		ModelType:    modelType,
		ModelName:    modelName,
		Status:       history.StatusSuccess,
	}
	if res.Data != nil {
		rec.ReportPath = res.Data.ReportPath
		rec.ReviewSummary = history.Summary(render.PlainReport(res.Data.ReportText), summaryChars)
	}
	if !res.Success {
		rec.Status = history.StatusError
		rec.ErrorMessage = res.Message
	}
	return rec
}

func (o *Orchestrator) removeUpload(job *Job) {
	if job.FilePath == "" {
		return
	}
	if err := os.Remove(job.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		o.log.Warn("remove upload", "path", job.FilePath, "error", err)
	}
}
