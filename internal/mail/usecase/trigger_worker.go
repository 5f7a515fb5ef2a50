package usecase

import (
	"context"
	"sync"

	"mailsync-backend/pkg/logger"
)

// JobKind is the kind of background work a TriggerJob asks for.
type JobKind string

const (
	JobSync        JobKind = "sync"
	JobSweep       JobKind = "sweep"
	JobRenewWatch  JobKind = "renew_watch"
	sweepJobTarget         = "*"
)

// TriggerJob represents one queued unit of background work
type TriggerJob struct {
	Kind     JobKind
	Provider string
	Reason   string
}

func (j TriggerJob) key() string {
	if j.Kind == JobSync {
		return string(j.Kind) + ":" + j.Provider
	}
	return string(j.Kind) + ":" + sweepJobTarget
}

// TriggerWorker runs queued cycles and sweeps on a fixed pool of workers. At most
// one job per key waits in the queue; further triggers for it are coalesced.
type TriggerWorker struct {
	syncUc      SyncUsecase
	jobQueue    chan TriggerJob
	workerWg    sync.WaitGroup
	workerCount int
	started     bool
	mu          sync.Mutex
	pending     map[string]bool
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewTriggerWorker creates a new trigger worker
func NewTriggerWorker(syncUc SyncUsecase, workerCount, queueSize int) *TriggerWorker {
	if workerCount <= 0 {
		workerCount = 2
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TriggerWorker{
		syncUc:      syncUc,
		jobQueue:    make(chan TriggerJob, queueSize),
		workerCount: workerCount,
		pending:     make(map[string]bool),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the workers
func (w *TriggerWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return
	}

	for i := 0; i < w.workerCount; i++ {
		w.workerWg.Add(1)
		go w.worker(i)
	}
	w.started = true
	logger.WithComponent("TriggerWorker").Infof("Started %d workers", w.workerCount)
}

// Stop cancels running jobs and waits for the workers to exit
func (w *TriggerWorker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.mu.Unlock()

	w.cancel()
	close(w.jobQueue)
	w.workerWg.Wait()
	logger.WithComponent("TriggerWorker").Info("All workers stopped")
}

func (w *TriggerWorker) worker(id int) {
	defer w.workerWg.Done()

	for job := range w.jobQueue {
		w.mu.Lock()
		delete(w.pending, job.key())
		w.mu.Unlock()

		if w.ctx.Err() != nil {
			continue
		}
		w.processJob(job)
	}

	logger.WithComponent("TriggerWorker").Debugf("Worker %d stopped", id)
}

func (w *TriggerWorker) processJob(job TriggerJob) {
	log := logger.WithComponent("TriggerWorker").WithField("kind", job.Kind).WithField("reason", job.Reason)

	switch job.Kind {
	case JobSync:
		if _, err := w.syncUc.RunCycle(w.ctx, job.Provider); err != nil {
			log.WithField("provider", job.Provider).WithError(err).Debug("Cycle ended with error")
		}
	case JobSweep:
		if _, err := w.syncUc.Sweep(w.ctx); err != nil {
			log.WithError(err).Error("Sweep failed")
		}
	case JobRenewWatch:
		if err := w.syncUc.RenewWatches(w.ctx); err != nil {
			log.WithError(err).Error("Watch renewal failed")
		}
	default:
		log.Warn("Unknown job kind")
	}
}

// QueueJob adds a job to the queue (non-blocking). It reports false when the
// queue is full or the worker is stopped; a job already waiting counts as queued.
func (w *TriggerWorker) QueueJob(job TriggerJob) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return false
	}
	key := job.key()
	if w.pending[key] {
		return true
	}

	select {
	case w.jobQueue <- job:
		w.pending[key] = true
		return true
	default:
		return false
	}
}
