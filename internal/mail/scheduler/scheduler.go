package scheduler

import (
	"sync"
	"time"

	"mailsync-backend/internal/mail/usecase"
	"mailsync-backend/pkg/logger"
)

// Entry is one periodic job.
type Entry struct {
	Job      usecase.TriggerJob
	Interval time.Duration
}

// SyncScheduler enqueues periodic cycles, sweeps and watch renewals. It never runs
// work itself; the trigger worker does.
type SyncScheduler struct {
	trigger  usecase.Trigger
	entries  []Entry
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewSyncScheduler creates a new scheduler
func NewSyncScheduler(trigger usecase.Trigger, entries []Entry) *SyncScheduler {
	return &SyncScheduler{
		trigger:  trigger,
		entries:  entries,
		stopChan: make(chan struct{}),
	}
}

// Start begins one loop per entry. Each entry fires immediately, then on its interval.
func (s *SyncScheduler) Start() {
	log := logger.WithComponent("Scheduler")

	for _, e := range s.entries {
		if e.Interval <= 0 {
			log.WithField("kind", e.Job.Kind).WithField("provider", e.Job.Provider).Warn("Skipping entry without interval")
			continue
		}
		log.WithField("kind", e.Job.Kind).
			WithField("provider", e.Job.Provider).
			WithField("interval", e.Interval.String()).
			Info("Scheduling job")

		s.wg.Add(1)
		go s.loop(e)
	}
}

func (s *SyncScheduler) loop(e Entry) {
	defer s.wg.Done()

	s.enqueue(e.Job)

	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.enqueue(e.Job)
		case <-s.stopChan:
			return
		}
	}
}

func (s *SyncScheduler) enqueue(job usecase.TriggerJob) {
	if !s.trigger.QueueJob(job) {
		logger.WithComponent("Scheduler").
			WithField("kind", job.Kind).
			WithField("provider", job.Provider).
			Warn("Queue full, skipping this tick")
	}
}

// Stop gracefully stops the scheduler
func (s *SyncScheduler) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		logger.WithComponent("Scheduler").Info("Scheduler stopped")
	})
}
