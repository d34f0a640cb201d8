package jobs

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"sierrawbs/internal/domain/payroll"
)

const JobRecordRun = "record_run"

// DropObserver is told about every job discarded because the queue was full.
type DropObserver interface {
	RecordHistoryDrop()
}

// Service runs background work on a single worker goroutine fed by a bounded
// queue. Conversions never block on it.
type Service struct {
	queue    chan job
	observer DropObserver
	wg       sync.WaitGroup
	started  atomic.Bool
}

type job struct {
	Type string
	Run  func(context.Context) error
}

func New(queueSize int, observer DropObserver) *Service {
	if queueSize <= 0 {
		queueSize = 128
	}
	return &Service{
		queue:    make(chan job, queueSize),
		observer: observer,
	}
}

func (s *Service) Start(ctx context.Context) {
	s.started.Store(true)
	s.wg.Add(1)
	go s.worker(ctx)
}

// Wait blocks until the worker has drained the queue after ctx is cancelled.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) Enqueue(jobType string, run func(context.Context) error) bool {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType)
		if s.observer != nil {
			s.observer.RecordHistoryDrop()
		}
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) error) error {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case j := <-s.queue:
			if err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

// drain finishes queued jobs with a fresh context so history written just
// before shutdown is not lost.
func (s *Service) drain() {
	for {
		select {
		case j := <-s.queue:
			if err := s.runJob(context.Background(), j); err != nil {
				slog.Warn("job run failed during drain", "jobType", j.Type, "err", err)
			}
		default:
			return
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) error {
	return j.Run(ctx)
}

// Recorder writes run history through the queue instead of inline.
type Recorder struct {
	jobs *Service
	next payroll.RunRecorder
}

func NewRecorder(jobs *Service, next payroll.RunRecorder) *Recorder {
	return &Recorder{jobs: jobs, next: next}
}

func (r *Recorder) RecordRun(ctx context.Context, run payroll.Run) error {
	if !r.jobs.started.Load() {
		return r.jobs.RunNow(ctx, JobRecordRun, func(ctx context.Context) error {
			return r.next.RecordRun(ctx, run)
		})
	}
	r.jobs.Enqueue(JobRecordRun, func(ctx context.Context) error {
		return r.next.RecordRun(ctx, run)
	})
	return nil
}
