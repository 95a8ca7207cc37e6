package service

import (
	"context"
	"sort"
	"sync"

	"github.com/timmy/footfall/internal/domain"
	"github.com/timmy/footfall/internal/logger"
	"github.com/timmy/footfall/internal/notify"
)

// HistoryAPI is the part of the job service behind the history view.
type HistoryAPI interface {
	ListHistory(ctx context.Context) ([]domain.Job, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// JobPurger removes whatever a job left behind outside the job service.
type JobPurger interface {
	PurgeJob(ctx context.Context, jobID string) error
}

// HistoryService lists past jobs and keeps a cached copy fresh by refetching whenever
// a job completes or is cancelled anywhere. Refreshes are idempotent, so an event that
// races the view's own refresh is harmless.
type HistoryService struct {
	api    HistoryAPI
	bus    notify.Bus
	purger JobPurger
	log    *logger.Logger

	mu   sync.RWMutex
	jobs []domain.Job
}

// NewHistoryService creates a history service. purger may be nil.
func NewHistoryService(api HistoryAPI, bus notify.Bus, purger JobPurger, log *logger.Logger) *HistoryService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &HistoryService{api: api, bus: bus, purger: purger, log: log.WithComponent("history")}
}

// List fetches the history, newest first, and caches it.
func (s *HistoryService) List(ctx context.Context) ([]domain.Job, error) {
	jobs, err := s.api.ListHistory(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].CreatedAt > jobs[j].CreatedAt })

	s.mu.Lock()
	s.jobs = jobs
	s.mu.Unlock()
	return append([]domain.Job(nil), jobs...), nil
}

// Cached returns the last fetched history without a request.
func (s *HistoryService) Cached() []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Job(nil), s.jobs...)
}

// Delete removes a job on the service, purges its archived exports and drops it
// from the cache. A failed purge is logged, not returned.
func (s *HistoryService) Delete(ctx context.Context, jobID string) error {
	if err := s.api.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	if s.purger != nil {
		if err := s.purger.PurgeJob(ctx, jobID); err != nil {
			s.log.WithError(err).WithField(logger.FieldJobID, jobID).Warn("Failed to purge archived exports")
		}
	}
	s.mu.Lock()
	kept := s.jobs[:0]
	for _, j := range s.jobs {
		if j.ID != jobID {
			kept = append(kept, j)
		}
	}
	s.jobs = kept
	s.mu.Unlock()
	s.log.WithField(logger.FieldJobID, jobID).Info("Deleted job")
	return nil
}

// Watch refreshes the history on every job-completed or job-cancelled event until ctx
// is done, passing the fresh list to onRefresh when it is non-nil.
func (s *HistoryService) Watch(ctx context.Context, onRefresh func([]domain.Job)) error {
	return s.bus.Subscribe(ctx, func(ev notify.Event) {
		if ev.Type != notify.JobCompleted && ev.Type != notify.JobCancelled {
			return
		}
		log := s.log.WithFields(logger.Fields{logger.FieldJobID: ev.JobID, "event": string(ev.Type)})
		// handlers run on the publisher's goroutine; refetch off it
		go func() {
			jobs, err := s.List(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.WithError(err).Warn("Failed to refresh history")
				}
				return
			}
			log.WithField(logger.FieldCount, len(jobs)).Debug("History refreshed")
			if onRefresh != nil {
				onRefresh(jobs)
			}
		}()
	})
}
