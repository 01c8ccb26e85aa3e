package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Job is one unit of scheduled work run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Throttled jobs run at most once per Every(). Jobs without it run on every
// cycle.
type Throttled interface {
	Every() time.Duration
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type registration struct {
	job     Job
	lastRun time.Time
}

// Registry holds jobs in registration order and tracks when each last ran.
type Registry struct {
	mu      sync.Mutex
	entries []*registration
}

// NewRegistry builds a registry from jobs; nil jobs are skipped and duplicate
// names are rejected.
func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register appends a job. Nil jobs are ignored.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.job.Name() == job.Name() {
			return fmt.Errorf("cron job %q registered twice", job.Name())
		}
	}
	r.entries = append(r.entries, &registration{job: job})
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]Job, 0, len(r.entries))
	for _, entry := range r.entries {
		jobs = append(jobs, entry.job)
	}
	return jobs
}

// Due returns the jobs that should run at now and stamps them as run.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Job
	for _, entry := range r.entries {
		if throttled, ok := entry.job.(Throttled); ok && !entry.lastRun.IsZero() {
			if now.Sub(entry.lastRun) < throttled.Every() {
				continue
			}
		}
		entry.lastRun = now
		due = append(due, entry.job)
	}
	return due
}

// Names lists job names, used for the worker startup log.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		names = append(names, entry.job.Name())
	}
	return names
}
