// Package scheduler runs background jobs on cron specs, independent of request traffic.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Runner wraps a cron scheduler with named registrations.
// Registering an id that already exists replaces the earlier entry.
type Runner struct {
	cron    *cron.Cron
	baseCtx context.Context

	mu      sync.Mutex
	entries map[string]cron.EntryID
	jobs    map[string]func(context.Context)
}

func New(baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(),
		baseCtx: baseCtx,
		entries: make(map[string]cron.EntryID),
		jobs:    make(map[string]func(context.Context)),
	}
}

// Register schedules job under id. Panics inside job are recovered and logged.
func (r *Runner) Register(id, spec string, job func(context.Context)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	wrapped := func() { r.run(id, job) }
	entryID, err := r.cron.AddFunc(spec, wrapped)
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", id, spec, err)
	}
	if prev, ok := r.entries[id]; ok {
		r.cron.Remove(prev)
		log.Info().Str("job", id).Msg("replaced existing schedule")
	}
	r.entries[id] = entryID
	r.jobs[id] = job
	return nil
}

// Trigger runs a registered job now, on the calling goroutine.
func (r *Runner) Trigger(id string) bool {
	r.mu.Lock()
	job, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	r.run(id, job)
	return true
}

// Len returns the number of scheduled entries.
func (r *Runner) Len() int {
	return len(r.cron.Entries())
}

func (r *Runner) Start() {
	log.Info().Int("jobs", r.Len()).Msg("scheduler started")
	r.cron.Start()
}

// Stop stops scheduling and waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}

func (r *Runner) run(id string, job func(context.Context)) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("job", id).Interface("panic", rec).Msg("scheduled job panicked")
		}
	}()
	job(r.baseCtx)
}
