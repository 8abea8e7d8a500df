// Package cron runs periodic operational housekeeping for the proxy:
// a circuit-breaker reset-all safety net and garbage collection of
// breakers whose owning provider was deleted from the registry.
package cron

import (
	"fmt"
	"sync"

	cronlib "github.com/robfig/cron/v3"

	"github.com/roelfdiedericks/ctxproxy/internal/breaker"
	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
	"github.com/roelfdiedericks/ctxproxy/internal/providers"
)

// reservedBreakerNames are breakers not tied to a provider's lifecycle
// and therefore never eligible for GC.
var reservedBreakerNames = map[string]bool{
	"memory": true,
}

// Config controls the housekeeping schedules, in standard 5-field cron
// syntax (minute hour dom month dow).
type Config struct {
	// ResetAllSchedule, if non-empty, periodically resets every breaker
	// to closed as a safety net against a breaker wedged open by a
	// transient upstream outage that has since recovered.
	ResetAllSchedule string
	// GCSchedule, if non-empty, periodically removes breakers whose
	// provider id no longer exists in the registry.
	GCSchedule string
}

// DefaultConfig resets all breakers hourly and GCs orphaned breakers
// every 15 minutes.
func DefaultConfig() Config {
	return Config{
		ResetAllSchedule: "0 * * * *",
		GCSchedule:       "*/15 * * * *",
	}
}

// Scheduler owns a robfig/cron/v3 runner wired to the breaker registry.
type Scheduler struct {
	cfg       Config
	breakers  *breaker.Registry
	providers *providers.Registry

	mu      sync.Mutex
	running bool
	c       *cronlib.Cron
}

// New returns a Scheduler for the given registries. Call Start to begin
// running the configured jobs.
func New(cfg Config, breakers *breaker.Registry, providerRegistry *providers.Registry) *Scheduler {
	return &Scheduler{cfg: cfg, breakers: breakers, providers: providerRegistry}
}

// Start registers and starts the configured cron jobs. It is an error
// to call Start twice without an intervening Stop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("cron: scheduler already running")
	}

	c := cronlib.New()

	if s.cfg.ResetAllSchedule != "" {
		if _, err := c.AddFunc(s.cfg.ResetAllSchedule, s.resetAllSafetyNet); err != nil {
			return fmt.Errorf("cron: invalid reset-all schedule %q: %w", s.cfg.ResetAllSchedule, err)
		}
	}
	if s.cfg.GCSchedule != "" {
		if _, err := c.AddFunc(s.cfg.GCSchedule, s.gcOrphanedBreakers); err != nil {
			return fmt.Errorf("cron: invalid gc schedule %q: %w", s.cfg.GCSchedule, err)
		}
	}

	c.Start()
	s.c = c
	s.running = true
	L_info("cron: scheduler started", "resetAll", s.cfg.ResetAllSchedule, "gc", s.cfg.GCSchedule)
	return nil
}

// Stop halts the scheduler and waits for any running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	ctx := s.c.Stop()
	<-ctx.Done()
	s.c = nil
	s.running = false
	L_info("cron: scheduler stopped")
}

// resetAllSafetyNet is the reset-all job body.
func (s *Scheduler) resetAllSafetyNet() {
	L_debug("cron: running breaker reset-all safety net")
	s.breakers.ResetAll()
}

// gcOrphanedBreakers removes breakers whose provider id is no longer
// registered. Breaker lifecycle is otherwise "created on first
// reference, never destroyed" (spec.md §3); this job only reclaims
// breakers left behind by a provider the management API has since
// deleted, it never touches a breaker for a live provider.
func (s *Scheduler) gcOrphanedBreakers() {
	if s.providers == nil {
		return
	}

	live := make(map[string]bool)
	for _, p := range s.providers.List() {
		live[p.ID] = true
	}

	removed := 0
	for name := range s.breakers.ListAll() {
		if reservedBreakerNames[name] || live[name] {
			continue
		}
		if s.breakers.Remove(name) {
			removed++
		}
	}
	if removed > 0 {
		L_info("cron: garbage collected orphaned breakers", "count", removed)
	}
}
