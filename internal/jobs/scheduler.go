package jobs

import (
	"log"
	"sync"
	"time"

	"github.com/teleiosites/shepherd-backend/internal/services"
	"github.com/teleiosites/shepherd-backend/internal/storage"
)

// DefaultWorkflowHour is the local hour the daily workflow run fires.
const DefaultWorkflowHour = 8

// DefaultDispatchInterval is how often due pending messages are promoted.
const DefaultDispatchInterval = time.Minute

// Scheduler owns the two periodic background jobs: the daily drip-campaign
// workflow run and the per-minute scheduled-message dispatcher. It owns its
// own clock and store handle and is started and stopped with the process
// lifecycle; there is no package-level scheduler state.
type Scheduler struct {
	store     storage.Store
	generator services.Generator

	// now is swappable in tests.
	now func() time.Time

	workflowHour     int
	dispatchInterval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(store storage.Store, generator services.Generator) *Scheduler {
	return &Scheduler{
		store:            store,
		generator:        generator,
		now:              time.Now,
		workflowHour:     DefaultWorkflowHour,
		dispatchInterval: DefaultDispatchInterval,
	}
}

// Start launches both background loops. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		log.Println("Scheduler already running")
		return
	}
	s.stop = make(chan struct{})

	s.wg.Add(2)
	go s.runWorkflowLoop(s.stop)
	go s.runDispatchLoop(s.stop)

	log.Println("✅ Scheduler started (daily workflows + message dispatcher)")
}

// Stop halts both loops and waits for in-flight passes to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stop == nil {
		s.mu.Unlock()
		return
	}
	close(s.stop)
	s.stop = nil
	s.mu.Unlock()

	s.wg.Wait()
	log.Println("Scheduler stopped")
}

// runWorkflowLoop sleeps until the next daily trigger time, runs the
// workflow pass, and repeats.
func (s *Scheduler) runWorkflowLoop(stop <-chan struct{}) {
	defer s.wg.Done()

	for {
		now := s.now()
		next := time.Date(now.Year(), now.Month(), now.Day(), s.workflowHour, 0, 0, 0, now.Location())
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}

		log.Printf("Next daily workflow run scheduled in %v", next.Sub(now))
		select {
		case <-time.After(next.Sub(now)):
			count := s.RunDailyWorkflows()
			log.Printf("Daily workflows completed. Generated %d messages.", count)
		case <-stop:
			return
		}
	}
}

// runDispatchLoop promotes due pending messages on a fixed interval.
func (s *Scheduler) runDispatchLoop(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.dispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.DispatchDueMessages()
		case <-stop:
			return
		}
	}
}
