package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"medtracker-go/internal/metrics"
	"medtracker-go/internal/models"
)

// Checker is the slice of the evaluator the scheduler drives.
type Checker interface {
	CheckAllDue(ctx context.Context) error
	CheckLowStock(ctx context.Context) ([]models.MedicationSetting, error)
}

// Scheduler runs the periodic adherence and stock checks on a background
// goroutine. Start is idempotent and Stop is cooperative: the loop observes
// the stop signal on its next wake and never interrupts an in-flight cycle.
type Scheduler struct {
	checker Checker
	metrics *metrics.Metrics

	tick           time.Duration // loop wake interval
	adherenceEvery time.Duration
	stockHour      int // local hour for the daily stock scan

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

func NewScheduler(checker Checker, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		checker:        checker,
		metrics:        m,
		tick:           time.Minute,
		adherenceEvery: 15 * time.Minute,
		stockHour:      8,
	}
}

// Start launches the scheduler loop. Starting twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.metrics.SchedulerRunning.Set(1)

	go s.run(s.stop)
	log.Println("Notification scheduler started")
}

// Stop signals the loop to exit on its next wake. It does not wait for an
// in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
}

// Running reports whether the loop is active, for the health-check surface.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(stop chan struct{}) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	var lastAdherence time.Time // zero, so the first tick evaluates
	var lastStockDay string

	for {
		select {
		case <-stop:
			s.metrics.SchedulerRunning.Set(0)
			log.Println("Notification scheduler stopped")
			return
		case now := <-ticker.C:
			s.runPending(now, &lastAdherence, &lastStockDay)
		}
	}
}

// runPending fires whichever checks are due at now. A panic or error in one
// cycle is logged and never terminates the loop.
func (s *Scheduler) runPending(now time.Time, lastAdherence *time.Time, lastStockDay *string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Scheduler error: %v", r)
		}
	}()

	ctx := context.Background()

	if now.Sub(*lastAdherence) >= s.adherenceEvery {
		*lastAdherence = now
		s.metrics.SchedulerCycles.WithLabelValues("adherence").Inc()
		if err := s.checker.CheckAllDue(ctx); err != nil {
			log.Printf("Error checking medication adherence: %v", err)
		}
	}

	// Stock levels are checked once per day, on the first wake at or past
	// stockHour. A restart later in the day runs the scan again on its first
	// wake: scheduler state is not persisted, and a duplicate stock alert is
	// harmless.
	day := now.Format("2006-01-02")
	if now.Hour() >= s.stockHour && day != *lastStockDay {
		*lastStockDay = day
		s.metrics.SchedulerCycles.WithLabelValues("stock").Inc()
		if _, err := s.checker.CheckLowStock(ctx); err != nil {
			log.Printf("Error checking stock levels: %v", err)
		}
	}
}
