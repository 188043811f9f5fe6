package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"medtracker-go/internal/models"
)

type fakeChecker struct {
	mu        sync.Mutex
	adherence int
	stock     int
	panicOnce bool
}

func (f *fakeChecker) CheckAllDue(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adherence++
	if f.panicOnce {
		f.panicOnce = false
		panic("evaluator blew up")
	}
	return nil
}

func (f *fakeChecker) CheckLowStock(ctx context.Context) ([]models.MedicationSetting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock++
	return nil, nil
}

func (f *fakeChecker) counts() (adherence, stock int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.adherence, f.stock
}

func newTestScheduler(checker Checker) *Scheduler {
	s := NewScheduler(checker, newTestMetrics())
	s.tick = 5 * time.Millisecond
	s.adherenceEvery = time.Millisecond
	s.stockHour = 0 // any wake today qualifies
	return s
}

func TestSchedulerRunsChecks(t *testing.T) {
	checker := &fakeChecker{}
	s := newTestScheduler(checker)

	s.Start()
	defer s.Stop()

	assert.True(t, s.Running())
	assert.Eventually(t, func() bool {
		adherence, stock := checker.counts()
		return adherence >= 2 && stock == 1
	}, time.Second, 5*time.Millisecond, "adherence repeats, stock fires once per day")
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	checker := &fakeChecker{}
	s := newTestScheduler(checker)

	s.Start()
	s.Start()
	defer s.Stop()

	assert.True(t, s.Running())

	// A second Start must not have spawned a second loop: wait for one
	// adherence window and confirm the counter grows at single-loop pace.
	assert.Eventually(t, func() bool {
		adherence, _ := checker.counts()
		return adherence >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerStopMidSleep(t *testing.T) {
	checker := &fakeChecker{}
	s := newTestScheduler(checker)
	s.tick = 50 * time.Millisecond

	s.Start()
	assert.True(t, s.Running())

	// Stop while the loop is asleep between ticks.
	s.Stop()
	assert.False(t, s.Running())

	adherenceAtStop, _ := checker.counts()
	time.Sleep(150 * time.Millisecond)
	adherenceAfter, _ := checker.counts()
	assert.Equal(t, adherenceAtStop, adherenceAfter, "no new cycle may start after Stop")
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := newTestScheduler(&fakeChecker{})
	s.Start()
	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
}

func TestSchedulerSurvivesPanickingCycle(t *testing.T) {
	checker := &fakeChecker{panicOnce: true}
	s := newTestScheduler(checker)

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		adherence, _ := checker.counts()
		return adherence >= 2
	}, time.Second, 5*time.Millisecond, "one failing cycle must not terminate the loop")
}

func TestSchedulerStockCheckWaitsForScheduledHour(t *testing.T) {
	checker := &fakeChecker{}
	s := newTestScheduler(checker)
	s.stockHour = 24 // never reached today

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		adherence, _ := checker.counts()
		return adherence >= 2
	}, time.Second, 5*time.Millisecond)

	_, stock := checker.counts()
	assert.Zero(t, stock, "stock scan must wait for its scheduled hour")
}
