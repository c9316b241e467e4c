/*
scheduler.go - Automated calendar maintenance

PURPOSE:
  Periodically moves the current-term flag to the term containing today and
  locks academic years whose last term has ended, so quotes default to the
  right year and no adjustment can start in a closed year.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Delegates to fees.Service.ReconcileCalendar (calendar.Reconcile)
  - Acts as its own actor, recorded in the audit log

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewCalendarScheduler(svc, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ReconcileCalendar endpoint (manual run)
  - calendar/reconcile.go: The maintenance rules
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/Mukisa95/Trinity-Family-school-sub002/fees"
	"github.com/Mukisa95/Trinity-Family-school-sub002/logsvc"
)

// SchedulerActor is the actor recorded for scheduled maintenance.
const SchedulerActor = "calendar-scheduler"

// CalendarScheduler handles automated calendar maintenance.
type CalendarScheduler struct {
	Service       *fees.Service
	Log           logsvc.Logger
	CheckInterval time.Duration
	Enabled       bool
	Now           func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewCalendarScheduler creates a new scheduler.
func NewCalendarScheduler(svc *fees.Service, logger logsvc.Logger) *CalendarScheduler {
	if logger == nil {
		logger = logsvc.Discard()
	}
	return &CalendarScheduler{
		Service:       svc,
		Log:           logger,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
	}
}

// Start begins the scheduler.
func (cs *CalendarScheduler) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.Enabled {
		cs.Log.Info("[Scheduler] Disabled, not starting")
		return
	}
	if cs.ticker != nil {
		return
	}

	cs.ticker = time.NewTicker(cs.CheckInterval)
	cs.stop = make(chan struct{})
	cs.wg.Add(1)

	go cs.run()

	cs.Log.Info("[Scheduler] Started", map[string]interface{}{"interval": cs.CheckInterval.String()})
}

// Stop stops the scheduler.
func (cs *CalendarScheduler) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ticker != nil {
		cs.ticker.Stop()
		close(cs.stop)
		cs.wg.Wait()
		cs.ticker = nil
		cs.Log.Info("[Scheduler] Stopped")
	}
}

func (cs *CalendarScheduler) run() {
	defer cs.wg.Done()
	ticker, stop := cs.ticker, cs.stop

	// Run immediately on start
	cs.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			cs.RunOnce(context.Background())
		case <-stop:
			return
		}
	}
}

// RunOnce performs one maintenance pass and returns the number of changes.
func (cs *CalendarScheduler) RunOnce(ctx context.Context) int {
	changes, err := cs.Service.ReconcileCalendar(ctx, SchedulerActor, cs.Now())
	if err != nil {
		cs.Log.Error("[Scheduler] Calendar reconciliation failed", err)
		return 0
	}
	if len(changes) > 0 {
		cs.Log.Info("[Scheduler] Calendar updated", map[string]interface{}{"changes": len(changes)})
	} else {
		cs.Log.Debug("[Scheduler] Calendar up to date")
	}
	return len(changes)
}
