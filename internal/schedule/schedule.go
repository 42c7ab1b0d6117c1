// Package schedule previews and dispatches cron-triggered suite runs.
// Cron parsing reuses robfig/cron's standard five-field grammar; the
// dispatcher is a ticking background goroutine in the same
// mutex-guarded, stopCh-closed shape as the teacher's trigger
// scheduler, generalized from on-chain trigger polling to
// suite-run dispatch.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stepflow/orchestrator/internal/apierr"
	"github.com/stepflow/orchestrator/internal/catalog"
	"github.com/stepflow/orchestrator/internal/coordinator"
	"github.com/stepflow/orchestrator/internal/domain"
	"github.com/stepflow/orchestrator/internal/logging"
	"github.com/stepflow/orchestrator/internal/metrics"
)

var standardParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule validates a five-field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := standardParser.Parse(expr)
	if err != nil {
		return nil, apierr.Validation("invalid cron expression: " + err.Error())
	}
	return sched, nil
}

// PreviewNextRuns returns the next n fire times for expr, computed
// from `after`.
func PreviewNextRuns(expr string, after time.Time, n int) ([]time.Time, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, n)
	t := after
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		out = append(out, t)
	}
	return out, nil
}

// PollInterval is how often the Dispatcher checks schedules for a due
// fire time. Mirrors the teacher's SchedulerInterval time-trigger tick.
const PollInterval = time.Second

// Dispatcher polls the catalog store for enabled schedules and fires
// any whose cron expression has a fire time in the last poll window,
// invoking the run coordinator with TriggerType = SCHEDULED.
type Dispatcher struct {
	store    catalog.Store
	driver   *coordinator.Driver
	logger   *logging.Logger
	metrics  *metrics.Metrics
	interval time.Duration

	mu        sync.Mutex
	lastCheck time.Time
	parsed    map[string]cron.Schedule

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewDispatcher builds a Dispatcher. logger and m may be nil.
func NewDispatcher(store catalog.Store, driver *coordinator.Driver, logger *logging.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		store:    store,
		driver:   driver,
		logger:   logger,
		metrics:  m,
		interval: PollInterval,
		parsed:   make(map[string]cron.Schedule),
	}
}

// Start begins polling in a background goroutine. Start is idempotent
// only in the sense that calling it twice starts two pollers; callers
// own a single Dispatcher per process.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	d.lastCheck = time.Now()
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.mu.Unlock()

	go d.run(ctx)
}

// Stop signals the poller to exit and waits for it to return.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	stopCh := d.stopCh
	doneCh := d.doneCh
	d.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.doneCh)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) {
	now := time.Now()
	d.mu.Lock()
	since := d.lastCheck
	d.lastCheck = now
	d.mu.Unlock()

	schedules, err := d.store.ListSchedules(ctx)
	if err != nil {
		if d.logger != nil {
			d.logger.WithError(err).Error("schedule: list schedules failed")
		}
		return
	}

	for _, sched := range schedules {
		if !sched.Enabled || sched.DeletedAt != nil {
			continue
		}
		if d.due(sched, since, now) {
			go d.fire(ctx, sched)
		}
	}
}

// due reports whether sched's cron expression has a fire time in
// (since, now]. Parsed cron.Schedule values are cached per schedule ID
// to avoid re-parsing every tick.
func (d *Dispatcher) due(sched domain.Schedule, since, now time.Time) bool {
	d.mu.Lock()
	parsed, ok := d.parsed[sched.ID]
	d.mu.Unlock()
	if !ok {
		var err error
		parsed, err = ParseSchedule(sched.CronExpr)
		if err != nil {
			if d.logger != nil {
				d.logger.WithError(err).WithFields(map[string]interface{}{"scheduleId": sched.ID}).
					Error("schedule: unparseable cron expression, skipping")
			}
			return false
		}
		d.mu.Lock()
		d.parsed[sched.ID] = parsed
		d.mu.Unlock()
	}
	next := parsed.Next(since)
	return !next.After(now)
}

func (d *Dispatcher) fire(ctx context.Context, sched domain.Schedule) {
	suite, err := d.store.Suite(ctx, sched.SuiteID)
	if err != nil {
		if d.logger != nil {
			d.logger.WithError(err).WithFields(map[string]interface{}{"scheduleId": sched.ID, "suiteId": sched.SuiteID}).
				Error("schedule: suite lookup failed, skipping fire")
		}
		return
	}
	var env *domain.Environment
	if sched.EnvironmentID != "" {
		env, err = d.store.Environment(ctx, sched.EnvironmentID)
		if err != nil {
			if d.logger != nil {
				d.logger.WithError(err).WithFields(map[string]interface{}{"scheduleId": sched.ID, "environmentId": sched.EnvironmentID}).
					Error("schedule: environment lookup failed, skipping fire")
			}
			return
		}
	}

	if d.logger != nil {
		d.logger.WithFields(map[string]interface{}{"scheduleId": sched.ID, "suiteId": suite.ID}).
			Info("schedule: firing run")
	}

	run, err := d.driver.RunSuite(ctx, suite, env, domain.TriggerScheduled, sched.ID, noopSink{})
	if err != nil {
		if d.logger != nil {
			d.logger.WithError(err).WithFields(map[string]interface{}{"scheduleId": sched.ID}).
				Error("schedule: run failed to start")
		}
		return
	}
	if err := d.store.SaveRun(ctx, run); err != nil && d.logger != nil {
		d.logger.WithError(err).WithFields(map[string]interface{}{"runId": run.ID}).
			Error("schedule: failed to persist scheduled run")
	}
}

// noopSink discards events from scheduled runs that nobody is
// streaming; the persisted Run record remains the source of truth.
type noopSink struct{}

func (noopSink) Emit(coordinator.Event) {}
