package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

const overdueJobName = "invoice-overdue-sweep"

// OverdueMarker is the part of the invoice service the sweep needs.
type OverdueMarker interface {
	MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int, error)
}

// JobScheduler runs periodic maintenance in-process.
type JobScheduler struct {
	scheduler gocron.Scheduler
	invoices  OverdueMarker
	log       zerolog.Logger
	jobs      map[string]gocron.Job
	mu        sync.RWMutex
	now       func() time.Time
}

// NewJobScheduler registers the overdue sweep to run every interval, starting as soon as the scheduler starts.
func NewJobScheduler(invoices OverdueMarker, interval time.Duration, logger zerolog.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if interval <= 0 {
		interval = time.Hour
	}

	js := &JobScheduler{
		scheduler: scheduler,
		invoices:  invoices,
		log:       logger,
		jobs:      make(map[string]gocron.Job),
		now:       time.Now,
	}

	job, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(js.RunOverdueSweep, context.Background()),
		gocron.WithName(overdueJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create overdue job: %w", err)
	}
	js.jobs[overdueJobName] = job

	logger.Info().Int("jobs", len(js.jobs)).Dur("overdue_interval", interval).Msg("registered background jobs")
	return js, nil
}

func (js *JobScheduler) Start() {
	js.log.Info().Msg("starting background job scheduler")
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	js.log.Info().Msg("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// JobNames lists the registered jobs.
func (js *JobScheduler) JobNames() []string {
	js.mu.RLock()
	defer js.mu.RUnlock()
	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	return names
}

// RunOverdueSweep moves unpaid invoices past their due date to overdue.
func (js *JobScheduler) RunOverdueSweep(ctx context.Context) error {
	start := js.now()
	n, err := js.invoices.MarkOverdueInvoices(ctx, start)
	if err != nil {
		js.log.Error().Err(err).Msg("overdue sweep failed")
		return err
	}
	js.log.Info().Int("marked", n).Dur("took", time.Since(start)).Msg("overdue sweep finished")
	return nil
}
