// Package sweeper implements the cleanup sweeper (C9): a periodic job that
// reclaims external resources (deployed workers, archived logs) for jobs
// whose retention window has passed, then marks the row expired.
//
// Each row is handled independently; one row's failure is logged and must
// never stop the rest of the batch from being swept, mirroring the
// per-event error isolation the NATS consumer loops use elsewhere in this
// codebase.
package sweeper

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/c360studio/nimbusd/internal/apperr"
	"github.com/c360studio/nimbusd/internal/deploy"
	"github.com/c360studio/nimbusd/internal/jobmodel"
	"github.com/c360studio/nimbusd/internal/metrics"
)

const sweepBatchSize = 50

// Store is the subset of jobstore.Store the sweeper depends on.
type Store interface {
	JobsDueForSweep(ctx context.Context, limit int) ([]jobmodel.Job, error)
	ExpireJob(ctx context.Context, id string) error
}

// Archive is the subset of logarchive.Archive the sweeper depends on.
type Archive interface {
	Delete(ctx context.Context, key string) error
}

// Sweeper owns a cron schedule that periodically reclaims expired jobs.
type Sweeper struct {
	Store   Store
	Archive Archive
	Deploy  deploy.Credentials
	Logger  *slog.Logger

	cron *cron.Cron
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Start schedules RunOnce on spec and begins running it in the background.
// spec is anything cron's standard parser accepts: a 5-field cron
// expression or a descriptor such as "@hourly" or "@every 1h"; the serve
// command passes "@every <SweepInterval>".
func (s *Sweeper) Start(ctx context.Context, spec string) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(spec, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule, waiting for any in-flight run to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
}

// RunOnce sweeps up to one batch of due jobs. It is exported so the CLI can
// expose a manual "sweep now" trigger alongside the scheduled runs.
func (s *Sweeper) RunOnce(ctx context.Context) {
	jobs, err := s.Store.JobsDueForSweep(ctx, sweepBatchSize)
	if err != nil {
		s.logger().Error("sweeper: list jobs due for sweep failed", "error", err)
		return
	}
	if len(jobs) == 0 {
		return
	}

	s.logger().Info("sweeper: reclaiming jobs", "count", len(jobs))
	for _, job := range jobs {
		s.sweepOne(ctx, job)
	}
}

// sweepOne reclaims a single job's external resources and expires its row.
// Any failure here is logged and skipped; it never aborts the batch.
func (s *Sweeper) sweepOne(ctx context.Context, job jobmodel.Job) {
	if job.WorkerName != nil && *job.WorkerName != "" {
		if err := deploy.DeleteWorker(ctx, s.Deploy, *job.WorkerName); err != nil && !apperr.Is(err, apperr.KindConfigMissing) {
			s.logger().Warn("sweeper: delete worker failed, skipping job", "job_id", job.ID, "worker_name", *job.WorkerName, "error", err)
			metrics.SweepErrorsTotal.WithLabelValues("delete_worker").Inc()
			return
		}
	}

	if job.BuildLogKey != nil && *job.BuildLogKey != "" {
		if err := s.Archive.Delete(ctx, *job.BuildLogKey); err != nil {
			s.logger().Warn("sweeper: delete build log failed", "job_id", job.ID, "error", err)
			metrics.SweepErrorsTotal.WithLabelValues("delete_build_log").Inc()
		}
	}
	if job.DeployLogKey != nil && *job.DeployLogKey != "" {
		if err := s.Archive.Delete(ctx, *job.DeployLogKey); err != nil {
			s.logger().Warn("sweeper: delete deploy log failed", "job_id", job.ID, "error", err)
			metrics.SweepErrorsTotal.WithLabelValues("delete_deploy_log").Inc()
		}
	}

	if err := s.Store.ExpireJob(ctx, job.ID); err != nil {
		s.logger().Error("sweeper: expire job failed", "job_id", job.ID, "error", err)
		metrics.SweepErrorsTotal.WithLabelValues("expire_job").Inc()
		return
	}
	metrics.SweepReclaimedTotal.Inc()
	s.logger().Info("sweeper: job reclaimed", "job_id", job.ID)
}
