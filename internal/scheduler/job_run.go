package scheduler

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// JobRun records one sweep invocation for operational visibility; the sweeps
// themselves never read it back.
type JobRun struct {
	ID         string            `gorm:"primaryKey"`
	Job        string            `gorm:"not null;index"`
	Status     string            `gorm:"not null;default:'running'"`
	Processed  int               `gorm:"not null;default:0"`
	Failed     int               `gorm:"not null;default:0"`
	Detail     datatypes.JSONMap `gorm:"type:jsonb"`
	StartedAt  time.Time         `gorm:"not null"`
	FinishedAt *time.Time
}

func (JobRun) TableName() string { return "scheduler_job_runs" }

const (
	jobRunStatusRunning   = "running"
	jobRunStatusSucceeded = "succeeded"
	jobRunStatusFailed    = "failed"
)

func (s *Scheduler) startJobRun(ctx context.Context, job string) *JobRun {
	run := &JobRun{
		ID:        ulid.Make().String(),
		Job:       job,
		Status:    jobRunStatusRunning,
		StartedAt: s.clock.Now(),
	}
	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO scheduler_job_runs (id, job, status, processed, failed, started_at)
		 VALUES (?, ?, ?, 0, 0, ?)`,
		run.ID,
		run.Job,
		run.Status,
		run.StartedAt,
	).Error
	if err != nil {
		// Bookkeeping failure must not block the sweep itself.
		s.log.Warn("failed to record job run", zap.String("job", job), zap.Error(err))
	}
	return run
}

func (s *Scheduler) finishJobRun(ctx context.Context, run *JobRun, processed, failed int, detail datatypes.JSONMap, jobErr error) {
	status := jobRunStatusSucceeded
	if jobErr != nil {
		status = jobRunStatusFailed
	}
	now := s.clock.Now()
	err := s.db.WithContext(ctx).Exec(
		`UPDATE scheduler_job_runs
		 SET status = ?, processed = ?, failed = ?, detail = ?, finished_at = ?
		 WHERE id = ?`,
		status,
		processed,
		failed,
		detail,
		now,
		run.ID,
	).Error
	if err != nil {
		s.log.Warn("failed to finish job run", zap.String("job", run.Job), zap.Error(err))
	}
}
