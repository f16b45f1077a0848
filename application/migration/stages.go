package migration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// StageStatus is the outcome of one stage
type StageStatus string

const (
	StageCompleted StageStatus = "COMPLETED"
	StageFailed    StageStatus = "FAILED"
	StageSkipped   StageStatus = "SKIPPED"
)

// StageRecord is the journal entry of one stage
type StageRecord struct {
	Name       string        `json:"name"`
	Status     StageStatus   `json:"status"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Stage is one step of a migration run. A stage whose Skip returns true is
// journaled as skipped and not executed.
type Stage struct {
	Name    string
	Execute func(ctx context.Context, run *runState) error
	Skip    func(run *runState) bool
}

// stageRunner executes stages in order and stops at the first failure.
// There is no compensation: nothing is written before the last stage.
type stageRunner struct {
	stages  []Stage
	logger  *zap.Logger
	observe func(stage string, status StageStatus, d time.Duration)
	now     func() time.Time
}

func (r *stageRunner) run(ctx context.Context, state *runState) ([]StageRecord, error) {
	records := make([]StageRecord, 0, len(r.stages))

	for i, stage := range r.stages {
		record := StageRecord{Name: stage.Name, StartedAt: r.now()}

		if stage.Skip != nil && stage.Skip(state) {
			record.Status = StageSkipped
			record.FinishedAt = record.StartedAt
			records = append(records, record)
			r.logger.Info("Migration stage skipped", zap.String("stage", stage.Name))
			continue
		}

		r.logger.Debug("Executing migration stage",
			zap.String("stage", stage.Name),
			zap.Int("stage_number", i+1),
			zap.Int("total_stages", len(r.stages)),
		)

		err := ctx.Err()
		if err == nil {
			err = stage.Execute(ctx, state)
		}

		record.FinishedAt = r.now()
		record.Duration = record.FinishedAt.Sub(record.StartedAt)
		if err != nil {
			record.Status = StageFailed
			record.Error = err.Error()
			records = append(records, record)
			r.observe(stage.Name, StageFailed, record.Duration)
			r.logger.Error("Migration stage failed",
				zap.String("stage", stage.Name),
				zap.Error(err),
			)
			return records, fmt.Errorf("migration failed at stage %s: %w", stage.Name, err)
		}

		record.Status = StageCompleted
		records = append(records, record)
		r.observe(stage.Name, StageCompleted, record.Duration)
		r.logger.Info("Migration stage completed",
			zap.String("stage", stage.Name),
			zap.Duration("duration", record.Duration),
		)
	}

	return records, nil
}
