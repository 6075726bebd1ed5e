package grader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/gradebatch/internal/model"
	"github.com/pavelanni/gradebatch/internal/store"
)

// DefaultWorkers caps how many submissions are graded at once. The external
// extraction and scoring providers are rate limited, so the fan-out is too.
const DefaultWorkers = 4

// RubricResolver looks up the rubric linked to an assignment. *store.Store
// satisfies it.
type RubricResolver interface {
	GetRubric(assignmentID string) (*model.RubricInfo, error)
}

// Coordinator grades batches of submissions: rubric resolved once, tasks
// fanned out to the orchestrator, outcomes collected into a report.
type Coordinator struct {
	resolver RubricResolver
	orch     *Orchestrator
	workers  int
}

// NewCoordinator creates a batch coordinator. A non-positive workers value
// selects DefaultWorkers.
func NewCoordinator(resolver RubricResolver, orch *Orchestrator, workers int) *Coordinator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Coordinator{resolver: resolver, orch: orch, workers: workers}
}

// GradeBatch grades every task concurrently and returns a report covering
// all of them. One task's failure never drops or aborts another: the report
// always holds exactly len(tasks) outcomes. Only storage-layer errors
// propagate as a returned error; rubric-resolution problems become uniform
// per-task failure outcomes.
func (c *Coordinator) GradeBatch(ctx context.Context, assignmentID string, tasks []model.SubmissionTask) (*model.BatchReport, error) {
	batchID := uuid.NewString()
	started := time.Now()
	slog.Info("starting batch", "batch", batchID, "assignment", assignmentID, "tasks", len(tasks))

	rubric, err := c.resolver.GetRubric(assignmentID)
	if err != nil && !errors.Is(err, store.ErrNotScoreable) {
		return nil, fmt.Errorf("resolve rubric for assignment %s: %w", assignmentID, err)
	}
	if rubric == nil || err != nil {
		reason := "no answer key or rubric is linked to this assignment"
		if err != nil {
			reason = "the linked worksheet is missing its answer key or point total"
		}
		slog.Warn("rubric unavailable, failing whole batch",
			"batch", batchID, "assignment", assignmentID, "reason", reason)
		outcomes := make([]model.GradingOutcome, len(tasks))
		for i, task := range tasks {
			outcomes[i] = model.FailedOutcome(task, reason)
		}
		return buildReport(batchID, assignmentID, "", outcomes), nil
	}

	// Fan out. Each worker writes only its own slot, so no locking is
	// needed; the rubric is read-only for the whole batch.
	outcomes := make([]model.GradingOutcome, len(tasks))
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			outcomes[i] = c.orch.GradeSubmission(ctx, task, rubric)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in their outcomes

	report := buildReport(batchID, assignmentID, rubric.Title, outcomes)
	slog.Info("batch complete",
		"batch", batchID,
		"assignment", assignmentID,
		"succeeded", report.SuccessCount,
		"failed", report.FailureCount,
		"elapsed", time.Since(started).Round(time.Millisecond))
	return report, nil
}

// buildReport computes the aggregate statistics. Every reduction is
// commutative (counts, sums, filters), so outcome order does not matter.
func buildReport(batchID, assignmentID, worksheetTitle string, outcomes []model.GradingOutcome) *model.BatchReport {
	report := &model.BatchReport{
		BatchID:        batchID,
		AssignmentID:   assignmentID,
		WorksheetTitle: worksheetTitle,
		GradedAt:       time.Now(),
		Outcomes:       outcomes,
	}

	percentSum := 0
	for _, o := range outcomes {
		if !o.Success {
			report.FailureCount++
			continue
		}
		report.SuccessCount++
		percentSum += o.Percentage
		if o.Recommendations.NeedsScaffolding {
			report.ScaffoldingList = append(report.ScaffoldingList, o.StudentName)
		}
		if o.Recommendations.ReadyForAcceleration {
			report.AccelerationList = append(report.AccelerationList, o.StudentName)
		}
	}
	if report.SuccessCount > 0 {
		report.AveragePercentage = int(float64(percentSum)/float64(report.SuccessCount) + 0.5)
	}
	// Stable lists regardless of completion order.
	sort.Strings(report.ScaffoldingList)
	sort.Strings(report.AccelerationList)
	return report
}
