// Package grader drives submissions through extraction and scoring, and
// fans whole batches out across the pipeline.
package grader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/gradebatch/internal/extract"
	"github.com/pavelanni/gradebatch/internal/llm"
	"github.com/pavelanni/gradebatch/internal/model"
)

// DefaultUnitTimeout bounds the wall-clock time one submission may spend in
// extraction plus scoring. A hung external call becomes a failure outcome
// instead of stalling the batch.
const DefaultUnitTimeout = 3 * time.Minute

// Scorer produces a structured score for extracted submission text.
// *llm.Client satisfies it.
type Scorer interface {
	Score(ctx context.Context, extractedText string, rubric *model.RubricInfo, studentName string) (*llm.ScoreResult, error)
}

// Orchestrator grades a single submission: extract, then score. It holds no
// state beyond its injected dependencies and never persists anything.
type Orchestrator struct {
	extractor extract.Extractor
	scorer    Scorer
	timeout   time.Duration
}

// NewOrchestrator creates an orchestrator. A non-positive timeout selects
// DefaultUnitTimeout.
func NewOrchestrator(extractor extract.Extractor, scorer Scorer, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultUnitTimeout
	}
	return &Orchestrator{extractor: extractor, scorer: scorer, timeout: timeout}
}

// GradeSubmission runs one task through the pipeline and always returns an
// outcome. Extraction failure degrades to scoring against placeholder text
// describing the failure, so a reviewable zero-score record is produced
// instead of a missing one. Scoring failure is terminal for the task and
// yields a failure outcome.
func (o *Orchestrator) GradeSubmission(ctx context.Context, task model.SubmissionTask, rubric *model.RubricInfo) model.GradingOutcome {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	text, err := o.extractor.Extract(ctx, task.DocumentRef)
	switch {
	case err != nil:
		slog.Warn("extraction failed, grading degraded",
			"student", task.StudentID, "assignment", task.AssignmentID, "error", err)
		text = fmt.Sprintf("[The submitted document could not be extracted: %v. "+
			"Award zero credit and note the extraction problem in the feedback.]", err)
	case text == "":
		slog.Info("extraction returned no text",
			"student", task.StudentID, "assignment", task.AssignmentID)
		text = "[The submitted document was retrieved but contained no readable text. " +
			"Award zero credit and note this in the feedback.]"
	}

	result, err := o.scorer.Score(ctx, text, rubric, task.StudentName)
	if err != nil {
		reason := fmt.Sprintf("scoring failed: %v", err)
		if ctx.Err() != nil {
			reason = fmt.Sprintf("grading timed out after %s", o.timeout)
		}
		slog.Error("scoring failed",
			"student", task.StudentID, "assignment", task.AssignmentID, "error", err)
		return model.FailedOutcome(task, reason)
	}

	return model.GradingOutcome{
		StudentID:       task.StudentID,
		StudentName:     task.StudentName,
		AssignmentID:    task.AssignmentID,
		GradedAt:        time.Now(),
		Success:         true,
		Score:           result.Score,
		TotalPossible:   result.TotalPossible,
		Percentage:      model.Percent(result.Score, result.TotalPossible),
		SectionScores:   result.SectionScores,
		OverallFeedback: result.OverallFeedback,
		Recommendations: result.Recommendations,
	}
}
