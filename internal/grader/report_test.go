package grader

import (
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/gradebatch/internal/model"
)

func TestFormatOutcome(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		out := FormatOutcome(model.GradingOutcome{
			StudentID:     "s-1",
			StudentName:   "Ada",
			Success:       true,
			Score:         88,
			TotalPossible: 100,
			Percentage:    88,
			SectionScores: []model.SectionScore{
				{SectionName: "Fractions", PointsEarned: 45, PointsPossible: 50, Feedback: "one slip"},
			},
			OverallFeedback: "strong work",
			Recommendations: model.Recommendations{
				ReadyForAcceleration: true,
				AccelerationAreas:    []string{"Fractions"},
				NextSteps:            "try mixed numbers",
			},
		})
		for _, want := range []string{"Ada", "88/100", "Fractions: 45/50", "one slip", "strong work", "try mixed numbers"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("failure", func(t *testing.T) {
		out := FormatOutcome(model.GradingOutcome{
			StudentName:     "Bob",
			OverallFeedback: "scoring failed: provider down",
		})
		if !strings.Contains(out, "GRADING FAILED") {
			t.Errorf("failure output should be flagged:\n%s", out)
		}
		if !strings.Contains(out, "provider down") {
			t.Errorf("failure output should carry the reason:\n%s", out)
		}
	})
}

func TestFormatBatchReport(t *testing.T) {
	report := &model.BatchReport{
		BatchID:        "b-1",
		AssignmentID:   "a-1",
		WorksheetTitle: "Fractions Practice",
		GradedAt:       time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC),
		Outcomes: []model.GradingOutcome{
			{StudentName: "Ada", Success: true, Score: 100, TotalPossible: 100, Percentage: 100},
			{StudentName: "Bob", OverallFeedback: "no rubric"},
		},
		SuccessCount:      1,
		FailureCount:      1,
		AveragePercentage: 100,
		AccelerationList:  []string{"Ada"},
	}

	out := FormatBatchReport(report)
	for _, want := range []string{
		"Assignment: a-1",
		"Fractions Practice",
		"2 (1 graded, 1 failed)",
		"Class average: 100%",
		"Ready for acceleration: Ada",
		"GRADING FAILED",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
