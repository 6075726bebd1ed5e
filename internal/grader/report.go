package grader

import (
	"fmt"
	"strings"

	"github.com/pavelanni/gradebatch/internal/model"
)

// FormatOutcome renders one grading outcome as human-readable text.
func FormatOutcome(o model.GradingOutcome) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)\n", o.StudentName, o.StudentID)
	if !o.Success {
		fmt.Fprintf(&sb, "  GRADING FAILED: %s\n", o.OverallFeedback)
		return sb.String()
	}

	fmt.Fprintf(&sb, "  Score: %d/%d (%d%%)\n", o.Score, o.TotalPossible, o.Percentage)
	for _, ss := range o.SectionScores {
		fmt.Fprintf(&sb, "  - %s: %d/%d", ss.SectionName, ss.PointsEarned, ss.PointsPossible)
		if ss.Feedback != "" {
			fmt.Fprintf(&sb, " - %s", ss.Feedback)
		}
		sb.WriteString("\n")
	}
	if o.OverallFeedback != "" {
		fmt.Fprintf(&sb, "  Feedback: %s\n", o.OverallFeedback)
	}

	rec := o.Recommendations
	if rec.NeedsScaffolding {
		fmt.Fprintf(&sb, "  Needs scaffolding: %s\n", joinOrNone(rec.ScaffoldingAreas))
	}
	if rec.ReadyForAcceleration {
		fmt.Fprintf(&sb, "  Ready for acceleration: %s\n", joinOrNone(rec.AccelerationAreas))
	}
	if rec.NextSteps != "" {
		fmt.Fprintf(&sb, "  Next steps: %s\n", rec.NextSteps)
	}
	return sb.String()
}

// FormatBatchReport renders a whole batch report as human-readable text.
func FormatBatchReport(r *model.BatchReport) string {
	var sb strings.Builder
	sb.WriteString("=== Batch Grading Report ===\n")
	fmt.Fprintf(&sb, "Assignment: %s\n", r.AssignmentID)
	if r.WorksheetTitle != "" {
		fmt.Fprintf(&sb, "Worksheet:  %s\n", r.WorksheetTitle)
	}
	fmt.Fprintf(&sb, "Graded:     %s\n", r.GradedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "Submissions: %d (%d graded, %d failed)\n",
		len(r.Outcomes), r.SuccessCount, r.FailureCount)
	if r.SuccessCount > 0 {
		fmt.Fprintf(&sb, "Class average: %d%%\n", r.AveragePercentage)
	}
	if len(r.ScaffoldingList) > 0 {
		fmt.Fprintf(&sb, "Needs scaffolding: %s\n", strings.Join(r.ScaffoldingList, ", "))
	}
	if len(r.AccelerationList) > 0 {
		fmt.Fprintf(&sb, "Ready for acceleration: %s\n", strings.Join(r.AccelerationList, ", "))
	}

	sb.WriteString("\n--- Students ---\n")
	for _, o := range r.Outcomes {
		sb.WriteString(FormatOutcome(o))
	}
	return sb.String()
}

func joinOrNone(areas []string) string {
	if len(areas) == 0 {
		return "(no specific areas listed)"
	}
	return strings.Join(areas, ", ")
}
