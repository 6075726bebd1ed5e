package model

import (
	"fmt"
	"math"
	"time"
)

// RubricSection is one graded section of a worksheet with its maximum points.
type RubricSection struct {
	SectionName    string `json:"section_name"`
	PointsPossible int    `json:"points_possible"`
}

// AssignmentLink records which classroom assignment a worksheet was published to.
// It is set at most once, by the publish step, and immutable thereafter.
type AssignmentLink struct {
	AssignmentID string `json:"assignment_id"`
	CourseID     string `json:"course_id"`
	CourseName   string `json:"course_name"`
}

// WorksheetRecord is the persistent record for one generated worksheet:
// its answer key, rubric, and (once published) the assignment it backs.
type WorksheetRecord struct {
	WorksheetID      string          `json:"worksheet_id"`
	Title            string          `json:"title"`
	Subject          string          `json:"subject"`
	GradeLevel       string          `json:"grade_level"`
	AnswerKeyContent string          `json:"answer_key_content"`
	Rubric           []RubricSection `json:"rubric"`
	TotalPoints      int             `json:"total_points"`
	AssignmentLink   *AssignmentLink `json:"assignment_link,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Scoreable reports whether the record carries everything grading needs.
// A worksheet without an answer key or with a non-positive point total
// cannot be meaningfully graded.
func (w WorksheetRecord) Scoreable() bool {
	return w.AnswerKeyContent != "" && w.TotalPoints > 0
}

// RubricInfo is the slice of a WorksheetRecord the grading pipeline needs,
// resolved once per batch and read-only afterwards.
type RubricInfo struct {
	WorksheetID      string
	Title            string
	Subject          string
	GradeLevel       string
	AnswerKeyContent string
	Sections         []RubricSection
	TotalPoints      int
}

// RefKind discriminates the shapes a submitted document reference can take.
type RefKind string

const (
	RefURL    RefKind = "url"
	RefFile   RefKind = "file"
	RefInline RefKind = "inline"
)

// DocumentRef points at a student's submitted document. Exactly one of the
// payload fields is meaningful, selected by Kind.
type DocumentRef struct {
	Kind RefKind `json:"kind"`
	URL  string  `json:"url,omitempty"`
	Path string  `json:"path,omitempty"`
	Data string  `json:"data,omitempty"` // base64 inline payload
}

// Validate checks that the reference carries the payload its kind requires.
func (r DocumentRef) Validate() error {
	switch r.Kind {
	case RefURL:
		if r.URL == "" {
			return fmt.Errorf("document ref kind %q requires url", r.Kind)
		}
	case RefFile:
		if r.Path == "" {
			return fmt.Errorf("document ref kind %q requires path", r.Kind)
		}
	case RefInline:
		if r.Data == "" {
			return fmt.Errorf("document ref kind %q requires data", r.Kind)
		}
	default:
		return fmt.Errorf("unknown document ref kind %q", r.Kind)
	}
	return nil
}

// SubmissionTask is one student's submission to grade. Transient: it exists
// only for the duration of a batch.
type SubmissionTask struct {
	AssignmentID string      `json:"assignment_id"`
	StudentID    string      `json:"student_id"`
	StudentName  string      `json:"student_name"`
	DocumentRef  DocumentRef `json:"document_ref"`
}

// SectionScore is the per-section breakdown of a graded submission.
type SectionScore struct {
	SectionName    string `json:"section_name"`
	PointsEarned   int    `json:"points_earned"`
	PointsPossible int    `json:"points_possible"`
	Feedback       string `json:"feedback"`
}

// Recommendations carries the learning guidance attached to a graded submission.
type Recommendations struct {
	NeedsScaffolding     bool     `json:"needs_scaffolding"`
	ScaffoldingAreas     []string `json:"scaffolding_areas"`
	ReadyForAcceleration bool     `json:"ready_for_acceleration"`
	AccelerationAreas    []string `json:"acceleration_areas"`
	NextSteps            string   `json:"next_steps"`
}

// GradingOutcome is the result of grading one submission. Failures share the
// envelope shape with successes so aggregation never has to branch on type.
type GradingOutcome struct {
	StudentID       string          `json:"student_id"`
	StudentName     string          `json:"student_name"`
	AssignmentID    string          `json:"assignment_id"`
	GradedAt        time.Time       `json:"graded_at"`
	Success         bool            `json:"success"`
	Score           int             `json:"score"`
	TotalPossible   int             `json:"total_possible"`
	Percentage      int             `json:"percentage"`
	SectionScores   []SectionScore  `json:"section_scores"`
	OverallFeedback string          `json:"overall_feedback"`
	Recommendations Recommendations `json:"recommendations"`
}

// FailedOutcome builds the uniform failure envelope for a task: zero scores,
// no recommendations signal, and the failure reason in the overall feedback.
func FailedOutcome(task SubmissionTask, reason string) GradingOutcome {
	return GradingOutcome{
		StudentID:       task.StudentID,
		StudentName:     task.StudentName,
		AssignmentID:    task.AssignmentID,
		GradedAt:        time.Now(),
		Success:         false,
		OverallFeedback: reason,
		Recommendations: Recommendations{
			NextSteps: "Grading could not be completed; a teacher should review this submission manually.",
		},
	}
}

// Percent computes the rounded percentage used everywhere a percentage is
// reported. Zero when total is zero.
func Percent(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(score) / float64(total)))
}

// BatchReport aggregates the outcomes of one batch grading run.
type BatchReport struct {
	BatchID           string           `json:"batch_id"`
	AssignmentID      string           `json:"assignment_id"`
	WorksheetTitle    string           `json:"worksheet_title"`
	GradedAt          time.Time        `json:"graded_at"`
	Outcomes          []GradingOutcome `json:"outcomes"`
	SuccessCount      int              `json:"success_count"`
	FailureCount      int              `json:"failure_count"`
	AveragePercentage int              `json:"average_percentage"`
	ScaffoldingList   []string         `json:"scaffolding_list"`
	AccelerationList  []string         `json:"acceleration_list"`
}
