package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/gradebatch/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// ScoreResult holds the LLM's assessment of one submission, normalized
// against the rubric so every score is within bounds.
type ScoreResult struct {
	Score           int                   `json:"score"`
	TotalPossible   int                   `json:"total_possible"`
	SectionScores   []model.SectionScore  `json:"section_scores"`
	OverallFeedback string                `json:"overall_feedback"`
	Recommendations model.Recommendations `json:"recommendations"`
}

// scoreResponse is the raw JSON shape requested from the model. It is
// validated and normalized before anything downstream sees it.
type scoreResponse struct {
	SectionScores   []sectionResponse     `json:"section_scores"`
	OverallFeedback string                `json:"overall_feedback"`
	Recommendations model.Recommendations `json:"recommendations"`
}

type sectionResponse struct {
	SectionName  string `json:"section_name"`
	PointsEarned int    `json:"points_earned"`
	Feedback     string `json:"feedback"`
}

// Client wraps an OpenAI-compatible API client used for structured scoring.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new scoring client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Ping verifies the API endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM endpoint unreachable: %w", err)
	}
	return nil
}

// Score grades extracted submission text against the rubric and answer key.
// Scores in the returned result always satisfy 0 <= score <= total and
// score == sum of section scores; out-of-range model output is clamped, not
// rejected, so a human grader always gets a usable number.
func (c *Client) Score(ctx context.Context, extractedText string, rubric *model.RubricInfo, studentName string) (*ScoreResult, error) {
	systemPrompt := buildScoringSystemPrompt(rubric)
	userPrompt := buildSubmissionPrompt(extractedText, studentName)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM scoring API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM scoring response", "student", studentName, "raw", raw)

	var parsed scoreResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse scoring response: %w (raw: %s)", err, raw)
	}

	return normalizeScore(parsed, rubric), nil
}

// normalizeScore fits the model's raw output to the rubric: sections are
// matched by name, each earned value is clamped to [0, possible], sections
// the model skipped are zero-filled, and sections it invented are dropped.
// The total is the section sum, clamped to [0, TotalPoints].
func normalizeScore(resp scoreResponse, rubric *model.RubricInfo) *ScoreResult {
	earned := make(map[string]int)
	feedback := make(map[string]string)
	for _, ss := range resp.SectionScores {
		earned[ss.SectionName] = ss.PointsEarned
		feedback[ss.SectionName] = ss.Feedback
	}

	sections := make([]model.SectionScore, 0, len(rubric.Sections))
	total := 0
	for _, rs := range rubric.Sections {
		points := earned[rs.SectionName]
		if points < 0 {
			points = 0
		}
		if points > rs.PointsPossible {
			points = rs.PointsPossible
		}
		total += points
		sections = append(sections, model.SectionScore{
			SectionName:    rs.SectionName,
			PointsEarned:   points,
			PointsPossible: rs.PointsPossible,
			Feedback:       feedback[rs.SectionName],
		})
	}

	if total < 0 {
		total = 0
	}
	if total > rubric.TotalPoints {
		total = rubric.TotalPoints
	}

	return &ScoreResult{
		Score:           total,
		TotalPossible:   rubric.TotalPoints,
		SectionScores:   sections,
		OverallFeedback: resp.OverallFeedback,
		Recommendations: resp.Recommendations,
	}
}

func buildScoringSystemPrompt(rubric *model.RubricInfo) string {
	var sb strings.Builder
	sb.WriteString("You are grading a student worksheet submission with partial credit.\n\n")
	if rubric.Title != "" {
		sb.WriteString("WORKSHEET: " + rubric.Title + "\n")
	}
	if rubric.Subject != "" {
		sb.WriteString("SUBJECT: " + rubric.Subject + "\n")
	}
	if rubric.GradeLevel != "" {
		sb.WriteString("GRADE LEVEL: " + rubric.GradeLevel + "\n")
	}
	sb.WriteString(fmt.Sprintf("TOTAL POINTS: %d\n\n", rubric.TotalPoints))

	sb.WriteString("RUBRIC SECTIONS:\n")
	for _, s := range rubric.Sections {
		sb.WriteString(fmt.Sprintf("- %s (%d points)\n", s.SectionName, s.PointsPossible))
	}

	sb.WriteString("\nANSWER KEY:\n" + rubric.AnswerKeyContent + "\n\n")

	sb.WriteString("PARTIAL CREDIT BANDS (per question, as a fraction of its points):\n")
	sb.WriteString("- 100%: fully correct answer\n")
	sb.WriteString("- 75%: correct approach with a minor error\n")
	sb.WriteString("- 50%: partially correct\n")
	sb.WriteString("- 25%: minimal understanding shown\n")
	sb.WriteString("- 0%: incorrect or missing\n\n")

	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString("- Grade each rubric section against the answer key using the credit bands.\n")
	sb.WriteString("- Never award more points to a section than it is worth.\n")
	sb.WriteString("- Give brief, constructive feedback per section and overall.\n")
	sb.WriteString("- If the submission text is empty or mentions an extraction failure, award 0 points and say so in the feedback.\n")
	sb.WriteString("- Recommend scaffolding areas when the student struggles, acceleration areas when they excel.\n")

	sb.WriteString("\nRespond ONLY with a JSON object with these fields:\n")
	sb.WriteString(`{"section_scores": [{"section_name": "<rubric section>", "points_earned": <int>, "feedback": "<brief>"}], "overall_feedback": "<summary>", "recommendations": {"needs_scaffolding": <bool>, "scaffolding_areas": ["..."], "ready_for_acceleration": <bool>, "acceleration_areas": ["..."], "next_steps": "<advice>"}}`)
	sb.WriteString("\n")

	return sb.String()
}

func buildSubmissionPrompt(extractedText, studentName string) string {
	var sb strings.Builder
	sb.WriteString("STUDENT: " + studentName + "\n\n")
	sb.WriteString("SUBMISSION TEXT:\n---\n")
	sb.WriteString(extractedText)
	sb.WriteString("\n---\n")
	return sb.String()
}
