package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/gradebatch/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotScoreable is returned by GetRubric when an assignment resolves to a
// worksheet that is missing its answer key or has a non-positive point total.
// Grading against such a record is not meaningful.
var ErrNotScoreable = errors.New("worksheet is not scoreable")

// Store is the answer-key store: the durable mapping from generated
// worksheets to their answer keys, rubrics, and published assignments.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the store at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer at a time; funneling all mutations through a
	// single connection keeps record replacement atomic.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS worksheets (
		worksheet_id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		grade_level TEXT NOT NULL DEFAULT '',
		answer_key TEXT NOT NULL DEFAULT '',
		rubric TEXT NOT NULL DEFAULT '[]',
		total_points INTEGER NOT NULL DEFAULT 0,
		assignment_id TEXT,
		course_id TEXT,
		course_name TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assignment_index (
		assignment_id TEXT PRIMARY KEY,
		worksheet_id TEXT NOT NULL,
		FOREIGN KEY (worksheet_id) REFERENCES worksheets(worksheet_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Put upserts a worksheet record keyed by worksheet_id. The whole row is
// replaced, so a repeated Put with the same record is a no-op.
func (s *Store) Put(rec model.WorksheetRecord) error {
	if rec.WorksheetID == "" {
		return fmt.Errorf("put worksheet: empty worksheet_id")
	}
	rubricJSON, err := json.Marshal(rec.Rubric)
	if err != nil {
		return fmt.Errorf("marshal rubric: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var assignmentID, courseID, courseName *string
	if rec.AssignmentLink != nil {
		assignmentID = &rec.AssignmentLink.AssignmentID
		courseID = &rec.AssignmentLink.CourseID
		courseName = &rec.AssignmentLink.CourseName
	}

	_, err = s.db.Exec(
		`INSERT INTO worksheets (worksheet_id, title, subject, grade_level, answer_key, rubric, total_points, assignment_id, course_id, course_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(worksheet_id) DO UPDATE SET
			title = excluded.title,
			subject = excluded.subject,
			grade_level = excluded.grade_level,
			answer_key = excluded.answer_key,
			rubric = excluded.rubric,
			total_points = excluded.total_points,
			assignment_id = excluded.assignment_id,
			course_id = excluded.course_id,
			course_name = excluded.course_name`,
		rec.WorksheetID, rec.Title, rec.Subject, rec.GradeLevel, rec.AnswerKeyContent,
		string(rubricJSON), rec.TotalPoints, assignmentID, courseID, courseName, createdAt,
	)
	return err
}

// Get returns a worksheet record by ID, or (nil, nil) when it does not exist.
func (s *Store) Get(worksheetID string) (*model.WorksheetRecord, error) {
	var (
		rec                                model.WorksheetRecord
		rubricJSON                         string
		assignmentID, courseID, courseName sql.NullString
	)
	err := s.db.QueryRow(
		`SELECT worksheet_id, title, subject, grade_level, answer_key, rubric, total_points, assignment_id, course_id, course_name, created_at
		 FROM worksheets WHERE worksheet_id = ?`, worksheetID,
	).Scan(&rec.WorksheetID, &rec.Title, &rec.Subject, &rec.GradeLevel, &rec.AnswerKeyContent,
		&rubricJSON, &rec.TotalPoints, &assignmentID, &courseID, &courseName, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rubricJSON), &rec.Rubric); err != nil {
		return nil, fmt.Errorf("unmarshal rubric for %s: %w", worksheetID, err)
	}
	if assignmentID.Valid {
		rec.AssignmentLink = &model.AssignmentLink{
			AssignmentID: assignmentID.String,
			CourseID:     courseID.String,
			CourseName:   courseName.String,
		}
	}
	return &rec, nil
}

// LinkToAssignment records that a worksheet was published as a classroom
// assignment and indexes it for rubric lookup. Returns false when the
// worksheet is unknown. Re-linking overwrites the previous link.
func (s *Store) LinkToAssignment(worksheetID, assignmentID, courseID, courseName string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE worksheets SET assignment_id = ?, course_id = ?, course_name = ? WHERE worksheet_id = ?`,
		assignmentID, courseID, courseName, worksheetID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	_, err = tx.Exec(
		`INSERT INTO assignment_index (assignment_id, worksheet_id) VALUES (?, ?)
		 ON CONFLICT(assignment_id) DO UPDATE SET worksheet_id = ?`,
		assignmentID, worksheetID, worksheetID,
	)
	if err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// GetRubric resolves an assignment to its rubric through the assignment
// index. Returns (nil, nil) when no worksheet was ever linked to the
// assignment, and ErrNotScoreable when the linked worksheet is missing its
// answer key or point total.
func (s *Store) GetRubric(assignmentID string) (*model.RubricInfo, error) {
	var worksheetID string
	err := s.db.QueryRow(
		`SELECT worksheet_id FROM assignment_index WHERE assignment_id = ?`, assignmentID,
	).Scan(&worksheetID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec, err := s.Get(worksheetID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		// Index row survived its worksheet; treat as never linked.
		return nil, nil
	}
	if !rec.Scoreable() {
		return nil, fmt.Errorf("worksheet %s: %w", worksheetID, ErrNotScoreable)
	}

	return &model.RubricInfo{
		WorksheetID:      rec.WorksheetID,
		Title:            rec.Title,
		Subject:          rec.Subject,
		GradeLevel:       rec.GradeLevel,
		AnswerKeyContent: rec.AnswerKeyContent,
		Sections:         rec.Rubric,
		TotalPoints:      rec.TotalPoints,
	}, nil
}

// Delete removes a worksheet and its assignment index entries. Returns false
// when the worksheet did not exist.
func (s *Store) Delete(worksheetID string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM worksheets WHERE worksheet_id = ?`, worksheetID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.Exec(`DELETE FROM assignment_index WHERE worksheet_id = ?`, worksheetID); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// List returns all worksheet records, newest first.
func (s *Store) List() ([]model.WorksheetRecord, error) {
	rows, err := s.db.Query(
		`SELECT worksheet_id FROM worksheets ORDER BY created_at DESC, worksheet_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var records []model.WorksheetRecord
	for _, id := range ids {
		rec, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, nil
}

// WorksheetCount returns the number of stored worksheets.
func (s *Store) WorksheetCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM worksheets`).Scan(&count)
	return count, err
}
