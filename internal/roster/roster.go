// Package roster loads submission lists produced by the classroom roster
// provider.
package roster

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pavelanni/gradebatch/internal/model"
)

// entry is the wire shape of one roster row.
type entry struct {
	StudentID   string            `json:"student_id"`
	StudentName string            `json:"student_name"`
	DocumentRef model.DocumentRef `json:"document_ref"`
}

// Load reads a roster JSON file and returns the submission tasks for one
// assignment. Every row is validated; a row with a malformed document
// reference fails the whole load, since silently dropping a student is worse
// than asking for a corrected roster.
func Load(path, assignmentID string) ([]model.SubmissionTask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	return Parse(data, assignmentID)
}

// Parse decodes roster JSON into submission tasks.
func Parse(data []byte, assignmentID string) ([]model.SubmissionTask, error) {
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	tasks := make([]model.SubmissionTask, 0, len(entries))
	for i, e := range entries {
		if e.StudentID == "" {
			return nil, fmt.Errorf("roster entry %d: missing student_id", i)
		}
		if err := e.DocumentRef.Validate(); err != nil {
			return nil, fmt.Errorf("roster entry %d (%s): %w", i, e.StudentID, err)
		}
		tasks = append(tasks, model.SubmissionTask{
			AssignmentID: assignmentID,
			StudentID:    e.StudentID,
			StudentName:  e.StudentName,
			DocumentRef:  e.DocumentRef,
		})
	}
	return tasks, nil
}
