package store

import (
	"errors"
	"testing"

	"github.com/pavelanni/gradebatch/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testWorksheet(id string) model.WorksheetRecord {
	return model.WorksheetRecord{
		WorksheetID:      id,
		Title:            "Fractions Practice",
		Subject:          "Math",
		GradeLevel:       "5",
		AnswerKeyContent: "<ol><li>3/4</li><li>5/8</li></ol>",
		Rubric: []model.RubricSection{
			{SectionName: "Fractions", PointsPossible: 50},
			{SectionName: "Word Problems", PointsPossible: 50},
		},
		TotalPoints: 100,
	}
}

func TestPutAndGet(t *testing.T) {
	s := newTestStore(t)

	// Missing worksheet returns (nil, nil).
	rec, err := s.Get("nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Fatal("expected nil record for unknown ID")
	}

	if err := s.Put(testWorksheet("ws-1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rec, err = s.Get("ws-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil {
		t.Fatal("expected record")
	}
	if rec.Title != "Fractions Practice" {
		t.Errorf("expected title 'Fractions Practice', got %q", rec.Title)
	}
	if len(rec.Rubric) != 2 {
		t.Fatalf("expected 2 rubric sections, got %d", len(rec.Rubric))
	}
	if rec.Rubric[0].SectionName != "Fractions" || rec.Rubric[0].PointsPossible != 50 {
		t.Errorf("unexpected first rubric section: %+v", rec.Rubric[0])
	}
	if rec.TotalPoints != 100 {
		t.Errorf("expected 100 total points, got %d", rec.TotalPoints)
	}
	if rec.AssignmentLink != nil {
		t.Error("expected no assignment link for fresh record")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestPutIsIdempotentUpsert(t *testing.T) {
	s := newTestStore(t)

	ws := testWorksheet("ws-1")
	if err := s.Put(ws); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ws.Title = "Fractions Practice v2"
	ws.TotalPoints = 80
	if err := s.Put(ws); err != nil {
		t.Fatalf("Put again: %v", err)
	}

	count, err := s.WorksheetCount()
	if err != nil {
		t.Fatalf("WorksheetCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 worksheet after double Put, got %d", count)
	}

	rec, _ := s.Get("ws-1")
	if rec.Title != "Fractions Practice v2" {
		t.Errorf("expected updated title, got %q", rec.Title)
	}
	if rec.TotalPoints != 80 {
		t.Errorf("expected updated total points 80, got %d", rec.TotalPoints)
	}
}

func TestPutRejectsEmptyID(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put(model.WorksheetRecord{}); err == nil {
		t.Fatal("expected error for empty worksheet_id")
	}
}

func TestLinkToAssignment(t *testing.T) {
	s := newTestStore(t)

	// Unknown worksheet links nothing.
	ok, err := s.LinkToAssignment("nope", "a-1", "c-1", "Math 5")
	if err != nil {
		t.Fatalf("LinkToAssignment: %v", err)
	}
	if ok {
		t.Fatal("expected false for unknown worksheet")
	}

	if err := s.Put(testWorksheet("ws-1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ok, err = s.LinkToAssignment("ws-1", "a-1", "c-1", "Math 5")
	if err != nil {
		t.Fatalf("LinkToAssignment: %v", err)
	}
	if !ok {
		t.Fatal("expected link to succeed")
	}

	rec, _ := s.Get("ws-1")
	if rec.AssignmentLink == nil {
		t.Fatal("expected assignment link to be set")
	}
	if rec.AssignmentLink.AssignmentID != "a-1" || rec.AssignmentLink.CourseName != "Math 5" {
		t.Errorf("unexpected link: %+v", rec.AssignmentLink)
	}

	// Last write wins on re-link.
	ok, err = s.LinkToAssignment("ws-1", "a-2", "c-1", "Math 5")
	if err != nil || !ok {
		t.Fatalf("re-link: ok=%v err=%v", ok, err)
	}
	rubric, err := s.GetRubric("a-2")
	if err != nil {
		t.Fatalf("GetRubric: %v", err)
	}
	if rubric == nil {
		t.Fatal("expected rubric for re-linked assignment")
	}
}

func TestGetRubric(t *testing.T) {
	s := newTestStore(t)

	// Never linked.
	rubric, err := s.GetRubric("a-1")
	if err != nil {
		t.Fatalf("GetRubric: %v", err)
	}
	if rubric != nil {
		t.Fatal("expected nil rubric for unlinked assignment")
	}

	if err := s.Put(testWorksheet("ws-1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.LinkToAssignment("ws-1", "a-1", "c-1", "Math 5"); err != nil {
		t.Fatalf("LinkToAssignment: %v", err)
	}

	rubric, err = s.GetRubric("a-1")
	if err != nil {
		t.Fatalf("GetRubric: %v", err)
	}
	if rubric == nil {
		t.Fatal("expected rubric")
	}
	if rubric.WorksheetID != "ws-1" {
		t.Errorf("expected worksheet ws-1, got %q", rubric.WorksheetID)
	}
	if rubric.TotalPoints != 100 {
		t.Errorf("expected 100 total points, got %d", rubric.TotalPoints)
	}
	if len(rubric.Sections) != 2 {
		t.Errorf("expected 2 sections, got %d", len(rubric.Sections))
	}
	if rubric.AnswerKeyContent == "" {
		t.Error("expected answer key content")
	}
}

func TestGetRubricNotScoreable(t *testing.T) {
	s := newTestStore(t)

	ws := testWorksheet("ws-1")
	ws.AnswerKeyContent = ""
	if err := s.Put(ws); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.LinkToAssignment("ws-1", "a-1", "c-1", "Math 5"); err != nil {
		t.Fatalf("LinkToAssignment: %v", err)
	}

	_, err := s.GetRubric("a-1")
	if !errors.Is(err, ErrNotScoreable) {
		t.Fatalf("expected ErrNotScoreable, got %v", err)
	}

	// Zero total points is equally unusable.
	ws = testWorksheet("ws-2")
	ws.TotalPoints = 0
	if err := s.Put(ws); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.LinkToAssignment("ws-2", "a-2", "c-1", "Math 5"); err != nil {
		t.Fatalf("LinkToAssignment: %v", err)
	}
	_, err = s.GetRubric("a-2")
	if !errors.Is(err, ErrNotScoreable) {
		t.Fatalf("expected ErrNotScoreable for zero points, got %v", err)
	}
}

func TestDeleteCascadesToIndex(t *testing.T) {
	s := newTestStore(t)

	// Deleting a missing worksheet is not an error, just false.
	ok, err := s.Delete("nope")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok {
		t.Fatal("expected false for missing worksheet")
	}

	if err := s.Put(testWorksheet("ws-1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.LinkToAssignment("ws-1", "a-1", "c-1", "Math 5"); err != nil {
		t.Fatalf("LinkToAssignment: %v", err)
	}

	ok, err = s.Delete("ws-1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !ok {
		t.Fatal("expected delete to succeed")
	}

	// Index entry must be gone with the record.
	rubric, err := s.GetRubric("a-1")
	if err != nil {
		t.Fatalf("GetRubric after delete: %v", err)
	}
	if rubric != nil {
		t.Fatal("expected nil rubric after worksheet deletion")
	}
}

func TestList(t *testing.T) {
	s := newTestStore(t)

	records, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty list, got %d", len(records))
	}

	if err := s.Put(testWorksheet("ws-1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(testWorksheet("ws-2")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	records, err = s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}
