// Package handler exposes the grading pipeline and answer-key store over
// HTTP for upstream worksheet-publishing code.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/gradebatch/internal/model"
	"github.com/pavelanni/gradebatch/internal/roster"
	"github.com/pavelanni/gradebatch/internal/store"
)

// BatchGrader grades a batch of submissions. *grader.Coordinator satisfies it.
type BatchGrader interface {
	GradeBatch(ctx context.Context, assignmentID string, tasks []model.SubmissionTask) (*model.BatchReport, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	batch     BatchGrader
	tokenHash string // bcrypt hash of the API token; empty disables auth
}

// New creates a new Handler.
func New(s *store.Store, b BatchGrader, tokenHash string) *Handler {
	return &Handler{store: s, batch: b, tokenHash: tokenHash}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.requireToken)
	r.Post("/worksheets", h.handlePutWorksheet)
	r.Post("/worksheets/link", h.handleLinkWorksheet)
	r.Delete("/worksheets", h.handleDeleteWorksheet)
	r.Get("/worksheets", h.handleListWorksheets)
	r.Get("/assignments/{assignmentID}/rubric", h.handleGetRubric)
	r.Post("/assignments/{assignmentID}/grade", h.handleGradeBatch)
}

func (h *Handler) handlePutWorksheet(w http.ResponseWriter, r *http.Request) {
	var rec model.WorksheetRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "invalid worksheet JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if rec.WorksheetID == "" {
		http.Error(w, "worksheet_id is required", http.StatusBadRequest)
		return
	}
	if err := h.store.Put(rec); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"worksheet_id": rec.WorksheetID})
}

type linkRequest struct {
	WorksheetID  string `json:"worksheet_id"`
	AssignmentID string `json:"assignment_id"`
	CourseID     string `json:"course_id"`
	CourseName   string `json:"course_name"`
}

func (h *Handler) handleLinkWorksheet(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid link JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.WorksheetID == "" || req.AssignmentID == "" {
		http.Error(w, "worksheet_id and assignment_id are required", http.StatusBadRequest)
		return
	}
	ok, err := h.store.LinkToAssignment(req.WorksheetID, req.AssignmentID, req.CourseID, req.CourseName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "worksheet not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"worksheet_id":  req.WorksheetID,
		"assignment_id": req.AssignmentID,
	})
}

func (h *Handler) handleDeleteWorksheet(w http.ResponseWriter, r *http.Request) {
	worksheetID := r.URL.Query().Get("id")
	if worksheetID == "" {
		http.Error(w, "id query parameter is required", http.StatusBadRequest)
		return
	}
	ok, err := h.store.Delete(worksheetID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "worksheet not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListWorksheets(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleGetRubric(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "assignmentID")
	rubric, err := h.store.GetRubric(assignmentID)
	if errors.Is(err, store.ErrNotScoreable) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rubric == nil {
		http.Error(w, "no worksheet linked to assignment", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rubric)
}

func (h *Handler) handleGradeBatch(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "assignmentID")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	tasks, err := roster.Parse(body, assignmentID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.batch.GradeBatch(r.Context(), assignmentID, tasks)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
