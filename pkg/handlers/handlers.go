// Package handlers exposes the document API over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/velesio/docsapi/pkg/apperrors"
	"github.com/velesio/docsapi/pkg/ingestion"
	"github.com/velesio/docsapi/pkg/quiz"
)

// Ingestor is the ingestion surface the API exposes.
type Ingestor interface {
	Ingest(ctx context.Context, name string) (string, error)
	Delete(ctx context.Context, documentID string) error
	ListCollections(ctx context.Context) ([]string, error)
	Sync(ctx context.Context, dryRun bool) (ingestion.SyncReport, error)
}

// Answerer answers a question about one document.
type Answerer interface {
	Answer(ctx context.Context, documentID, question, userID string) (string, error)
}

// TestGenerator builds a test from one document.
type TestGenerator interface {
	Generate(ctx context.Context, documentID string) (quiz.Display, error)
}

// Grader checks a submitted test answer.
type Grader interface {
	Check(ctx context.Context, testID, userID, answer string) (quiz.GradeResult, error)
}

// Handler holds the API dependencies.
type Handler struct {
	ingestor Ingestor
	answerer Answerer
	tests    TestGenerator
	grader   Grader
	logger   *slog.Logger
}

// New creates the API handler.
func New(ingestor Ingestor, answerer Answerer, tests TestGenerator, grader Grader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		ingestor: ingestor,
		answerer: answerer,
		tests:    tests,
		grader:   grader,
		logger:   logger.With("component", "http"),
	}
}

// Register mounts the API routes on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/ingest", h.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/documents/{id}", h.handleDeleteDocument).Methods(http.MethodDelete)
	r.HandleFunc("/collections", h.handleListCollections).Methods(http.MethodGet)
	r.HandleFunc("/sync", h.handleSync).Methods(http.MethodPost)
	r.HandleFunc("/answer", h.handleAnswer).Methods(http.MethodPost)
	r.HandleFunc("/get_test", h.handleGetTest).Methods(http.MethodPost)
	r.HandleFunc("/check_test", h.handleCheckTest).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.handleHealthz).Methods(http.MethodGet)
}

type ingestRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.writeError(w, apperrors.New(apperrors.TypeValidation, "http.ingest", "name is required"))
		return
	}
	documentID, err := h.ingestor.Ingest(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"document_id": documentID})
}

func (h *Handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["id"]
	if err := h.ingestor.Delete(r.Context(), documentID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListCollections(w http.ResponseWriter, r *http.Request) {
	ids, err := h.ingestor.ListCollections(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string][]string{"collections": ids})
}

type syncRequest struct {
	DryRun bool `json:"dry_run"`
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !h.decode(w, r, &req) {
		return
	}
	report, err := h.ingestor.Sync(r.Context(), req.DryRun)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

type answerRequest struct {
	DocumentID string `json:"document_id"`
	Question   string `json:"question"`
	UserID     string `json:"user_id"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.DocumentID == "" || strings.TrimSpace(req.Question) == "" {
		h.writeError(w, apperrors.New(apperrors.TypeValidation, "http.answer", "document_id and question are required"))
		return
	}
	answer, err := h.answerer.Answer(r.Context(), req.DocumentID, req.Question, req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

type getTestRequest struct {
	DocumentID string `json:"document_id"`
}

func (h *Handler) handleGetTest(w http.ResponseWriter, r *http.Request) {
	var req getTestRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.DocumentID == "" {
		h.writeError(w, apperrors.New(apperrors.TypeValidation, "http.get_test", "document_id is required"))
		return
	}
	display, err := h.tests.Generate(r.Context(), req.DocumentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, display)
}

type checkTestRequest struct {
	TestID string `json:"test_id"`
	UserID string `json:"user_id"`
	Answer string `json:"answer"`
}

func (h *Handler) handleCheckTest(w http.ResponseWriter, r *http.Request) {
	var req checkTestRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.TestID == "" || req.Answer == "" {
		h.writeError(w, apperrors.New(apperrors.TypeValidation, "http.check_test", "test_id and answer are required"))
		return
	}
	result, err := h.grader.Check(r.Context(), req.TestID, req.UserID, req.Answer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, apperrors.Wrap(apperrors.TypeValidation, "http.decode", "invalid request body", err))
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "status", status, "error", err)
	} else {
		h.logger.Warn("request rejected", "status", status, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
