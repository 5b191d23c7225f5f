package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velesio/docsapi/pkg/apperrors"
	"github.com/velesio/docsapi/pkg/ingestion"
	"github.com/velesio/docsapi/pkg/quiz"
)

type stubIngestor struct {
	documentID  string
	collections []string
	err         error
	deleted     []string
}

func (s *stubIngestor) Ingest(_ context.Context, _ string) (string, error) {
	return s.documentID, s.err
}

func (s *stubIngestor) Delete(_ context.Context, documentID string) error {
	s.deleted = append(s.deleted, documentID)
	return s.err
}

func (s *stubIngestor) ListCollections(_ context.Context) ([]string, error) {
	return s.collections, s.err
}

func (s *stubIngestor) Sync(_ context.Context, dryRun bool) (ingestion.SyncReport, error) {
	return ingestion.SyncReport{DryRun: dryRun}, s.err
}

type stubAnswerer struct {
	answer string
	err    error
}

func (s stubAnswerer) Answer(_ context.Context, _, _, _ string) (string, error) {
	return s.answer, s.err
}

type stubTests struct {
	display quiz.Display
	err     error
}

func (s stubTests) Generate(_ context.Context, _ string) (quiz.Display, error) {
	return s.display, s.err
}

type stubGrader struct {
	result quiz.GradeResult
	err    error
}

func (s stubGrader) Check(_ context.Context, _, _, _ string) (quiz.GradeResult, error) {
	return s.result, s.err
}

type deps struct {
	ingestor *stubIngestor
	answerer stubAnswerer
	tests    stubTests
	grader   stubGrader
}

func newRouter(d deps) *mux.Router {
	r := mux.NewRouter()
	New(d.ingestor, d.answerer, d.tests, d.grader, nil).Register(r)
	return r
}

func do(t *testing.T, router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestIngestEndpoint(t *testing.T) {
	router := newRouter(deps{ingestor: &stubIngestor{documentID: "doc-1"}})

	rec := do(t, router, http.MethodPost, "/ingest", `{"name":"manual.pdf"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "doc-1", resp["document_id"])
}

func TestIngestRejectsMissingName(t *testing.T) {
	router := newRouter(deps{ingestor: &stubIngestor{}})
	rec := do(t, router, http.MethodPost, "/ingest", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestIngestRejectsBadJSON(t *testing.T) {
	router := newRouter(deps{ingestor: &stubIngestor{}})
	rec := do(t, router, http.MethodPost, "/ingest", `{not json`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDeleteDocument(t *testing.T) {
	ingestor := &stubIngestor{}
	router := newRouter(deps{ingestor: ingestor})

	rec := do(t, router, http.MethodDelete, "/documents/doc-9", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"doc-9"}, ingestor.deleted)
}

func TestListCollectionsEmpty(t *testing.T) {
	router := newRouter(deps{ingestor: &stubIngestor{}})
	rec := do(t, router, http.MethodGet, "/collections", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"collections":[]}`, rec.Body.String())
}

func TestAnswerEndpoint(t *testing.T) {
	router := newRouter(deps{ingestor: &stubIngestor{}, answerer: stubAnswerer{answer: "42 MW"}})

	rec := do(t, router, http.MethodPost, "/answer", `{"document_id":"doc-1","question":"limit?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"answer":"42 MW"}`, rec.Body.String())
}

func TestAnswerMissingDocumentIs404(t *testing.T) {
	router := newRouter(deps{
		ingestor: &stubIngestor{},
		answerer: stubAnswerer{err: apperrors.New(apperrors.TypeNotFound, "test", "collection not found")},
	})
	rec := do(t, router, http.MethodPost, "/answer", `{"document_id":"doc-x","question":"q"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnswerUpstreamFailureIs502(t *testing.T) {
	router := newRouter(deps{
		ingestor: &stubIngestor{},
		answerer: stubAnswerer{err: apperrors.New(apperrors.TypeUpstream, "test", "model down")},
	})
	rec := do(t, router, http.MethodPost, "/answer", `{"document_id":"doc-x","question":"q"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetTestEndpoint(t *testing.T) {
	router := newRouter(deps{
		ingestor: &stubIngestor{},
		tests: stubTests{display: quiz.Display{
			ID:       "t-1",
			Question: "What powers the station?",
			Options:  []string{"Wind", "Uranium", "Coal", "Solar"},
		}},
	})

	rec := do(t, router, http.MethodPost, "/get_test", `{"document_id":"doc-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var display quiz.Display
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &display))
	assert.Equal(t, "t-1", display.ID)
	assert.Len(t, display.Options, 4)
	assert.NotContains(t, rec.Body.String(), "right_answer")
}

func TestCheckTestEndpoint(t *testing.T) {
	router := newRouter(deps{
		ingestor: &stubIngestor{},
		grader:   stubGrader{result: quiz.GradeResult{IsCorrect: true, RightAnswer: "Uranium"}},
	})

	rec := do(t, router, http.MethodPost, "/check_test", `{"test_id":"t-1","user_id":"alice","answer":"uranium"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"is_correct":true,"right_answer":"Uranium"}`, rec.Body.String())
}

func TestCheckTestRepeatIs409(t *testing.T) {
	router := newRouter(deps{
		ingestor: &stubIngestor{},
		grader:   stubGrader{err: apperrors.New(apperrors.TypeConflict, "test", "test already answered")},
	})
	rec := do(t, router, http.MethodPost, "/check_test", `{"test_id":"t-1","answer":"A"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSyncEndpoint(t *testing.T) {
	router := newRouter(deps{ingestor: &stubIngestor{}})
	rec := do(t, router, http.MethodPost, "/sync", `{"dry_run":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var report ingestion.SyncReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.DryRun)
}

func TestHealthz(t *testing.T) {
	router := newRouter(deps{ingestor: &stubIngestor{}})
	rec := do(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
