package quiz

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/velesio/docsapi/pkg/apperrors"
	"github.com/velesio/docsapi/pkg/config"
)

// AnswerRecord is the persisted form of one graded submission.
type AnswerRecord struct {
	TestID    string
	UserID    string
	Answer    string
	IsCorrect bool
	CreatedAt time.Time
}

// AnswerStore reads the right answer and tracks submissions. HasAnswered with
// an empty user id matches any recorded answer for the test.
type AnswerStore interface {
	GetRightAnswer(ctx context.Context, testID string) (string, error)
	HasAnswered(ctx context.Context, testID, userID string) (bool, error)
	SaveTestAnswer(ctx context.Context, rec AnswerRecord) error
}

// GradeResult is the outcome of checking one submission.
type GradeResult struct {
	IsCorrect   bool   `json:"is_correct"`
	RightAnswer string `json:"right_answer"`
}

// Grader checks submitted answers against the stored right answer.
type Grader struct {
	store  AnswerStore
	scope  config.AnswerDedupScope
	logger *slog.Logger
}

// NewGrader creates a grader with the configured answered-once scope.
func NewGrader(store AnswerStore, scope config.AnswerDedupScope, logger *slog.Logger) *Grader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grader{store: store, scope: scope, logger: logger.With("component", "quiz")}
}

// Check grades a submission. Each test accepts one answer per the configured
// scope; a repeat submission is a conflict. Comparison ignores case and
// surrounding whitespace. The right answer is returned so the client can show
// it after grading.
func (g *Grader) Check(ctx context.Context, testID, userID, answer string) (GradeResult, error) {
	dedupUser := userID
	if g.scope == config.DedupPerTest {
		dedupUser = ""
	}
	// Under per-user scope an anonymous submission is never deduplicated.
	if g.scope == config.DedupPerTest || userID != "" {
		answered, err := g.store.HasAnswered(ctx, testID, dedupUser)
		if err != nil {
			return GradeResult{}, err
		}
		if answered {
			return GradeResult{}, apperrors.New(apperrors.TypeConflict, "quiz.Check", "test already answered")
		}
	}

	right, err := g.store.GetRightAnswer(ctx, testID)
	if err != nil {
		return GradeResult{}, err
	}

	correct := strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(right))
	rec := AnswerRecord{
		TestID:    testID,
		UserID:    userID,
		Answer:    answer,
		IsCorrect: correct,
		CreatedAt: time.Now().UTC(),
	}
	if err := g.store.SaveTestAnswer(ctx, rec); err != nil {
		return GradeResult{}, err
	}

	g.logger.Info("test graded", "test_id", testID, "correct", correct)
	return GradeResult{IsCorrect: correct, RightAnswer: right}, nil
}
