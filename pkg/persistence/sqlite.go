// Package persistence stores QA logs, generated tests and graded answers in
// SQLite.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/velesio/docsapi/pkg/apperrors"
	"github.com/velesio/docsapi/pkg/qa"
	"github.com/velesio/docsapi/pkg/quiz"
)

const schema = `
CREATE TABLE IF NOT EXISTS qa_logs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id TEXT NOT NULL,
	user_id     TEXT NOT NULL DEFAULT '',
	question    TEXT NOT NULL,
	answer      TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS tests (
	id           TEXT PRIMARY KEY,
	document_id  TEXT NOT NULL,
	question     TEXT NOT NULL,
	option_1     TEXT NOT NULL,
	option_2     TEXT NOT NULL,
	option_3     TEXT NOT NULL,
	option_4     TEXT NOT NULL,
	right_answer TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS test_answers (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	test_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	answer     TEXT NOT NULL,
	is_correct BOOLEAN NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_test_answers_test ON test_answers (test_id, user_id);
`

// Store is a SQLite-backed persistence layer.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With("component", "persistence")}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveQALog records one answered question.
func (s *Store) SaveQALog(ctx context.Context, entry qa.LogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO qa_logs (document_id, user_id, question, answer, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.DocumentID, entry.UserID, entry.Question, entry.Answer, entry.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.TypeInternal, "persistence.SaveQALog", "insert failed", err)
	}
	return nil
}

// SaveTest records a generated test with its options in model order.
func (s *Store) SaveTest(ctx context.Context, rec quiz.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tests (id, document_id, question, option_1, option_2, option_3, option_4, right_answer, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DocumentID, rec.Question,
		rec.Options[0], rec.Options[1], rec.Options[2], rec.Options[3],
		rec.RightAnswer, rec.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.TypeInternal, "persistence.SaveTest", "insert failed", err)
	}
	return nil
}

// GetRightAnswer returns the stored right answer for a test.
func (s *Store) GetRightAnswer(ctx context.Context, testID string) (string, error) {
	var right string
	err := s.db.QueryRowContext(ctx, `SELECT right_answer FROM tests WHERE id = ?`, testID).Scan(&right)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.New(apperrors.TypeNotFound, "persistence.GetRightAnswer", fmt.Sprintf("test %s not found", testID))
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.TypeInternal, "persistence.GetRightAnswer", "query failed", err)
	}
	return right, nil
}

// HasAnswered reports whether an answer is already recorded for the test. An
// empty user id matches any recorded answer.
func (s *Store) HasAnswered(ctx context.Context, testID, userID string) (bool, error) {
	query := `SELECT COUNT(1) FROM test_answers WHERE test_id = ?`
	args := []interface{}{testID}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, apperrors.Wrap(apperrors.TypeInternal, "persistence.HasAnswered", "query failed", err)
	}
	return count > 0, nil
}

// SaveTestAnswer records one graded submission.
func (s *Store) SaveTestAnswer(ctx context.Context, rec quiz.AnswerRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO test_answers (test_id, user_id, answer, is_correct, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.TestID, rec.UserID, rec.Answer, rec.IsCorrect, rec.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.TypeInternal, "persistence.SaveTestAnswer", "insert failed", err)
	}
	return nil
}
