// Package quiz generates multiple-choice questions from a document's chunks
// and grades submitted answers.
package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/velesio/docsapi/pkg/apperrors"
)

const testPromptTemplate = `Create one multiple-choice question testing comprehension of the text below.

Respond with ONLY a JSON object, no prose, in exactly this shape:
{
  "question": "...",
  "option_1": "...",
  "option_2": "...",
  "option_3": "...",
  "option_4": "...",
  "right_answer": "..."
}

Requirements:
- All four options must be distinct.
- right_answer must be copied verbatim from one of the four options.
- The question must be answerable from the text alone.

Text:
%s`

// rawTest is the shape the model is asked to return.
type rawTest struct {
	Question    string `json:"question"`
	Option1     string `json:"option_1"`
	Option2     string `json:"option_2"`
	Option3     string `json:"option_3"`
	Option4     string `json:"option_4"`
	RightAnswer string `json:"right_answer"`
}

// Record is the persisted form of a generated test, options in the order the
// model produced them.
type Record struct {
	ID          string
	DocumentID  string
	Question    string
	Options     [4]string
	RightAnswer string
	CreatedAt   time.Time
}

// Display is the client-facing copy of a test. Options are shuffled and the
// right answer is withheld.
type Display struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// ChunkSource enumerates and fetches a document's chunks.
type ChunkSource interface {
	GetIDs(ctx context.Context, documentID string) ([]string, error)
	GetByID(ctx context.Context, documentID, chunkID string) (string, error)
}

// Completer produces a completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float32) (string, error)
}

// TestStore persists generated tests.
type TestStore interface {
	SaveTest(ctx context.Context, rec Record) error
}

// Generator builds tests from randomly picked chunks.
type Generator struct {
	source      ChunkSource
	completer   Completer
	store       TestStore
	temperature float32
	logger      *slog.Logger
}

// NewGenerator creates a test generator.
func NewGenerator(source ChunkSource, completer Completer, store TestStore, temperature float32, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		source:      source,
		completer:   completer,
		store:       store,
		temperature: temperature,
		logger:      logger.With("component", "quiz"),
	}
}

// Generate picks a random chunk from the document, asks the model for a
// four-option question about it, validates the result, persists it and
// returns a shuffled display copy carrying the same test id.
func (g *Generator) Generate(ctx context.Context, documentID string) (Display, error) {
	ids, err := g.source.GetIDs(ctx, documentID)
	if err != nil {
		return Display{}, err
	}
	if len(ids) == 0 {
		return Display{}, apperrors.New(apperrors.TypeValidation, "quiz.Generate", "document has no indexed content")
	}

	// The top-level rand functions are safe for concurrent requests.
	chunkID := ids[rand.Intn(len(ids))]
	text, err := g.source.GetByID(ctx, documentID, chunkID)
	if err != nil {
		return Display{}, err
	}

	reply, err := g.completer.Complete(ctx, fmt.Sprintf(testPromptTemplate, text), g.temperature)
	if err != nil {
		return Display{}, err
	}

	raw, err := parseTestReply(reply)
	if err != nil {
		g.logger.Warn("model returned an invalid test",
			"document_id", documentID,
			"chunk_id", chunkID,
			"error", err,
		)
		return Display{}, err
	}

	rec := Record{
		ID:          uuid.NewString(),
		DocumentID:  documentID,
		Question:    raw.Question,
		Options:     [4]string{raw.Option1, raw.Option2, raw.Option3, raw.Option4},
		RightAnswer: raw.RightAnswer,
		CreatedAt:   time.Now().UTC(),
	}
	if err := g.store.SaveTest(ctx, rec); err != nil {
		return Display{}, err
	}

	g.logger.Info("test generated", "document_id", documentID, "test_id", rec.ID, "chunk_id", chunkID)

	shuffled := make([]string, len(rec.Options))
	copy(shuffled, rec.Options[:])
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return Display{ID: rec.ID, Question: rec.Question, Options: shuffled}, nil
}

// parseTestReply unpacks and validates the model's JSON. A reply wrapped in a
// markdown code fence is tolerated.
func parseTestReply(reply string) (rawTest, error) {
	var raw rawTest
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &raw); err != nil {
		return raw, apperrors.Wrap(apperrors.TypeValidation, "quiz.parseTestReply", "reply is not valid JSON", err)
	}
	if strings.TrimSpace(raw.Question) == "" {
		return raw, apperrors.New(apperrors.TypeValidation, "quiz.parseTestReply", "empty question")
	}
	options := []string{raw.Option1, raw.Option2, raw.Option3, raw.Option4}
	seen := make(map[string]struct{}, 4)
	rightMatches := false
	for i, opt := range options {
		if strings.TrimSpace(opt) == "" {
			return raw, apperrors.New(apperrors.TypeValidation, "quiz.parseTestReply", fmt.Sprintf("option %d is empty", i+1))
		}
		if _, dup := seen[opt]; dup {
			return raw, apperrors.New(apperrors.TypeValidation, "quiz.parseTestReply", "options are not distinct")
		}
		seen[opt] = struct{}{}
		if opt == raw.RightAnswer {
			rightMatches = true
		}
	}
	if !rightMatches {
		return raw, apperrors.New(apperrors.TypeValidation, "quiz.parseTestReply", "right answer is not one of the options")
	}
	return raw, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 && strings.EqualFold(strings.TrimSpace(s[:idx]), "json") {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
