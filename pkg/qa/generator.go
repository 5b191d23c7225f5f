// Package qa answers questions about a single document, grounded on the
// chunks the retriever surfaces.
package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/velesio/docsapi/pkg/retrieval"
)

const answerPromptTemplate = `You are an assistant answering questions strictly from the provided document excerpts.

Rules:
- Use only the excerpts below. Do not bring in outside knowledge.
- Quote or closely paraphrase the excerpts where possible.
- If the excerpts do not contain the answer, say explicitly that the document does not cover it.

Excerpts:
%s

Question: %s

Answer:`

// Retriever supplies grounding candidates for a question.
type Retriever interface {
	Retrieve(ctx context.Context, documentID, question string) ([]retrieval.Candidate, error)
}

// Completer produces a completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float32) (string, error)
}

// LogEntry records one answered question. UserID is empty for anonymous
// questions.
type LogEntry struct {
	DocumentID string
	UserID     string
	Question   string
	Answer     string
	CreatedAt  time.Time
}

// LogStore persists answered questions. Persistence failures do not fail the
// answer.
type LogStore interface {
	SaveQALog(ctx context.Context, entry LogEntry) error
}

// Generator wires retrieval and completion into the answer flow.
type Generator struct {
	retriever   Retriever
	completer   Completer
	logStore    LogStore
	temperature float32
	logger      *slog.Logger
}

// NewGenerator creates an answer generator. logStore may be nil to disable
// answer logging.
func NewGenerator(retriever Retriever, completer Completer, logStore LogStore, temperature float32, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		retriever:   retriever,
		completer:   completer,
		logStore:    logStore,
		temperature: temperature,
		logger:      logger.With("component", "qa"),
	}
}

// Answer retrieves grounding for the question and asks the model. The model
// is always called, even when retrieval found nothing; the prompt instructs
// it to admit the gap rather than invent an answer.
func (g *Generator) Answer(ctx context.Context, documentID, question, userID string) (string, error) {
	candidates, err := g.retriever.Retrieve(ctx, documentID, question)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(answerPromptTemplate, formatExcerpts(candidates), question)
	answer, err := g.completer.Complete(ctx, prompt, g.temperature)
	if err != nil {
		return "", err
	}

	g.logger.Info("question answered",
		"document_id", documentID,
		"candidates", len(candidates),
		"answer_len", len(answer),
	)

	if g.logStore != nil {
		entry := LogEntry{
			DocumentID: documentID,
			UserID:     userID,
			Question:   question,
			Answer:     answer,
			CreatedAt:  time.Now().UTC(),
		}
		if err := g.logStore.SaveQALog(ctx, entry); err != nil {
			g.logger.Warn("failed to persist qa log", "document_id", documentID, "error", err)
		}
	}
	return answer, nil
}

func formatExcerpts(candidates []retrieval.Candidate) string {
	if len(candidates) == 0 {
		return "(no excerpts were found for this question)"
	}
	var b strings.Builder
	for i, c := range candidates {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		if c.Section != "" {
			fmt.Fprintf(&b, "[%s]\n", c.Section)
		}
		b.WriteString(c.Text)
	}
	return b.String()
}
