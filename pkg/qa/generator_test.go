package qa

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velesio/docsapi/pkg/retrieval"
	"github.com/velesio/docsapi/pkg/vectorstore"
)

type stubRetriever struct {
	candidates []retrieval.Candidate
	err        error
}

func (s stubRetriever) Retrieve(_ context.Context, _, _ string) ([]retrieval.Candidate, error) {
	return s.candidates, s.err
}

type stubCompleter struct {
	answer string
	err    error

	gotPrompt      string
	gotTemperature float32
	calls          int
}

func (s *stubCompleter) Complete(_ context.Context, prompt string, temperature float32) (string, error) {
	s.calls++
	s.gotPrompt = prompt
	s.gotTemperature = temperature
	return s.answer, s.err
}

type recordingLogStore struct {
	entries []LogEntry
	err     error
}

func (r *recordingLogStore) SaveQALog(_ context.Context, entry LogEntry) error {
	r.entries = append(r.entries, entry)
	return r.err
}

func candidate(id, section, text string) retrieval.Candidate {
	return retrieval.Candidate{
		StoredChunk: vectorstore.StoredChunk{ID: id, Section: section, Text: text},
		Source:      retrieval.SourceSemantic,
	}
}

func TestAnswerIncludesExcerptsInPrompt(t *testing.T) {
	completer := &stubCompleter{answer: "The limit is 42 MW."}
	g := NewGenerator(stubRetriever{candidates: []retrieval.Candidate{
		candidate("c1", "Limits", "The thermal limit is 42 MW."),
		candidate("c2", "", "Operators must log every shutdown."),
	}}, completer, nil, 0.01, nil)

	answer, err := g.Answer(context.Background(), "doc", "What is the thermal limit?", "")
	require.NoError(t, err)
	assert.Equal(t, "The limit is 42 MW.", answer)
	assert.Contains(t, completer.gotPrompt, "The thermal limit is 42 MW.")
	assert.Contains(t, completer.gotPrompt, "[Limits]")
	assert.Contains(t, completer.gotPrompt, "What is the thermal limit?")
	assert.InDelta(t, 0.01, completer.gotTemperature, 1e-6)
}

func TestAnswerCallsModelWithNoCandidates(t *testing.T) {
	completer := &stubCompleter{answer: "The document does not cover this."}
	g := NewGenerator(stubRetriever{}, completer, nil, 0.01, nil)

	answer, err := g.Answer(context.Background(), "doc", "Who wrote this?", "")
	require.NoError(t, err)
	assert.Equal(t, 1, completer.calls)
	assert.Contains(t, completer.gotPrompt, "no excerpts were found")
	assert.NotEmpty(t, answer)
}

func TestAnswerPropagatesRetrieverError(t *testing.T) {
	completer := &stubCompleter{}
	g := NewGenerator(stubRetriever{err: errors.New("store down")}, completer, nil, 0.01, nil)

	_, err := g.Answer(context.Background(), "doc", "anything", "")
	assert.Error(t, err)
	assert.Zero(t, completer.calls)
}

func TestAnswerPropagatesCompleterError(t *testing.T) {
	g := NewGenerator(stubRetriever{}, &stubCompleter{err: errors.New("model down")}, nil, 0.01, nil)
	_, err := g.Answer(context.Background(), "doc", "anything", "")
	assert.Error(t, err)
}

func TestAnswerPersistsLog(t *testing.T) {
	store := &recordingLogStore{}
	g := NewGenerator(stubRetriever{}, &stubCompleter{answer: "no"}, store, 0.01, nil)

	_, err := g.Answer(context.Background(), "doc-7", "Is it safe?", "alice")
	require.NoError(t, err)
	require.Len(t, store.entries, 1)
	assert.Equal(t, "doc-7", store.entries[0].DocumentID)
	assert.Equal(t, "alice", store.entries[0].UserID)
	assert.Equal(t, "Is it safe?", store.entries[0].Question)
	assert.Equal(t, "no", store.entries[0].Answer)
	assert.False(t, store.entries[0].CreatedAt.IsZero())
}

func TestAnswerSurvivesLogFailure(t *testing.T) {
	store := &recordingLogStore{err: errors.New("disk full")}
	g := NewGenerator(stubRetriever{}, &stubCompleter{answer: "fine"}, store, 0.01, nil)

	answer, err := g.Answer(context.Background(), "doc", "ok?", "")
	require.NoError(t, err)
	assert.Equal(t, "fine", answer)
}

func TestFormatExcerptsSeparator(t *testing.T) {
	out := formatExcerpts([]retrieval.Candidate{
		candidate("a", "", "first"),
		candidate("b", "", "second"),
	})
	assert.Equal(t, 2, len(strings.Split(out, "\n---\n")))
}
