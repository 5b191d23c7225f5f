package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velesio/docsapi/pkg/config"
)

func newTestChunker(t *testing.T, cfg config.ChunkingConfig) *Chunker {
	t.Helper()
	return NewChunker(cfg, nil)
}

func TestChunkEmptyDocument(t *testing.T) {
	c := newTestChunker(t, config.DefaultChunkingConfig())

	chunks, err := c.Chunk([]byte(""), "empty.txt")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = c.Chunk([]byte("   \n\n  \n"), "blank.txt")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkSingleHeadingDocument(t *testing.T) {
	c := newTestChunker(t, config.DefaultChunkingConfig())

	doc := "FIRE SAFETY RULES\n\n" +
		"Employees must report hazards to the designated officer.\n\n" +
		"Evacuation routes are posted on every floor."

	chunks, err := c.Chunk([]byte(doc), "policy.txt")
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "FIRE SAFETY RULES", chunks[0].Section)
	assert.Contains(t, chunks[0].Text, "report hazards")
	assert.Contains(t, chunks[0].Text, "Evacuation routes")
	assert.NotContains(t, chunks[0].Text, "FIRE SAFETY RULES")
}

func TestChunkPreambleHasNoSection(t *testing.T) {
	c := newTestChunker(t, config.DefaultChunkingConfig())

	doc := "This document describes internal procedures.\n\n" +
		"GENERAL PROVISIONS\n\n" +
		"The procedures apply to all staff."

	chunks, err := c.Chunk([]byte(doc), "doc.txt")
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Empty(t, chunks[0].Section)
	assert.Contains(t, chunks[0].Text, "internal procedures")
	assert.Equal(t, "GENERAL PROVISIONS", chunks[1].Section)
}

func TestChunkNoHeadingsAtAll(t *testing.T) {
	c := newTestChunker(t, config.DefaultChunkingConfig())

	doc := "First plain paragraph about nothing in particular.\n\n" +
		"Second plain paragraph, equally unremarkable."

	chunks, err := c.Chunk([]byte(doc), "notes.txt")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Empty(t, ch.Section)
	}
}

func TestChunkIDsAreUnique(t *testing.T) {
	c := newTestChunker(t, config.ChunkingConfig{MinChunkSize: 20, MaxChunkSize: 60, ChunkOverlap: 6})

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("A sentence that pads the document with content. ")
	}
	chunks, err := c.Chunk([]byte(sb.String()), "long.txt")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	seen := map[string]bool{}
	for _, ch := range chunks {
		assert.False(t, seen[ch.ID], "duplicate chunk id %s", ch.ID)
		seen[ch.ID] = true
		assert.NotEmpty(t, strings.TrimSpace(ch.Text))
	}
}

func TestChunkTextsAreStableAcrossRuns(t *testing.T) {
	c := newTestChunker(t, config.DefaultChunkingConfig())
	doc := []byte("SECTION ONE\n\nSome regulated activity is described here.\n\nSECTION TWO\n\nAnother rule lives here.")

	first, err := c.Chunk(doc, "doc.txt")
	require.NoError(t, err)
	second, err := c.Chunk(doc, "doc.txt")
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, first[i].Section, second[i].Section)
		assert.NotEqual(t, first[i].ID, second[i].ID, "ids are freshly generated per run")
	}
}

func TestChunkOversizedSectionIsSplitWithOverlap(t *testing.T) {
	cfg := config.ChunkingConfig{MinChunkSize: 40, MaxChunkSize: 120, ChunkOverlap: 20}
	c := newTestChunker(t, cfg)

	var body strings.Builder
	body.WriteString("PROCEDURES\n\n")
	for i := 0; i < 12; i++ {
		body.WriteString("Step instructions for the audit procedure follow here. ")
	}

	chunks, err := c.Chunk([]byte(body.String()), "audit.txt")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1, "oversized section must be split")

	for _, ch := range chunks {
		assert.Equal(t, "PROCEDURES", ch.Section, "split fragments keep the section label")
	}
}

func TestChunkOversizedParagraphWithoutBreakPoints(t *testing.T) {
	cfg := config.ChunkingConfig{MinChunkSize: 10, MaxChunkSize: 50, ChunkOverlap: 5}
	c := newTestChunker(t, cfg)

	// One unbroken token far beyond the max size: no separator can split it.
	blob := strings.Repeat("x", 300)
	chunks, err := c.Chunk([]byte(blob), "blob.txt")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, blob, chunks[0].Text)
}

func TestChunkDoesNotMergeAcrossSections(t *testing.T) {
	cfg := config.ChunkingConfig{MinChunkSize: 200, MaxChunkSize: 500, ChunkOverlap: 20}
	c := newTestChunker(t, cfg)

	doc := "ALPHA\n\nshort alpha body.\n\nBETA\n\nshort beta body."
	chunks, err := c.Chunk([]byte(doc), "doc.txt")
	require.NoError(t, err)
	require.Len(t, chunks, 2, "small buffers under different headings stay apart")
	assert.Equal(t, "ALPHA", chunks[0].Section)
	assert.Equal(t, "BETA", chunks[1].Section)
}

func TestChunkMergesSmallSameSectionFragments(t *testing.T) {
	cfg := config.ChunkingConfig{MinChunkSize: 100, MaxChunkSize: 400, ChunkOverlap: 10}
	c := newTestChunker(t, cfg)

	doc := "RULES\n\ntiny one.\n\ntiny two.\n\ntiny three."
	chunks, err := c.Chunk([]byte(doc), "doc.txt")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	for _, frag := range []string{"tiny one.", "tiny two.", "tiny three."} {
		assert.Contains(t, chunks[0].Text, frag)
	}
}

func TestChunkCoversAllParagraphText(t *testing.T) {
	cfg := config.ChunkingConfig{MinChunkSize: 30, MaxChunkSize: 90, ChunkOverlap: 10}
	c := newTestChunker(t, cfg)

	paragraphs := []string{
		"The quick brown fox jumps over the lazy dog.",
		"Pack my box with five dozen liquor jugs.",
		"Sphinx of black quartz, judge my vow.",
	}
	doc := strings.Join(paragraphs, "\n\n")

	chunks, err := c.Chunk([]byte(doc), "pangrams.txt")
	require.NoError(t, err)

	var all strings.Builder
	for _, ch := range chunks {
		all.WriteString(ch.Text)
		all.WriteString("\n")
	}
	for _, p := range paragraphs {
		assert.Contains(t, all.String(), p, "concatenated chunks must cover every paragraph")
	}
}

func TestMarkdownHeadings(t *testing.T) {
	c := newTestChunker(t, config.DefaultChunkingConfig())

	doc := "# Access Policy\n\nBadges are issued by security.\n\n## Visitors\n\nVisitors must be escorted."
	chunks, err := c.Chunk([]byte(doc), "policy.md")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Access Policy", chunks[0].Section)
	assert.Equal(t, "Visitors", chunks[1].Section)
}

func TestSplitTextRespectsParagraphBreaks(t *testing.T) {
	text := strings.Repeat("para one sentence.", 3) + "\n\n" + strings.Repeat("para two sentence.", 3)
	pieces := splitText(text, len(text)-5, 10)
	require.Len(t, pieces, 2, "preferring the paragraph break over mid-sentence cuts")
	assert.True(t, strings.HasPrefix(pieces[0], "para one"))
}

func TestSplitTextOverlapCountsAgainstMaxSize(t *testing.T) {
	// A wide overlap must not push a piece past maxSize when break points exist.
	pieces := splitText("aaaaa bbbbb ccccc ddddd", 12, 11)
	assert.Equal(t, []string{"aaaaa bbbbb", "bbbbb ccccc", "ccccc ddddd"}, pieces)
	for _, p := range pieces {
		assert.LessOrEqual(t, len(p), 12, "piece %q exceeds the size limit", p)
	}
}

func TestOverlapTail(t *testing.T) {
	assert.Equal(t, "", overlapTail("anything", 0))
	assert.Equal(t, "short", overlapTail("short", 10))
	tail := overlapTail("alpha beta gamma delta", 11)
	assert.Equal(t, "delta", tail, "overlap starts at a word boundary")
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, "pdf", detectFormat([]byte("%PDF-1.7 ..."), "upload.bin"))
	assert.Equal(t, "docx", detectFormat([]byte("PK\x03\x04rest"), "upload.bin"))
	assert.Equal(t, "pdf", detectFormat(nil, "doc.PDF"))
	assert.Equal(t, "docx", detectFormat(nil, "doc.docx"))
	assert.Equal(t, "text", detectFormat([]byte("hello"), "doc.txt"))
}
