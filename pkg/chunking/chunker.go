package chunking

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/velesio/docsapi/pkg/config"
)

// Chunker produces section-aware chunks from raw document bytes.
type Chunker struct {
	cfg    config.ChunkingConfig
	logger *slog.Logger
}

// NewChunker creates a chunker with the given thresholds. Zero-valued
// thresholds fall back to the tuned defaults.
func NewChunker(cfg config.ChunkingConfig, logger *slog.Logger) *Chunker {
	def := config.DefaultChunkingConfig()
	if cfg.MinChunkSize <= 0 {
		cfg.MinChunkSize = def.MinChunkSize
	}
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = def.MaxChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = def.ChunkOverlap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{cfg: cfg, logger: logger.With("component", "chunker")}
}

// sectionBuffer collects the body paragraphs grouped under one heading.
// An empty section means preamble text that precedes any heading.
type sectionBuffer struct {
	section string
	texts   []string
	page    int
}

// Chunk splits a document into ordered chunks. An empty document yields an
// empty sequence; callers are expected to reject that case themselves.
func (c *Chunker) Chunk(data []byte, filename string) ([]Chunk, error) {
	paragraphs, err := extractParagraphs(data, filename)
	if err != nil {
		return nil, err
	}
	if len(paragraphs) == 0 {
		return nil, nil
	}

	buffers := groupBySection(paragraphs)
	pieces := c.splitBuffers(buffers)
	pieces = c.mergeForward(pieces)

	chunks := make([]Chunk, 0, len(pieces))
	for _, p := range pieces {
		text := strings.TrimSpace(p.text)
		if text == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:          uuid.NewString(),
			Text:        text,
			Section:     p.section,
			PageNumber:  p.page,
			ElementType: "text",
		})
	}

	c.logger.Info("document chunked",
		"filename", filename,
		"paragraphs", len(paragraphs),
		"chunks", len(chunks),
	)
	return chunks, nil
}

// groupBySection assigns every body paragraph to the nearest preceding
// heading. Headings themselves become section labels, not chunk text.
func groupBySection(paragraphs []paragraph) []sectionBuffer {
	var buffers []sectionBuffer
	var cur *sectionBuffer

	flush := func() {
		if cur != nil && len(cur.texts) > 0 {
			buffers = append(buffers, *cur)
		}
	}

	for _, p := range paragraphs {
		if p.heading {
			flush()
			cur = &sectionBuffer{section: p.text, page: p.page}
			continue
		}
		if cur == nil {
			cur = &sectionBuffer{page: p.page}
		}
		cur.texts = append(cur.texts, p.text)
	}
	flush()
	return buffers
}

// piece is an intermediate chunk candidate.
type piece struct {
	section string
	text    string
	page    int
}

// splitBuffers turns each section buffer into one or more size-bounded
// pieces, keeping the section label on every fragment.
func (c *Chunker) splitBuffers(buffers []sectionBuffer) []piece {
	var pieces []piece
	for _, b := range buffers {
		text := strings.Join(b.texts, "\n")
		if len(text) <= c.cfg.MaxChunkSize {
			pieces = append(pieces, piece{section: b.section, text: text, page: b.page})
			continue
		}
		for _, t := range splitText(text, c.cfg.MaxChunkSize, c.cfg.ChunkOverlap) {
			pieces = append(pieces, piece{section: b.section, text: t, page: b.page})
		}
	}
	return pieces
}

// mergeForward joins consecutive pieces of the same section while the
// combined size stays within the max threshold, so fragments below the min
// size end up merged into their section neighbor. Pieces are never merged
// across different headings.
func (c *Chunker) mergeForward(pieces []piece) []piece {
	var merged []piece
	for _, p := range pieces {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			sameSection := last.section == p.section
			fits := len(last.text)+1+len(p.text) <= c.cfg.MaxChunkSize
			undersized := len(last.text) < c.cfg.MinChunkSize || len(p.text) < c.cfg.MinChunkSize
			if sameSection && fits && undersized {
				last.text = last.text + "\n" + p.text
				continue
			}
		}
		merged = append(merged, p)
	}
	return merged
}
