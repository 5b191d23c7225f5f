// Package chunking turns raw document bytes into ordered, retrievable text
// chunks. Body paragraphs are grouped under the nearest preceding heading,
// oversized buffers are split with a recursive character splitter, and small
// neighbors of the same section are merged forward.
package chunking

// Chunk is a retrievable unit of document text.
type Chunk struct {
	ID          string                 `json:"id"`
	Text        string                 `json:"text"`
	Section     string                 `json:"section,omitempty"` // empty for preamble text with no heading
	SourceID    string                 `json:"source_id,omitempty"`
	PageNumber  int                    `json:"page_number,omitempty"`
	ElementType string                 `json:"element_type,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// paragraph is an extracted document paragraph with structural metadata.
type paragraph struct {
	text    string
	heading bool
	page    int
}
