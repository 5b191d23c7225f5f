package chunking

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// splitSeparators are tried in order: paragraph breaks first, mid-sentence
// breaks last.
var splitSeparators = []string{"\n\n", "\n", ". ", " "}

// splitText breaks text into pieces of at most maxSize characters, carrying
// roughly overlap characters of trailing context into each following piece.
// A fragment with no remaining break points is returned whole even when it
// exceeds maxSize: the splitter never cuts mid-word.
func splitText(text string, maxSize, overlap int) []string {
	return splitWith(text, splitSeparators, maxSize, overlap)
}

func splitWith(text string, seps []string, maxSize, overlap int) []string {
	if len(text) <= maxSize {
		return []string{text}
	}
	if len(seps) == 0 {
		return []string{text}
	}

	sep := seps[0]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return splitWith(text, seps[1:], maxSize, overlap)
	}

	var pieces []string
	var cur string
	flush := func() {
		if trimmed := strings.TrimSpace(cur); trimmed != "" {
			pieces = append(pieces, trimmed)
		}
	}

	for _, part := range parts {
		if len(part) > maxSize {
			flush()
			cur = ""
			pieces = append(pieces, splitWith(part, seps[1:], maxSize, overlap)...)
			continue
		}
		switch {
		case cur == "":
			cur = part
		case len(cur)+len(sep)+len(part) <= maxSize:
			cur = cur + sep + part
		default:
			prev := cur
			flush()
			// The overlap seed counts against the budget, or the new piece
			// could exceed maxSize by up to the overlap length.
			budget := overlap
			if room := maxSize - len(part) - len(sep); room < budget {
				budget = room
			}
			cur = overlapTail(prev, budget)
			if cur != "" {
				cur = cur + sep + part
			} else {
				cur = part
			}
		}
	}
	flush()
	return pieces
}

// overlapTail returns at most n trailing characters of text, opened at a
// word boundary so the overlap never starts mid-word.
func overlapTail(text string, n int) string {
	if n <= 0 || text == "" {
		return ""
	}
	if len(text) <= n {
		return text
	}
	start := len(text) - n
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	tail := text[start:]
	idx := strings.IndexFunc(tail, unicode.IsSpace)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(tail[idx:])
}
