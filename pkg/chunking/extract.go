package chunking

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

var figureCaptionRe = regexp.MustCompile(`(?i)^(рисунок|figure)\s+\d+`)

// numberedHeadingRe matches section headers like "1.2.3 Scope".
var numberedHeadingRe = regexp.MustCompile(`^\d+(\.\d+)*\.?\s+\S`)

// extractParagraphs dispatches on format. The filename hint wins; otherwise
// the content magic decides.
func extractParagraphs(data []byte, filename string) ([]paragraph, error) {
	switch detectFormat(data, filename) {
	case "pdf":
		return extractPDF(data)
	case "docx":
		return extractDOCX(data)
	default:
		return extractPlainText(data, strings.EqualFold(filepath.Ext(filename), ".md")), nil
	}
}

func detectFormat(data []byte, filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "pdf"
	case ".docx":
		return "docx"
	case ".txt", ".md":
		return "text"
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return "pdf"
	}
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return "docx"
	}
	return "text"
}

// docx XML shapes; only the parts needed to recover paragraph text and style.
type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Props struct {
		Style struct {
			Val string `xml:"val,attr"`
		} `xml:"pStyle"`
	} `xml:"pPr"`
	Runs []struct {
		Texts []string `xml:"t"`
	} `xml:"r"`
}

// extractDOCX reads word/document.xml from the zip container and keeps the
// paragraph style so headings can be told apart from body text.
func extractDOCX(data []byte) ([]paragraph, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening docx container: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("opening document.xml: %w", err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("reading document.xml: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("docx container has no word/document.xml")
	}

	var doc docxDocument
	if err := xml.Unmarshal(docXML, &doc); err != nil {
		return nil, fmt.Errorf("parsing document.xml: %w", err)
	}

	var paragraphs []paragraph
	for _, p := range doc.Body.Paragraphs {
		var sb strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Texts {
				sb.WriteString(t)
			}
		}
		text := strings.TrimSpace(sb.String())
		if text == "" || figureCaptionRe.MatchString(text) {
			continue
		}
		style := p.Props.Style.Val
		paragraphs = append(paragraphs, paragraph{
			text:    text,
			heading: strings.HasPrefix(strings.ToLower(style), "heading"),
		})
	}
	return paragraphs, nil
}

// extractPDF pulls plain text page by page and falls back to heuristics for
// heading detection since PDFs carry no paragraph styles.
func extractPDF(data []byte) ([]paragraph, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}

	var paragraphs []paragraph
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A broken page should not sink the whole document.
			continue
		}
		for _, line := range splitBlocks(text) {
			if figureCaptionRe.MatchString(line) {
				continue
			}
			paragraphs = append(paragraphs, paragraph{
				text:    line,
				heading: looksLikeHeading(line),
				page:    i,
			})
		}
	}
	return paragraphs, nil
}

// extractPlainText treats blank lines as paragraph breaks. For markdown,
// '#'-prefixed lines become headings with the markers stripped.
func extractPlainText(data []byte, markdown bool) []paragraph {
	var paragraphs []paragraph
	for _, block := range splitBlocks(string(data)) {
		if figureCaptionRe.MatchString(block) {
			continue
		}
		if markdown && strings.HasPrefix(block, "#") {
			title := strings.TrimSpace(strings.TrimLeft(block, "#"))
			if title != "" {
				paragraphs = append(paragraphs, paragraph{text: title, heading: true})
			}
			continue
		}
		paragraphs = append(paragraphs, paragraph{
			text:    block,
			heading: looksLikeHeading(block),
		})
	}
	return paragraphs
}

// splitBlocks breaks text on blank lines and trims each block.
func splitBlocks(text string) []string {
	var blocks []string
	for _, raw := range regexp.MustCompile(`\n\s*\n`).Split(text, -1) {
		lines := strings.Split(raw, "\n")
		for i := range lines {
			lines[i] = strings.TrimSpace(lines[i])
		}
		block := strings.TrimSpace(strings.Join(lines, "\n"))
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// looksLikeHeading applies the structural heuristics used for formats that
// carry no styles: short all-caps lines and numbered section headers.
func looksLikeHeading(text string) bool {
	if strings.ContainsRune(text, '\n') || len(text) > 100 {
		return false
	}
	if numberedHeadingRe.MatchString(text) && !strings.HasSuffix(text, ".") {
		return true
	}
	return isAllCaps(text)
}

func isAllCaps(text string) bool {
	hasLetter := false
	for _, r := range text {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}
