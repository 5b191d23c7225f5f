package retrieval

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/velesio/docsapi/pkg/vectorstore"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// bm25Index is a throwaway lexical index over one collection's chunks. It is
// rebuilt on every retrieval call so it always reflects the stored state.
type bm25Index struct {
	chunks    []vectorstore.StoredChunk
	termFreqs []map[string]int
	docLens   []int
	docFreq   map[string]int
	avgLen    float64
}

func newBM25Index(chunks []vectorstore.StoredChunk) *bm25Index {
	idx := &bm25Index{
		chunks:    chunks,
		termFreqs: make([]map[string]int, len(chunks)),
		docLens:   make([]int, len(chunks)),
		docFreq:   make(map[string]int),
	}
	total := 0
	for i, ch := range chunks {
		tokens := tokenize(ch.Text)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		idx.termFreqs[i] = tf
		idx.docLens[i] = len(tokens)
		total += len(tokens)
		for term := range tf {
			idx.docFreq[term]++
		}
	}
	if len(chunks) > 0 {
		idx.avgLen = float64(total) / float64(len(chunks))
	}
	return idx
}

// topK returns up to k chunks ranked by BM25 score against the query.
// Chunks with zero score never rank.
func (idx *bm25Index) topK(query string, k int) []vectorstore.StoredChunk {
	if len(idx.chunks) == 0 || k <= 0 {
		return nil
	}
	terms := tokenize(query)
	n := float64(len(idx.chunks))

	type scored struct {
		i     int
		score float64
	}
	results := make([]scored, 0, len(idx.chunks))
	for i := range idx.chunks {
		var score float64
		for _, term := range terms {
			tf := idx.termFreqs[i][term]
			if tf == 0 {
				continue
			}
			df := float64(idx.docFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := 1 - bm25B + bm25B*float64(idx.docLens[i])/idx.avgLen
			score += idf * float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*norm)
		}
		if score > 0 {
			results = append(results, scored{i: i, score: score})
		}
	}
	sort.SliceStable(results, func(a, b int) bool { return results[a].score > results[b].score })
	if len(results) > k {
		results = results[:k]
	}
	out := make([]vectorstore.StoredChunk, len(results))
	for i, r := range results {
		out[i] = idx.chunks[r.i]
	}
	return out
}

// tokenize lowercases and splits on anything that is not a letter or digit,
// so Cyrillic and Latin text tokenize the same way.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
