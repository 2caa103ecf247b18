// Package retrieval scores page chunks against a query by keyword
// overlap. It is deliberately minimal: no IDF weighting, no stemming, no
// stop-word removal. Cheap and good enough for a personal document set of
// a handful of PDFs; explicitly not a scalable search index.
package retrieval

import (
	"sort"
	"strings"
)

// phraseBonus rewards an exact-phrase match over bag-of-words overlap.
const phraseBonus = 10

// Chunk is one page's extracted text plus its page number and source
// document identifier.
type Chunk struct {
	Text   string `json:"text"`
	Page   int    `json:"page"`
	Source string `json:"source"`
}

// Result is the outcome of retrieving context for a query. Ranked is
// false when no chunk scored above zero and the first chunks of the pool
// were returned in their original order instead.
type Result struct {
	Chunks []Chunk
	Ranked bool
}

// Rank scores every chunk against the query and returns the topK highest
// scorers. The score is the size of the intersection between the
// lowercase whitespace-token sets of query and chunk, plus phraseBonus
// when the lowercase query occurs verbatim in the chunk text. Chunks with
// score zero are dropped. Equal scores keep their original pool order
// (stable sort), which makes results reproducible across runs.
func Rank(query string, chunks []Chunk, topK int) []Chunk {
	if topK <= 0 || len(chunks) == 0 {
		return nil
	}
	queryLower := strings.ToLower(query)
	queryWords := tokenSet(queryLower)

	type scored struct {
		chunk Chunk
		score int
	}
	scoredChunks := make([]scored, 0, len(chunks))
	for _, chunk := range chunks {
		textLower := strings.ToLower(chunk.Text)
		overlap := 0
		for word := range tokenSet(textLower) {
			if _, ok := queryWords[word]; ok {
				overlap++
			}
		}
		if strings.Contains(textLower, queryLower) {
			overlap += phraseBonus
		}
		if overlap > 0 {
			scoredChunks = append(scoredChunks, scored{chunk: chunk, score: overlap})
		}
	}

	sort.SliceStable(scoredChunks, func(i, j int) bool {
		return scoredChunks[i].score > scoredChunks[j].score
	})
	if len(scoredChunks) > topK {
		scoredChunks = scoredChunks[:topK]
	}
	out := make([]Chunk, len(scoredChunks))
	for i, sc := range scoredChunks {
		out[i] = sc.chunk
	}
	return out
}

// Retrieve ranks the pooled chunks and applies the degraded fallback:
// when ranking eliminates every chunk, the first topK chunks are returned
// in original pool order so a non-empty pool never yields an empty
// context.
func Retrieve(query string, pool []Chunk, topK int) Result {
	ranked := Rank(query, pool, topK)
	if len(ranked) > 0 {
		return Result{Chunks: ranked, Ranked: true}
	}
	if len(pool) == 0 {
		return Result{}
	}
	if topK > len(pool) {
		topK = len(pool)
	}
	fallback := make([]Chunk, topK)
	copy(fallback, pool[:topK])
	return Result{Chunks: fallback, Ranked: false}
}

func tokenSet(lower string) map[string]struct{} {
	fields := strings.Fields(lower)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
