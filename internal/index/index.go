package index

import (
	"sort"
)

// Hit pairs an indexed document with its similarity to a query.
type Hit struct {
	Document *Document
	Score    float64
}

// Index is an append-only vector index over hashed token counts. Vector
// rows align one-to-one with stored documents. Appends must not run
// concurrently with queries; once built, any number of goroutines may
// query it.
type Index struct {
	hasher  *Hasher
	docs    []*Document
	vectors []Vector
}

func New(features int) *Index {
	return &Index{hasher: NewHasher(features)}
}

// Append vectorizes and stores documents, returning how many were indexed.
// Documents without tokens carry no signal and are skipped entirely, which
// keeps rows and documents aligned.
func (ix *Index) Append(docs []*Document) int {
	appended := 0
	for _, doc := range docs {
		if doc == nil || len(doc.Tokens) == 0 {
			continue
		}
		ix.vectors = append(ix.vectors, ix.hasher.Vectorize(doc.Tokens))
		ix.docs = append(ix.docs, doc)
		appended++
	}
	return appended
}

// Query ranks stored documents against the query tokens by cosine
// similarity, highest first, dropping documents with no overlap. Equal
// scores keep their append order. A topK of zero or less returns the
// full ranking.
func (ix *Index) Query(tokens []string, topK int) []Hit {
	queryVector := ix.hasher.Vectorize(tokens)

	var hits []Hit
	for i, doc := range ix.docs {
		score := CosineSimilarity(queryVector, ix.vectors[i])
		if score > 0 {
			hits = append(hits, Hit{Document: doc, Score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// Size reports the number of indexed rows.
func (ix *Index) Size() int { return len(ix.docs) }
