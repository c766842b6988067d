package search

import (
	"context"
	"math"
	"sort"
	"sync"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
)

// InvertedIndex is the default BM25 backend: a custom, in-process inverted
// index scored with the textbook Okapi BM25 formula.
//
//	IDF(t)     = ln((N - n + 0.5)/(n + 0.5) + 1)
//	score(D,Q) = Σ_t IDF(t)·(f(t,D)·(k1+1)) / (f(t,D) + k1·(1 - b + b·|D|/avgdl))
type InvertedIndex struct {
	mu sync.RWMutex

	k1 float64
	b  float64

	stopWords map[string]struct{}

	// postings maps term -> docID -> term frequency within that document.
	postings map[string]map[string]int

	// docTerms maps docID -> term -> frequency, the transpose of postings,
	// kept so Remove can decrement postings without re-tokenizing.
	docTerms map[string]map[string]int

	docLength map[string]int
	totalLen  int
	closed    bool
}

// NewInvertedIndex constructs an empty BM25 index with the given config.
func NewInvertedIndex(cfg BM25Config) *InvertedIndex {
	k1, b := cfg.K1, cfg.B
	if k1 <= 0 {
		k1 = 1.2
	}
	if b < 0 {
		b = 0.75
	}
	stop := DefaultStopWords
	if cfg.StopWords != nil {
		stop = cfg.StopWords
	}
	return &InvertedIndex{
		k1:        k1,
		b:         b,
		stopWords: BuildStopWordSet(stop),
		postings:  make(map[string]map[string]int),
		docTerms:  make(map[string]map[string]int),
		docLength: make(map[string]int),
	}
}

// Add indexes documents. An id already present is removed before
// re-insertion so posting lists and length counters stay consistent.
func (idx *InvertedIndex) Add(ctx context.Context, docs []Document) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return coreerrors.InternalError("BM25 index is closed", nil)
	}

	for _, doc := range docs {
		idx.removeLocked(doc.ID)
		idx.insertLocked(doc.ID, doc.Text)
	}
	return nil
}

func (idx *InvertedIndex) insertLocked(id, text string) {
	tokens := Tokenize(text, idx.stopWords)

	freqs := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freqs[t]++
	}

	idx.docTerms[id] = freqs
	idx.docLength[id] = len(tokens)
	idx.totalLen += len(tokens)

	for term, f := range freqs {
		bucket, ok := idx.postings[term]
		if !ok {
			bucket = make(map[string]int)
			idx.postings[term] = bucket
		}
		bucket[id] = f
	}
}

// Remove deletes documents from the index. Terms whose document frequency
// reaches zero are deleted from the postings map entirely.
func (idx *InvertedIndex) Remove(ctx context.Context, ids []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return coreerrors.InternalError("BM25 index is closed", nil)
	}

	for _, id := range ids {
		idx.removeLocked(id)
	}
	return nil
}

func (idx *InvertedIndex) removeLocked(id string) {
	freqs, ok := idx.docTerms[id]
	if !ok {
		return
	}

	for term := range freqs {
		bucket := idx.postings[term]
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(idx.postings, term)
		}
	}

	idx.totalLen -= idx.docLength[id]
	delete(idx.docTerms, id)
	delete(idx.docLength, id)
}

// Search scores every document containing at least one query term and
// returns the top `limit` by descending BM25 score.
func (idx *InvertedIndex) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, coreerrors.InternalError("BM25 index is closed", nil)
	}

	terms := Tokenize(query, idx.stopWords)
	if len(terms) == 0 {
		return []Match{}, nil
	}

	n := len(idx.docTerms)
	if n == 0 {
		return []Match{}, nil
	}
	avgdl := float64(idx.totalLen) / float64(n)

	scores := make(map[string]float64)
	matched := make(map[string]map[string]struct{})

	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		bucket, ok := idx.postings[term]
		if !ok {
			continue
		}
		df := len(bucket)
		idf := math.Log((float64(n)-float64(df)+0.5)/(float64(df)+0.5) + 1)

		for docID, f := range bucket {
			dl := float64(idx.docLength[docID])
			denom := float64(f) + idx.k1*(1-idx.b+idx.b*dl/avgdl)
			scores[docID] += idf * (float64(f) * (idx.k1 + 1)) / denom

			set, ok := matched[docID]
			if !ok {
				set = make(map[string]struct{})
				matched[docID] = set
			}
			set[term] = struct{}{}
		}
	}

	results := make([]Match, 0, len(scores))
	for docID, score := range scores {
		termSet := matched[docID]
		terms := make([]string, 0, len(termSet))
		for t := range termSet {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		results = append(results, Match{DocID: docID, Score: score, MatchedTerms: terms})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// AllIDs returns every indexed document ID.
func (idx *InvertedIndex) AllIDs() ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := make([]string, 0, len(idx.docTerms))
	for id := range idx.docTerms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Stats reports the current index size.
func (idx *InvertedIndex) Stats() IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docTerms)
	avg := 0.0
	if n > 0 {
		avg = float64(idx.totalLen) / float64(n)
	}
	return IndexStats{
		DocumentCount: n,
		TermCount:     len(idx.postings),
		AvgDocLength:  avg,
	}
}

// Close marks the index unusable. It does not release the underlying maps;
// callers that want persistence must call Save first.
func (idx *InvertedIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	return nil
}

var _ BM25Backend = (*InvertedIndex)(nil)
