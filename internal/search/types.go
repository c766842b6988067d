// Package search implements the hybrid keyword/vector search engine: a
// custom BM25 inverted index, an alternate Bleve-backed BM25 index, and
// rank/score fusion across both sources.
package search

import "context"

// Document is a unit of text accepted by a BM25 backend for indexing.
type Document struct {
	ID   string
	Text string
}

// BM25Config configures a BM25 backend.
type BM25Config struct {
	// K1 is the term-frequency saturation parameter.
	K1 float64

	// B is the length-normalization parameter.
	B float64

	// StopWords overrides the default stopword list when non-nil.
	StopWords []string

	// Backend names the implementation: "default" (custom inverted index)
	// or "bleve" (github.com/blevesearch/bleve/v2). NewInvertedIndex and
	// NewBleveIndex do not read it; the caller picks the constructor.
	Backend string
}

// DefaultBM25Config returns the spec-default BM25 parameters.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:      1.2,
		B:       0.75,
		Backend: "default",
	}
}

// IndexStats reports BM25 index size for observability.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// Match is a single scored hit from a BM25 backend.
type Match struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// BM25Backend is the keyword-search contract shared by the default
// inverted-index implementation and the Bleve-backed alternate.
type BM25Backend interface {
	Add(ctx context.Context, docs []Document) error
	Remove(ctx context.Context, ids []string) error
	Search(ctx context.Context, query string, limit int) ([]Match, error)
	AllIDs() ([]string, error)
	Stats() IndexStats
	Save(path string) error
	Load(path string) error
	Close() error
}

// VectorMatch is a single scored hit from the vector index, decoupled from
// the vectorindex package's concrete Result type so this package can fuse
// results from any vector source that can produce (id, similarity) pairs.
type VectorMatch struct {
	ID         string
	Similarity float32
}

// FusionMethod selects how keyword and vector result lists are combined.
type FusionMethod string

const (
	FusionRRF    FusionMethod = "rrf"
	FusionLinear FusionMethod = "linear"
	FusionMax    FusionMethod = "max"
)

// DefaultRRFConstant is the standard RRF smoothing constant.
const DefaultRRFConstant = 60

// sourceQueryMultiplier and sourceQueryCap bound how many results are
// requested from each source ahead of fusion: min(3k, 1000).
const (
	sourceQueryMultiplier = 3
	sourceQueryCap        = 1000
)

// SourceLimit returns how many results to request from a single source
// ahead of fusion, given the caller's requested final limit k.
func SourceLimit(k int) int {
	limit := k * sourceQueryMultiplier
	if limit > sourceQueryCap {
		limit = sourceQueryCap
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// Weights configures the relative contribution of vector and keyword scores.
type Weights struct {
	Vector  float64
	Keyword float64
}

// DefaultWeights returns a neutral 0.5/0.5 split.
func DefaultWeights() Weights {
	return Weights{Vector: 0.5, Keyword: 0.5}
}

// HybridQuery is the hybrid-search request contract.
type HybridQuery struct {
	Text      string
	Vector    []float32
	Limit     int
	Weights   Weights
	Method    FusionMethod
	RRFK      int
	Threshold float64
}

// HybridResult is a single fused, ranked hit.
type HybridResult struct {
	ID           string
	Score        float64
	VectorScore  float64
	KeywordScore float64
	VectorRank   int
	KeywordRank  int
	InBothLists  bool
	MatchedTerms []string
}
