package search

import (
	"context"
	"log/slog"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
	"github.com/agentmem/agentmem/internal/vectorindex"
)

// VectorSearcher is the subset of vectorindex.Index the engine depends on,
// so tests can substitute a fake without touching an on-disk HNSW graph.
type VectorSearcher interface {
	Search(query []float32, k int, ef int) ([]vectorindex.Result, error)
}

// Engine performs hybrid search: a keyword query against a BM25Backend, a
// vector query against a VectorSearcher, and fusion of the two result lists
// per the requested FusionMethod.
type Engine struct {
	bm25   BM25Backend
	vector VectorSearcher
	config EngineConfig
}

// EngineConfig holds engine-wide defaults applied when a HybridQuery omits them.
type EngineConfig struct {
	DefaultLimit   int
	MaxLimit       int
	DefaultWeights Weights
	RRFConstant    int
	DefaultMethod  FusionMethod
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit:   10,
		MaxLimit:       100,
		DefaultWeights: DefaultWeights(),
		RRFConstant:    DefaultRRFConstant,
		DefaultMethod:  FusionRRF,
	}
}

// NewEngine wires a BM25 backend and a vector searcher into a hybrid engine.
// Either dependency may be nil; a query that needs the missing side returns
// an empty contribution from it rather than failing, as long as the other
// side is queryable.
func NewEngine(bm25 BM25Backend, vector VectorSearcher, config EngineConfig) *Engine {
	return &Engine{bm25: bm25, vector: vector, config: config}
}

// Index adds documents to the keyword backend. Vector insertion is the
// caller's responsibility via the VectorSearcher's own writer API, since
// search-time fusion only needs read access to it.
func (e *Engine) Index(ctx context.Context, docs []Document) error {
	if e.bm25 == nil {
		return coreerrors.InternalError("no BM25 backend configured", nil)
	}
	return e.bm25.Add(ctx, docs)
}

// Delete removes documents from the keyword backend.
func (e *Engine) Delete(ctx context.Context, ids []string) error {
	if e.bm25 == nil {
		return coreerrors.InternalError("no BM25 backend configured", nil)
	}
	return e.bm25.Remove(ctx, ids)
}

// Search executes a hybrid query: it queries whichever sources the query
// supplies (Text and/or Vector), each capped at SourceLimit(k), then fuses
// per q.Method, applies q.Threshold, and cuts to q.Limit.
func (e *Engine) Search(ctx context.Context, q HybridQuery) ([]HybridResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}
	if e.config.MaxLimit > 0 && limit > e.config.MaxLimit {
		limit = e.config.MaxLimit
	}

	weights := q.Weights
	if weights.Vector == 0 && weights.Keyword == 0 {
		weights = e.config.DefaultWeights
	}

	method := q.Method
	if method == "" {
		method = e.config.DefaultMethod
		if method == "" {
			method = FusionRRF
		}
	}

	rrfK := q.RRFK
	if rrfK <= 0 {
		rrfK = e.config.RRFConstant
		if rrfK <= 0 {
			rrfK = DefaultRRFConstant
		}
	}

	sourceLimit := SourceLimit(limit)

	var keyword []Match
	if q.Text != "" && e.bm25 != nil {
		m, err := e.bm25.Search(ctx, q.Text, sourceLimit)
		if err != nil {
			return nil, err
		}
		keyword = m
	}

	var vector []VectorMatch
	if len(q.Vector) > 0 && e.vector != nil {
		results, err := e.vector.Search(q.Vector, sourceLimit, 0)
		if err != nil {
			return nil, err
		}
		vector = make([]VectorMatch, len(results))
		for i, r := range results {
			vector[i] = VectorMatch{ID: r.ID, Similarity: r.Similarity}
		}
	}

	fused := Fuse(keyword, vector, weights, method, rrfK)

	if q.Threshold > 0 {
		filtered := fused[:0]
		for _, r := range fused {
			if r.Score >= q.Threshold {
				filtered = append(filtered, r)
			}
		}
		fused = filtered
	}

	if len(fused) > limit {
		fused = fused[:limit]
	}

	slog.Debug("hybrid_search",
		slog.String("method", string(method)),
		slog.Int("keyword_hits", len(keyword)),
		slog.Int("vector_hits", len(vector)),
		slog.Int("fused", len(fused)))

	return fused, nil
}

// Stats reports the keyword backend's current size.
func (e *Engine) Stats() IndexStats {
	if e.bm25 == nil {
		return IndexStats{}
	}
	return e.bm25.Stats()
}

// Close releases the keyword backend. The vector searcher's lifecycle is
// owned by its caller, since the engine only holds a read interface to it.
func (e *Engine) Close() error {
	if e.bm25 == nil {
		return nil
	}
	return e.bm25.Close()
}
