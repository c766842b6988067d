// Package router implements the intent router (C6): a map of named
// centroids queried by cosine similarity, with debounced disk persistence.
package router

import (
	"container/heap"
	"math"
	"sort"
	"sync"
	"time"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
)

const (
	// MaxNameLength bounds an intent name.
	MaxNameLength = 256
	// MaxExemplars bounds the exemplar count passed to AddIntent.
	MaxExemplars = 100
	// DefaultPersistDebounce is the default markDirty debounce window.
	DefaultPersistDebounce = 5 * time.Second
)

// Intent is one named centroid.
type Intent struct {
	Name     string
	Centroid []float32
	Norm     float32
	Metadata map[string]string
}

// Match is a single routed result.
type Match struct {
	Name       string
	Similarity float32
}

// Router holds intents and routes queries to the nearest ones by cosine
// similarity. It is safe for concurrent use.
type Router struct {
	mu         sync.RWMutex
	dim        int
	threshold  float32
	maxIntents int
	intents    map[string]*Intent

	persistMu   sync.Mutex
	persistPath string
	debounce    time.Duration
	timer       *time.Timer
	dirty       bool
}

// Config configures a new Router.
type Config struct {
	Dimension       int
	Threshold       float32
	MaxIntents      int
	PersistDebounce time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxIntents <= 0 {
		c.MaxIntents = 1000
	}
	if c.PersistDebounce <= 0 {
		c.PersistDebounce = DefaultPersistDebounce
	}
	return c
}

// New constructs an empty Router.
func New(cfg Config) *Router {
	cfg = cfg.withDefaults()
	return &Router{
		dim:        cfg.Dimension,
		threshold:  cfg.Threshold,
		maxIntents: cfg.MaxIntents,
		intents:    make(map[string]*Intent),
		debounce:   cfg.PersistDebounce,
	}
}

// AddIntent computes the arithmetic-mean centroid of exemplars and stores
// it under name, validating name length, exemplar count, dimension, and
// the configured intent-count ceiling.
func (r *Router) AddIntent(name string, exemplars [][]float32, meta map[string]string) error {
	if name == "" || len(name) > MaxNameLength {
		return coreerrors.ValidationError("intent name must be 1..256 characters", nil)
	}
	if len(exemplars) == 0 || len(exemplars) > MaxExemplars {
		return coreerrors.ValidationError("exemplar count must be 1..100", nil)
	}
	dim := len(exemplars[0])
	if r.dim != 0 && dim != r.dim {
		return coreerrors.DimMismatchError("exemplar dimension does not match router dimension", nil)
	}
	for _, e := range exemplars {
		if len(e) != dim {
			return coreerrors.DimMismatchError("exemplars have inconsistent dimension", nil)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.intents[name]; !exists && len(r.intents) >= r.maxIntents {
		return coreerrors.CapacityError("router is at maximum intent capacity", nil)
	}
	if r.dim == 0 {
		r.dim = dim
	}

	centroid := make([]float32, dim)
	for _, e := range exemplars {
		for i, v := range e {
			centroid[i] += v
		}
	}
	n := float32(len(exemplars))
	var normSq float32
	for i := range centroid {
		centroid[i] /= n
		normSq += centroid[i] * centroid[i]
	}

	r.intents[name] = &Intent{
		Name:     name,
		Centroid: centroid,
		Norm:     float32(math.Sqrt(float64(normSq))),
		Metadata: meta,
	}
	r.markDirty()
	return nil
}

// RemoveIntent deletes a named intent, if present.
func (r *Router) RemoveIntent(name string) {
	r.mu.Lock()
	_, existed := r.intents[name]
	delete(r.intents, name)
	r.mu.Unlock()
	if existed {
		r.markDirty()
	}
}

// Route returns up to k intents whose centroid has cosine similarity to
// query above the router's threshold, in descending similarity order.
func (r *Router) Route(query []float32, k int) ([]Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(query) != r.dim && r.dim != 0 {
		return nil, coreerrors.DimMismatchError("query dimension does not match router dimension", nil)
	}

	var qNormSq float32
	for _, v := range query {
		qNormSq += v * v
	}
	qNorm := float32(math.Sqrt(float64(qNormSq)))

	n := len(r.intents)
	if n == 0 {
		return []Match{}, nil
	}

	candidates := make([]Match, 0, n)
	for name, intent := range r.intents {
		sim := cosine(query, qNorm, intent.Centroid, intent.Norm)
		if sim >= r.threshold {
			candidates = append(candidates, Match{Name: name, Similarity: sim})
		}
	}

	if k > 0 && k < n/4 {
		return topKHeap(candidates, k), nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].Name < candidates[j].Name
	})
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

func cosine(a []float32, aNorm float32, b []float32, bNorm float32) float32 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (aNorm * bNorm)
}

// matchHeap is a min-heap of Match by Similarity, used to find the top k
// candidates in O(n log k) instead of sorting all n.
type matchHeap []Match

func (h matchHeap) Len() int            { return len(h) }
func (h matchHeap) Less(i, j int) bool  { return h[i].Similarity < h[j].Similarity }
func (h matchHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *matchHeap) Push(x interface{}) { *h = append(*h, x.(Match)) }
func (h *matchHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func topKHeap(candidates []Match, k int) []Match {
	h := &matchHeap{}
	heap.Init(h)
	for _, c := range candidates {
		if h.Len() < k {
			heap.Push(h, c)
			continue
		}
		if c.Similarity > (*h)[0].Similarity {
			heap.Pop(h)
			heap.Push(h, c)
		}
	}
	result := make([]Match, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(Match)
	}
	return result
}

// Count returns the number of registered intents.
func (r *Router) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.intents)
}
