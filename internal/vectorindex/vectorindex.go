// Package vectorindex implements the HNSW vector index (C1): insert,
// search, remove, and disk persistence over github.com/coder/hnsw.
package vectorindex

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
	"github.com/agentmem/agentmem/internal/pathutil"
)

// Metric selects the distance function an Index was built with.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
	MetricIP     Metric = "ip"
)

// earlyTerminationSimilarity: once a search holds k results and the latest
// one's similarity exceeds this value, the remaining graph results are not
// converted (§4.1).
const earlyTerminationSimilarity = 0.9999

// Config bounds the graph's construction and query-time knobs (§4.1).
type Config struct {
	Dimension int
	Metric    Metric

	// M is the max outgoing edges per node per layer (layer 0 uses 2M).
	M int
	// EfConstruction is the insert-time candidate-list size. It is kept in
	// Config and persisted, but is not passed to the underlying graph.
	EfConstruction int
	// EfSearch is the default candidate-list size used while querying.
	EfSearch int

	// Adaptive selects M and EfSearch from the graph's current size (via
	// AdaptiveParams, on each Insert) instead of the fixed values above;
	// the efConstruction value AdaptiveParams returns is not applied.
	Adaptive bool
}

// AdaptiveParams returns the recommended (M, efConstruction, efSearch)
// triple for a graph of the given size, per §4.1.
func AdaptiveParams(count int) (m, efConstruction, efSearch int) {
	switch {
	case count < 1000:
		return 8, 100, 50
	case count <= 100000:
		return 16, 200, 100
	default:
		return 32, 400, 200
	}
}

func (c Config) withDefaults() Config {
	if c.Metric == "" {
		c.Metric = MetricCosine
	}
	if c.M == 0 {
		c.M = 16
	}
	if c.EfConstruction == 0 {
		c.EfConstruction = 200
	}
	if c.EfSearch == 0 {
		c.EfSearch = 100
	}
	return c
}

// Result is a single search hit: id, raw distance under the configured
// metric, and similarity derived from it per §4.1.
type Result struct {
	ID         string
	Distance   float32
	Similarity float32
}

// Index is an HNSW vector index over github.com/coder/hnsw.
type Index struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config Config

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

// persistedState is the gob-encoded sidecar carrying id <-> key mappings
// and the config the graph was built with.
type persistedState struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  Config
}

// New creates an empty HNSW index.
func New(cfg Config) (*Index, error) {
	if cfg.Dimension < 1 || cfg.Dimension > 4096 {
		return nil, coreerrors.ValidationError(
			fmt.Sprintf("dimension must be between 1 and 4096, got %d", cfg.Dimension), nil)
	}
	cfg = cfg.withDefaults()

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case MetricL2:
		graph.Distance = hnsw.EuclideanDistance
	case MetricIP:
		graph.Distance = innerProductDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &Index{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}, nil
}

// Insert adds or updates a vector under id. An existing id is replaced
// (remove-then-insert); callers are responsible for re-attaching metadata,
// which the index does not itself hold (§3 Entry, §4.3).
func (idx *Index) Insert(id string, vec []float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return coreerrors.InternalError("index is closed", nil)
	}
	if len(vec) != idx.config.Dimension {
		return coreerrors.DimMismatchError(
			fmt.Sprintf("expected dimension %d, got %d", idx.config.Dimension, len(vec)), nil)
	}

	if idx.config.Adaptive {
		idx.applyAdaptiveParams()
	}

	if existingKey, exists := idx.idMap[id]; exists {
		// Lazy deletion: orphan the old key rather than removing it from the
		// graph, avoiding a coder/hnsw edge case when the last node is removed.
		delete(idx.keyMap, existingKey)
		delete(idx.idMap, id)
	}

	key := idx.nextKey
	idx.nextKey++

	stored := make([]float32, len(vec))
	copy(stored, vec)
	if idx.config.Metric == MetricCosine {
		normalize(stored)
	}

	idx.graph.Add(hnsw.MakeNode(key, stored))
	idx.idMap[id] = key
	idx.keyMap[key] = id

	return nil
}

func (idx *Index) applyAdaptiveParams() {
	m, _, efSearch := AdaptiveParams(len(idx.idMap))
	idx.graph.M = m
	idx.graph.EfSearch = efSearch
}

// Search returns up to k results ordered by descending similarity. ef, when
// non-zero, overrides the index's default EfSearch for this call only.
func (idx *Index) Search(query []float32, k int, ef int) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, coreerrors.InternalError("index is closed", nil)
	}
	if len(query) != idx.config.Dimension {
		return nil, coreerrors.DimMismatchError(
			fmt.Sprintf("expected dimension %d, got %d", idx.config.Dimension, len(query)), nil)
	}
	if idx.graph.Len() == 0 {
		return []Result{}, nil
	}

	if ef > 0 {
		prevEf := idx.graph.EfSearch
		idx.graph.EfSearch = ef
		defer func() { idx.graph.EfSearch = prevEf }()
	}

	q := make([]float32, len(query))
	copy(q, query)
	if idx.config.Metric == MetricCosine {
		normalize(q)
	}

	nodes := idx.graph.Search(q, k)

	results := make([]Result, 0, len(nodes))
	for _, node := range nodes {
		id, ok := idx.keyMap[node.Key]
		if !ok {
			continue
		}
		distance := idx.graph.Distance(q, node.Value)
		sim := similarityFromDistance(distance, idx.config.Metric)
		results = append(results, Result{ID: id, Distance: distance, Similarity: sim})
		if len(results) >= k && sim > earlyTerminationSimilarity {
			break
		}
	}

	return results, nil
}

// Remove deletes a vector by id. Uses the same lazy-deletion discipline as
// Insert's update path.
func (idx *Index) Remove(id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return coreerrors.InternalError("index is closed", nil)
	}

	if key, exists := idx.idMap[id]; exists {
		delete(idx.keyMap, key)
		delete(idx.idMap, id)
	}
	return nil
}

// Count returns the number of live (non-orphaned) vectors.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.idMap)
}

// Contains reports whether id is present.
func (idx *Index) Contains(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.idMap[id]
	return ok
}

// AllIDs returns all live vector ids, used by the facade for consistency
// checks against the metadata and BM25 stores.
func (idx *Index) AllIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]string, 0, len(idx.idMap))
	for id := range idx.idMap {
		ids = append(ids, id)
	}
	return ids
}

// MemoryUsage estimates resident bytes: dimension*4 bytes per live vector
// plus a fixed per-node graph overhead, plus id-mapping bookkeeping.
func (idx *Index) MemoryUsage() int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	const graphOverheadPerNode = 256
	n := int64(len(idx.idMap))
	vectorBytes := n * int64(idx.config.Dimension) * 4
	graphBytes := int64(idx.graph.Len()) * graphOverheadPerNode
	idBytes := n * 64
	return vectorBytes + graphBytes + idBytes
}

// Stats reports live vectors versus graph nodes; the difference is orphaned
// (lazily-deleted) nodes awaiting compaction.
type Stats struct {
	Live    int
	Orphans int
}

func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	live := len(idx.idMap)
	return Stats{Live: live, Orphans: idx.graph.Len() - live}
}

// Save persists the graph and id mappings to path (graph structure) and
// path+".meta" (gob-encoded id map). Save is not atomic by itself; callers
// needing durability wrap it in a temp-then-rename (§4.1).
func (idx *Index) Save(path string) error {
	if err := pathutil.Validate(path); err != nil {
		return err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return coreerrors.InternalError("index is closed", nil)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return coreerrors.IOError("failed to create index directory", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return coreerrors.IOError("failed to create index file", err)
	}
	if err := idx.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return coreerrors.IOError("failed to export graph", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return coreerrors.IOError("failed to close index file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return coreerrors.IOError("failed to rename index file", err)
	}

	if err := idx.saveState(path + ".meta"); err != nil {
		return coreerrors.IOError("failed to save index state", err)
	}
	return nil
}

func (idx *Index) saveState(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	state := persistedState{IDMap: idx.idMap, NextKey: idx.nextKey, Config: idx.config}
	if err := gob.NewEncoder(f).Encode(state); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a previously-saved index. A corrupt graph file raises a
// CORRUPT error (§4.1); an absent or corrupt sidecar metadata file is NOT
// the graph's own sidecar (that's path+".meta", the id-mapping state) and is
// non-fatal only for the C3 filter-store sidecar, which the facade loads
// separately.
func Load(path string) (*Index, error) {
	if err := pathutil.Validate(path); err != nil {
		return nil, err
	}

	idx := &Index{idMap: make(map[string]uint64), keyMap: make(map[uint64]string)}

	if err := idx.loadState(path + ".meta"); err != nil {
		return nil, coreerrors.CorruptError("failed to load index state", err)
	}

	graph := hnsw.NewGraph[uint64]()
	switch idx.config.Metric {
	case MetricL2:
		graph.Distance = hnsw.EuclideanDistance
	case MetricIP:
		graph.Distance = innerProductDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = idx.config.M
	graph.EfSearch = idx.config.EfSearch
	graph.Ml = 0.25
	idx.graph = graph

	f, err := os.Open(path)
	if err != nil {
		return nil, coreerrors.IOError("failed to open index file", err)
	}
	defer f.Close()

	if err := idx.graph.Import(bufio.NewReader(f)); err != nil {
		return nil, coreerrors.CorruptError("failed to import graph", err)
	}

	return idx, nil
}

func (idx *Index) loadState(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("failed to close index state file", slog.String("error", cerr.Error()))
		}
	}()

	var state persistedState
	if err := gob.NewDecoder(f).Decode(&state); err != nil {
		return err
	}

	idx.idMap = state.IDMap
	idx.nextKey = state.NextKey
	idx.config = state.Config
	idx.keyMap = make(map[uint64]string, len(idx.idMap))
	for id, key := range idx.idMap {
		idx.keyMap[key] = id
	}
	return nil
}

// Close releases the index. It does not persist; call Save first.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	idx.graph = nil
	return nil
}

// innerProductDistance is coder/hnsw's missing dot-product metric: raw
// distance d = -⟨a,b⟩, so the graph's nearest-first ordering still holds
// (larger dot product => smaller distance) without any normalization.
func innerProductDistance(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return -dot
}

func normalize(v []float32) {
	var sumSquares float64
	for _, c := range v {
		sumSquares += float64(c) * float64(c)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// similarityFromDistance converts a raw distance under the configured
// metric to a similarity score, per §4.1.
func similarityFromDistance(distance float32, metric Metric) float32 {
	switch metric {
	case MetricL2:
		return float32(math.Exp(-float64(distance)))
	case MetricIP:
		return -distance
	default: // cosine
		return 1.0 - distance
	}
}
