package memcore

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/agentmem/agentmem/internal/bandit"
	"github.com/agentmem/agentmem/internal/compress"
	coreerrors "github.com/agentmem/agentmem/internal/errors"
	"github.com/agentmem/agentmem/internal/metadata"
	"github.com/agentmem/agentmem/internal/search"
	"github.com/agentmem/agentmem/internal/vectorindex"
	"github.com/agentmem/agentmem/internal/witness"
)

const (
	indexFileName    = "vectors.hnsw"
	metadataFileName = "metadata.json"
	bm25FileName     = "bm25.bin"
	chainFileName    = "witness.chain"
	banditFileName   = "bandit.json"
	lockFileName     = ".agentmem.lock"
)

// Store is the single facade over a store's index, compressor, metadata
// table, hybrid search engine, witness chain, and bandit: the six
// components a Store exclusively owns for its lifetime. Contrastive
// training, intent routing, and federated aggregation are separate,
// caller-wired components that consume a Store rather than live inside one.
type Store struct {
	mu sync.RWMutex

	cfg       OpenStoreConfig
	detection DetectionResult
	lock      *flock.Flock

	index      *vectorindex.Index
	compressor *compress.Store
	meta       *metadata.Store
	bm25       *search.InvertedIndex
	engine     *search.Engine
	chain      *witness.Chain
	arms       *bandit.Bandit

	closed bool
}

// OpenStore is the core's single entry point. It resolves the requested
// backend (probing in auto mode), takes an advisory lock on Path when one
// is given, and either loads a previously-persisted store from Path or
// creates a fresh, empty one.
func OpenStore(cfg OpenStoreConfig) (*Store, error) {
	detection, err := detectBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	var lk *flock.Flock
	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, coreerrors.IOError("failed to create store directory", err)
		}
		lk = flock.New(filepath.Join(cfg.Path, lockFileName))
		acquired, err := lk.TryLock()
		if err != nil {
			return nil, coreerrors.IOError("failed to acquire store lock", err)
		}
		if !acquired {
			return nil, coreerrors.BackendError("store is already open by another process", nil).
				WithDetail("path", cfg.Path).
				WithSuggestion("close the other process holding " + filepath.Join(cfg.Path, lockFileName))
		}
	}

	idx, err := vectorindex.New(vectorindex.Config{
		Dimension: cfg.Dimension,
		Metric:    cfg.Metric,
		Adaptive:  cfg.Adaptive,
	})
	if err != nil {
		if lk != nil {
			_ = lk.Unlock()
		}
		return nil, err
	}

	bm25 := search.NewInvertedIndex(search.DefaultBM25Config())
	engine := search.NewEngine(bm25, idx, search.DefaultEngineConfig())

	arms, err := bandit.New(bandit.Config{})
	if err != nil {
		if lk != nil {
			_ = lk.Unlock()
		}
		return nil, err
	}

	s := &Store{
		cfg:        cfg,
		detection:  detection,
		lock:       lk,
		index:      idx,
		compressor: compress.NewStore(),
		meta:       metadata.NewStore(),
		bm25:       bm25,
		engine:     engine,
		chain:      witness.NewChain(),
		arms:       arms,
	}

	if cfg.Path != "" {
		if err := s.load(); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	return s, nil
}

// Detection reports the backend OpenStore selected and its capabilities.
func (s *Store) Detection() DetectionResult {
	return s.detection
}

// Fields returns the metadata field interner, needed to build filter trees
// against this store.
func (s *Store) Fields() *metadata.FieldBuilder {
	return s.meta.Fields()
}

// IndexIDs returns every id currently live in the vector index, used by
// migration tooling to enumerate a store's contents.
func (s *Store) IndexIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.AllIDs()
}

// VectorByID reconstructs id's vector from its compressed entry. Callers
// migrating between stores use this rather than reading the index
// directly, since the index may hold a metric-normalized copy.
func (s *Store) VectorByID(id string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compressor.Decompress(id)
}

// Insert adds or replaces vec under id, indexing it for both vector and
// keyword search, attaching its metadata, and compressing a copy at the
// tier implied by accessFreq (§3 Entry, §4.1/§4.2).
func (s *Store) Insert(ctx context.Context, id string, vec []float32, text string, fields map[string]metadata.Value, accessFreq float64, lastAccessed int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return coreerrors.InternalError("store is closed", nil)
	}

	if err := s.index.Insert(id, vec); err != nil {
		return err
	}
	if text != "" {
		if err := s.bm25.Add(ctx, []search.Document{{ID: id, Text: text}}); err != nil {
			return err
		}
	}
	if len(fields) > 0 {
		s.meta.Set(id, fields)
	}
	if _, err := s.compressor.Compress(id, vec, accessFreq, lastAccessed); err != nil {
		return err
	}
	return nil
}

// Remove deletes id from the index, keyword index, and metadata table.
// Missing-id removal is a no-op in every underlying store. The compressed
// copy of the vector is not removed, so VectorByID still returns it.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return coreerrors.InternalError("store is closed", nil)
	}

	if err := s.index.Remove(id); err != nil {
		return err
	}
	if err := s.bm25.Remove(ctx, []string{id}); err != nil {
		return err
	}
	s.meta.Delete(id)
	return nil
}

// Search runs a hybrid vector/keyword query, then narrows the fused result
// set to ids whose metadata matches filter (nil filter = no narrowing).
func (s *Store) Search(ctx context.Context, q search.HybridQuery, filter *metadata.Node) ([]search.HybridResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, coreerrors.InternalError("store is closed", nil)
	}

	results, err := s.engine.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return results, nil
	}

	allowed, err := s.meta.Filter(filter)
	if err != nil {
		return nil, err
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = struct{}{}
	}

	filtered := results[:0]
	for _, r := range results {
		if _, ok := allowedSet[r.ID]; ok {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// CreateCertificate emits a tamper-evident recall certificate for the given
// chunks/requirements and appends it to the store's witness chain.
func (s *Store) CreateCertificate(req witness.CreateCertificateRequest, timestamp int64) (*witness.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, coreerrors.InternalError("store is closed", nil)
	}

	cert, err := witness.CreateCertificate(req)
	if err != nil {
		return nil, err
	}
	s.chain.Append(cert, timestamp)
	return cert, nil
}

// WitnessChain exposes the store's witness chain for external audit
// (verification, export) without granting certificate-emission rights.
func (s *Store) WitnessChain() *witness.Chain {
	return s.chain
}

// SelectArm and RecordReward expose the store's bandit to callers choosing
// among compression tiers or mining strategies under a cost budget.
func (s *Store) SelectArm(ctx string, arms []string) (string, error) {
	return s.arms.SelectArm(ctx, arms)
}

func (s *Store) RecordReward(ctx, arm string, reward float64, cost *float64) error {
	return s.arms.RecordReward(ctx, arm, reward, cost)
}

// Stats reports size/compression/search statistics across the owned
// components.
type Stats struct {
	VectorCount   int
	IndexStats    vectorindex.Stats
	SearchStats   search.IndexStats
	CompressStats compress.Stats
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		VectorCount:   s.index.Count(),
		IndexStats:    s.index.Stats(),
		SearchStats:   s.engine.Stats(),
		CompressStats: s.compressor.Stats(),
	}
}

// Save persists the index, metadata, BM25, and witness chain to Path. It is
// a no-op error if the store was opened without a Path.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg.Path == "" {
		return coreerrors.ValidationError("store was opened without a path; nothing to save to", nil)
	}

	if err := s.index.Save(filepath.Join(s.cfg.Path, indexFileName)); err != nil {
		return err
	}
	if err := s.meta.Save(filepath.Join(s.cfg.Path, metadataFileName)); err != nil {
		return err
	}
	if err := s.bm25.Save(filepath.Join(s.cfg.Path, bm25FileName)); err != nil {
		return err
	}
	if err := s.chain.Save(filepath.Join(s.cfg.Path, chainFileName)); err != nil {
		return err
	}
	if err := s.arms.Save(filepath.Join(s.cfg.Path, banditFileName)); err != nil {
		return err
	}
	return nil
}

// load restores persisted component state from Path, tolerating a fresh
// directory with nothing saved yet.
func (s *Store) load() error {
	indexPath := filepath.Join(s.cfg.Path, indexFileName)
	if _, err := os.Stat(indexPath); err == nil {
		loaded, err := vectorindex.Load(indexPath)
		if err != nil {
			return err
		}
		s.index = loaded
		s.engine = search.NewEngine(s.bm25, s.index, search.DefaultEngineConfig())
	}
	if err := s.meta.Load(filepath.Join(s.cfg.Path, metadataFileName)); err != nil {
		return err
	}
	if err := s.bm25.Load(filepath.Join(s.cfg.Path, bm25FileName)); err != nil {
		return err
	}
	if err := s.chain.Load(filepath.Join(s.cfg.Path, chainFileName)); err != nil {
		return err
	}
	if err := s.arms.Load(filepath.Join(s.cfg.Path, banditFileName)); err != nil {
		return err
	}
	return nil
}

// Close releases the keyword backend, the underlying index, and the
// advisory file lock. Close does not implicitly Save; callers that want
// durability call Save first.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if err := s.engine.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.index.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
