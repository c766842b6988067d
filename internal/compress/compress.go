// Package compress implements the tiered vector compressor (C2): five
// access-frequency-driven tiers trading reconstruction fidelity for size,
// with Matryoshka truncation at the most aggressive tier.
package compress

import (
	"math"
	"sync"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
)

// Tier is one compression level.
type Tier string

const (
	TierNone   Tier = "none"
	TierHalf   Tier = "half"
	TierPQ8    Tier = "pq8"
	TierPQ4    Tier = "pq4"
	TierBinary Tier = "binary"
)

// tierForFrequency applies the deterministic fallback thresholds.
func tierForFrequency(freq float64) Tier {
	switch {
	case freq >= 0.8:
		return TierNone
	case freq >= 0.6:
		return TierHalf
	case freq >= 0.4:
		return TierPQ8
	case freq >= 0.2:
		return TierPQ4
	default:
		return TierBinary
	}
}

// estimatedSavingsPercent is the tier-weighted byte ratio used for stats.
var estimatedSavingsPercent = map[Tier]float64{
	TierNone:   0,
	TierHalf:   50,
	TierPQ8:    75,
	TierPQ4:    87.5,
	TierBinary: 96,
}

// CompressedEntry is the stored, compressed form of one vector.
type CompressedEntry struct {
	Payload      []byte
	Tier         Tier
	OriginalDim  int
	TruncatedDim int // 0 when untruncated
	AccessFreq   float64
	LastAccessed int64

	// Tier-specific header fields, populated only for the tiers that need them.
	Scale float64 // half
	Min   float64 // pq8/pq4
	Max   float64 // pq8/pq4
	Mean  float64 // binary
}

// Store holds compressed entries keyed by id.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*CompressedEntry
}

// NewStore returns an empty compressed-vector store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*CompressedEntry)}
}

// Compress selects a tier from accessFreq and stores v's compressed form
// under id, replacing any existing entry.
func (s *Store) Compress(id string, v []float32, accessFreq float64, lastAccessed int64) (*CompressedEntry, error) {
	tier := tierForFrequency(accessFreq)
	entry, err := compressVector(v, tier, accessFreq, lastAccessed)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.entries[id] = entry
	s.mu.Unlock()
	return entry, nil
}

// CompressBatch groups items by their selected tier and compresses each
// group in one pass, enabling tier-uniform downstream processing.
func (s *Store) CompressBatch(items map[string][]float32, accessFreq map[string]float64, lastAccessed int64) error {
	byTier := make(map[Tier][]string)
	for id := range items {
		byTier[tierForFrequency(accessFreq[id])] = append(byTier[tierForFrequency(accessFreq[id])], id)
	}
	for tier, ids := range byTier {
		for _, id := range ids {
			entry, err := compressVector(items[id], tier, accessFreq[id], lastAccessed)
			if err != nil {
				return err
			}
			s.mu.Lock()
			s.entries[id] = entry
			s.mu.Unlock()
		}
	}
	return nil
}

// Decompress reconstructs the vector stored under id.
func (s *Store) Decompress(id string) ([]float32, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, coreerrors.NotFoundError("no compressed entry for id", nil)
	}
	return decompressEntry(entry), nil
}

// UpdateFrequency re-tiers id if the new frequency crosses a tier boundary,
// decompressing and recompressing at the new tier; otherwise it only
// updates the frequency and last-accessed bookkeeping. Returns the
// resulting tier, or ("", false) if id is unknown.
func (s *Store) UpdateFrequency(id string, newFreq float64, lastAccessed int64) (Tier, bool, error) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return "", false, nil
	}

	newTier := tierForFrequency(newFreq)
	if newTier == entry.Tier {
		s.mu.Lock()
		entry.AccessFreq = newFreq
		entry.LastAccessed = lastAccessed
		s.mu.Unlock()
		return entry.Tier, true, nil
	}

	v := decompressEntry(entry)
	recompressed, err := compressVector(v, newTier, newFreq, lastAccessed)
	if err != nil {
		return "", false, err
	}
	s.mu.Lock()
	s.entries[id] = recompressed
	s.mu.Unlock()
	return newTier, true, nil
}

// Stats reports the number of entries per tier and an estimated overall
// savings percentage derived from the tier-weighted byte ratios.
type Stats struct {
	EntriesByTier          map[Tier]int
	EstimatedSavingsPercent float64
}

// Stats computes current tier distribution and weighted savings estimate.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Tier]int)
	var weighted float64
	for _, e := range s.entries {
		counts[e.Tier]++
		weighted += estimatedSavingsPercent[e.Tier]
	}
	savings := 0.0
	if len(s.entries) > 0 {
		savings = weighted / float64(len(s.entries))
	}
	return Stats{EntriesByTier: counts, EstimatedSavingsPercent: savings}
}

func truncatedDim(d int) int {
	t := int(math.Ceil(0.5 * float64(d)))
	if t < 8 {
		t = 8
	}
	if t > d {
		t = d
	}
	return t
}
