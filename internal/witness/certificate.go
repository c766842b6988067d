// Package witness implements the retrieval witness chain and certificate
// (C7): per-query provenance over the chunks a retrieval surfaced, a
// minimal-why justification derived by greedy set-cover, and an
// append-only hash chain of certificate emissions.
package witness

import (
	"sort"
	"strings"
	"time"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
)

// Chunk is one retrieved unit of evidence offered to a query.
type Chunk struct {
	ID        string
	Type      string
	Content   string
	Relevance float64
}

// CreateCertificateRequest is the input to CreateCertificate.
type CreateCertificateRequest struct {
	QueryID      string
	QueryText    string
	Chunks       []Chunk
	Requirements []string
	AccessLevel  string
}

// JustificationPath explains why one chunk in the minimal-why set was kept.
type JustificationPath struct {
	ChunkID      string
	Reason       string
	Necessity    float64
	PathElements []string
}

// Certificate is the provenance record emitted for one retrieval.
type Certificate struct {
	QueryID        string
	QueryText      string
	AccessLevel    string
	SourceHashes   [][32]byte
	ChunkIDs       []string
	MerkleRoot     [32]byte
	ProofChains    map[string][]ProofStep
	MinimalWhy     []string
	Redundancy     float64
	Completeness   float64
	Justifications []JustificationPath
	LatencyNanos   int64
}

// CreateCertificate builds a Certificate for the chunks surfaced by a
// retrieval, rejecting an empty chunk set.
func CreateCertificate(req CreateCertificateRequest) (*Certificate, error) {
	start := time.Now()
	if len(req.Chunks) == 0 {
		return nil, coreerrors.ValidationError("certificate requires at least one chunk", nil)
	}

	leaves := make([][32]byte, len(req.Chunks))
	chunkIDs := make([]string, len(req.Chunks))
	for i, c := range req.Chunks {
		leaves[i] = ContentHash(c.Content)
		chunkIDs[i] = c.ID
	}
	root := MerkleRoot(leaves)

	proofs := make(map[string][]ProofStep, len(req.Chunks))
	for i, c := range req.Chunks {
		proofs[c.ID] = InclusionProof(leaves, i)
	}

	minimalWhy, covered := minimalHittingSet(req.Chunks, req.Requirements)

	redundancy := 0.0
	if len(minimalWhy) > 0 {
		redundancy = float64(len(req.Chunks)) / float64(len(minimalWhy))
	}

	completeness := 1.0
	if len(req.Requirements) > 0 {
		completeness = float64(len(covered)) / float64(len(req.Requirements))
	}

	justifications := buildJustifications(req.Chunks, req.Requirements, minimalWhy, covered)

	cert := &Certificate{
		QueryID:        req.QueryID,
		QueryText:      req.QueryText,
		AccessLevel:    req.AccessLevel,
		SourceHashes:   leaves,
		ChunkIDs:       chunkIDs,
		MerkleRoot:     root,
		ProofChains:    proofs,
		MinimalWhy:     minimalWhy,
		Redundancy:     redundancy,
		Completeness:   completeness,
		Justifications: justifications,
		LatencyNanos:   time.Since(start).Nanoseconds(),
	}
	return cert, nil
}

// minimalHittingSet greedily picks the fewest chunks covering every
// requirement (a requirement is "covered" by a chunk whose content
// case-insensitively contains it), breaking ties by higher relevance.
// Always returns at least one chunk when chunks is non-empty.
func minimalHittingSet(chunks []Chunk, requirements []string) ([]string, map[string]bool) {
	covered := make(map[string]bool, len(requirements))
	if len(requirements) == 0 {
		return []string{bestByRelevance(chunks).ID}, covered
	}

	uncovered := make(map[string]bool, len(requirements))
	for _, r := range requirements {
		uncovered[r] = true
	}

	var selected []string
	remaining := append([]Chunk(nil), chunks...)

	for len(uncovered) > 0 && len(remaining) > 0 {
		bestIdx := -1
		bestCount := -1
		for i, c := range remaining {
			count := 0
			for r := range uncovered {
				if chunkCoversRequirement(c, r) {
					count++
				}
			}
			if count > bestCount || (count == bestCount && bestIdx >= 0 && c.Relevance > remaining[bestIdx].Relevance) {
				bestCount = count
				bestIdx = i
			}
		}
		if bestIdx < 0 || bestCount == 0 {
			break
		}
		chosen := remaining[bestIdx]
		selected = append(selected, chosen.ID)
		for r := range uncovered {
			if chunkCoversRequirement(chosen, r) {
				covered[r] = true
				delete(uncovered, r)
			}
		}
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	if len(selected) == 0 {
		selected = []string{bestByRelevance(chunks).ID}
	}
	return selected, covered
}

func chunkCoversRequirement(c Chunk, requirement string) bool {
	return strings.Contains(strings.ToLower(c.Content), strings.ToLower(requirement))
}

func bestByRelevance(chunks []Chunk) Chunk {
	best := chunks[0]
	for _, c := range chunks[1:] {
		if c.Relevance > best.Relevance {
			best = c
		}
	}
	return best
}

func buildJustifications(chunks []Chunk, requirements, minimalWhy []string, covered map[string]bool) []JustificationPath {
	byID := make(map[string]Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	paths := make([]JustificationPath, 0, len(minimalWhy))
	for _, id := range minimalWhy {
		c := byID[id]
		var satisfied []string
		for _, r := range requirements {
			if covered[r] && chunkCoversRequirement(c, r) {
				satisfied = append(satisfied, r)
			}
		}
		necessity := 1.0
		if len(requirements) > 0 {
			necessity = float64(len(satisfied)) / float64(len(requirements))
		}
		reason := "selected by relevance with no unmet requirements to cover"
		if len(satisfied) > 0 {
			reason = "covers requirement(s): " + strings.Join(satisfied, ", ")
		}
		paths = append(paths, JustificationPath{
			ChunkID:      id,
			Reason:       reason,
			Necessity:    necessity,
			PathElements: append([]string{id}, satisfied...),
		})
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].ChunkID < paths[j].ChunkID })
	return paths
}

// VerifyResult reports whether a certificate still matches its claimed
// source content.
type VerifyResult struct {
	Valid  bool
	Issues []string
}

// Verify recomputes each chunk's content hash against currentContent
// (keyed by chunk id) and the Merkle root/inclusion proofs, flagging any
// mismatch or missing source.
func Verify(cert *Certificate, currentContent map[string]string) VerifyResult {
	var issues []string

	for i, id := range cert.ChunkIDs {
		content, ok := currentContent[id]
		if !ok {
			issues = append(issues, "missing source content for chunk "+id)
			continue
		}
		if ContentHash(content) != cert.SourceHashes[i] {
			issues = append(issues, "content hash mismatch for chunk "+id)
			continue
		}
		proof, ok := cert.ProofChains[id]
		if !ok || !VerifyInclusion(cert.SourceHashes[i], proof, cert.MerkleRoot) {
			issues = append(issues, "inclusion proof failed for chunk "+id)
		}
	}

	recomputed := MerkleRoot(cert.SourceHashes)
	if recomputed != cert.MerkleRoot {
		issues = append(issues, "merkle root does not match source hashes")
	}

	return VerifyResult{Valid: len(issues) == 0, Issues: issues}
}
