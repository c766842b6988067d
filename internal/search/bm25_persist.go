package search

import (
	"bufio"
	"encoding/gob"
	"os"
	"path/filepath"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
	"github.com/agentmem/agentmem/internal/pathutil"
)

// invertedIndexState is the on-disk representation of an InvertedIndex.
type invertedIndexState struct {
	K1        float64
	B         float64
	DocTerms  map[string]map[string]int
	DocLength map[string]int
	TotalLen  int
}

// Save persists the index via gob encoding with an atomic temp-then-rename.
func (idx *InvertedIndex) Save(path string) error {
	if err := pathutil.Validate(path); err != nil {
		return err
	}

	idx.mu.RLock()
	state := invertedIndexState{
		K1:        idx.k1,
		B:         idx.b,
		DocTerms:  idx.docTerms,
		DocLength: idx.docLength,
		TotalLen:  idx.totalLen,
	}
	idx.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return coreerrors.IOError("failed to create index directory", err)
	}

	tmp, err := os.CreateTemp(dir, "bm25-*.tmp")
	if err != nil {
		return coreerrors.IOError("failed to create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	writer := bufio.NewWriter(tmp)
	if err := gob.NewEncoder(writer).Encode(state); err != nil {
		tmp.Close()
		return coreerrors.IOError("failed to encode index", err)
	}
	if err := writer.Flush(); err != nil {
		tmp.Close()
		return coreerrors.IOError("failed to flush index", err)
	}
	if err := tmp.Close(); err != nil {
		return coreerrors.IOError("failed to close temp file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return coreerrors.IOError("failed to rename index into place", err)
	}
	return nil
}

// Load replaces the index contents with a previously-saved state. Absence
// of the file is non-fatal: the index is left empty.
func (idx *InvertedIndex) Load(path string) error {
	if err := pathutil.Validate(path); err != nil {
		return err
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return coreerrors.IOError("failed to open index file", err)
	}
	defer f.Close()

	var state invertedIndexState
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&state); err != nil {
		return coreerrors.CorruptError("BM25 index file is corrupt", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.k1 = state.K1
	idx.b = state.B
	idx.docTerms = state.DocTerms
	idx.docLength = state.DocLength
	idx.totalLen = state.TotalLen
	if idx.docTerms == nil {
		idx.docTerms = make(map[string]map[string]int)
	}
	if idx.docLength == nil {
		idx.docLength = make(map[string]int)
	}

	idx.postings = make(map[string]map[string]int)
	for docID, freqs := range idx.docTerms {
		for term, f := range freqs {
			bucket, ok := idx.postings[term]
			if !ok {
				bucket = make(map[string]int)
				idx.postings[term] = bucket
			}
			bucket[docID] = f
		}
	}
	idx.closed = false
	return nil
}
