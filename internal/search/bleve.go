package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	bsearch "github.com/blevesearch/bleve/v2/search"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
)

const (
	identifierTokenizerName = "agentmem_identifier_tokenizer"
	identifierStopFilter    = "agentmem_identifier_stop"
	identifierAnalyzerName  = "agentmem_identifier_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(identifierTokenizerName, identifierTokenizerConstructor)
	_ = registry.RegisterTokenFilter(identifierStopFilter, identifierStopFilterConstructor)
}

// BleveIndex is the alternate BM25 backend, constructed with NewBleveIndex;
// no code switches to it from BM25Config.Backend. It wraps github.com/blevesearch/bleve/v2
// and keeps the identifier-aware tokenizer (camelCase/snake_case splitting)
// that the default inverted index deliberately does not use.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	config BM25Config
	closed bool
}

type bleveDocument struct {
	Content string `json:"content"`
}

// validateBleveIntegrity checks an on-disk Bleve index for the corruption
// signature left by a truncated or interrupted write, so a caller can
// recreate the index rather than fail outright.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isBleveCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "unexpected end of JSON") ||
		strings.Contains(s, "error parsing mapping JSON") ||
		strings.Contains(s, "failed to load segment") ||
		strings.Contains(s, "error opening bolt") ||
		strings.Contains(s, "no such file or directory") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveIndex creates or opens a Bleve-backed BM25 index at path. An empty
// path creates an in-memory index. A corrupted on-disk index is detected and
// automatically recreated empty rather than failing permanently.
func NewBleveIndex(path string, config BM25Config) (*BleveIndex, error) {
	indexMapping, err := buildIdentifierMapping()
	if err != nil {
		return nil, coreerrors.InternalError("failed to build bleve index mapping", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, coreerrors.IOError("failed to create bleve index directory", mkErr)
		}

		if validErr := validateBleveIntegrity(path); validErr != nil {
			slog.Warn("bm25_bleve_index_corrupted", slog.String("path", path), slog.String("error", validErr.Error()))
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, coreerrors.IOError("bleve index corrupted and could not be removed", rmErr)
			}
			slog.Info("bm25_bleve_index_cleared", slog.String("path", path))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isBleveCorruptionError(err) {
			slog.Warn("bm25_bleve_open_failed", slog.String("path", path), slog.String("error", err.Error()))
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, coreerrors.IOError("bleve index corrupted and could not be cleared", rmErr)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, coreerrors.InternalError("failed to create or open bleve index", err)
	}

	return &BleveIndex{index: idx, path: path, config: config}, nil
}

func buildIdentifierMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()
	err := indexMapping.AddCustomAnalyzer(identifierAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": identifierTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			identifierStopFilter,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register custom analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = identifierAnalyzerName
	return indexMapping, nil
}

// Add implements BM25Backend.
func (b *BleveIndex) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return coreerrors.InternalError("bleve index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, bleveDocument{Content: doc.Text}); err != nil {
			return coreerrors.InternalError(fmt.Sprintf("failed to index document %s", doc.ID), err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return coreerrors.InternalError("failed to execute bleve batch", err)
	}
	return nil
}

// Remove implements BM25Backend.
func (b *BleveIndex) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return coreerrors.InternalError("bleve index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return coreerrors.InternalError("failed to delete documents", err)
	}
	return nil
}

// Search implements BM25Backend.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, coreerrors.InternalError("bleve index is closed", nil)
	}
	if strings.TrimSpace(query) == "" {
		return []Match{}, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit
	req.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, coreerrors.InternalError("bleve search failed", err)
	}

	matches := make([]Match, 0, len(result.Hits))
	for _, hit := range result.Hits {
		matches = append(matches, Match{
			DocID:        hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractBleveMatchedTerms(hit),
		})
	}
	return matches, nil
}

// AllIDs implements BM25Backend.
func (b *BleveIndex) AllIDs() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, coreerrors.InternalError("bleve index is closed", nil)
	}

	docCount, _ := b.index.DocCount()
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(docCount)
	req.Fields = []string{}

	result, err := b.index.Search(req)
	if err != nil {
		return nil, coreerrors.InternalError("failed to list bleve document ids", err)
	}
	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// Stats implements BM25Backend.
func (b *BleveIndex) Stats() IndexStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return IndexStats{}
	}
	docCount, _ := b.index.DocCount()
	return IndexStats{DocumentCount: int(docCount)}
}

// Save is a no-op: Bleve persists to disk as documents are indexed.
func (b *BleveIndex) Save(path string) error {
	return nil
}

// Load reopens an on-disk index, replacing the current one.
func (b *BleveIndex) Load(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.index != nil && !b.closed {
		_ = b.index.Close()
	}
	idx, err := bleve.Open(path)
	if err != nil {
		return coreerrors.InternalError("failed to open bleve index", err)
	}
	b.index = idx
	b.path = path
	b.closed = false
	return nil
}

// Close implements BM25Backend.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

func extractBleveMatchedTerms(hit *bsearch.DocumentMatch) []string {
	terms := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field == "content" {
			for term := range locations {
				terms[term] = struct{}{}
			}
		}
	}
	result := make([]string, 0, len(terms))
	for term := range terms {
		result = append(result, term)
	}
	return result
}

var _ BM25Backend = (*BleveIndex)(nil)

func identifierTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &identifierTokenizer{}, nil
}

type identifierTokenizer struct{}

func (t *identifierTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := tokenizeCode(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0
	for _, token := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), strings.ToLower(token))
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}
	return result
}

func identifierStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &identifierStopFilterImpl{stopWords: BuildStopWordSet(DefaultStopWords)}, nil
}

type identifierStopFilterImpl struct {
	stopWords map[string]struct{}
}

func (f *identifierStopFilterImpl) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
