package bandit

import (
	"encoding/json"
	"os"
	"path/filepath"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
	pathutil "github.com/agentmem/agentmem/internal/pathutil"
)

// stateVersion is the current bandit serialization format version.
const stateVersion = 1

type stateDoc struct {
	Version  int                         `json:"version"`
	Config   Config                      `json:"config"`
	Contexts map[string]map[string]*ArmStats `json:"contexts"`
}

// Serialize encodes the bandit's configuration and every currently
// cached context's posteriors as a versioned JSON document.
func (b *Bandit) Serialize() ([]byte, error) {
	doc := stateDoc{
		Version:  stateVersion,
		Config:   b.cfg,
		Contexts: make(map[string]map[string]*ArmStats),
	}
	for _, key := range b.contexts.Keys() {
		arms, ok := b.contexts.Peek(key)
		if !ok {
			continue
		}
		doc.Contexts[key] = arms
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, coreerrors.InternalError("failed to marshal bandit state", err)
	}
	return data, nil
}

// Deserialize reconstructs a Bandit from a document produced by
// Serialize.
func Deserialize(data []byte) (*Bandit, error) {
	var doc stateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, coreerrors.CorruptError("failed to parse bandit state", err)
	}
	if doc.Version != stateVersion {
		return nil, coreerrors.CorruptError("unsupported bandit state version", nil)
	}

	b, err := New(doc.Config)
	if err != nil {
		return nil, err
	}
	for ctx, arms := range doc.Contexts {
		b.contexts.Add(ctx, arms)
	}
	return b, nil
}

// Save atomically writes the serialized bandit state to path.
func (b *Bandit) Save(path string) error {
	if err := pathutil.Validate(path); err != nil {
		return err
	}
	data, err := b.Serialize()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "agentmem-bandit-*.tmp")
	if err != nil {
		return coreerrors.IOError("failed to create temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return coreerrors.IOError("failed to write bandit state", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return coreerrors.IOError("failed to close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return coreerrors.IOError("failed to rename bandit state into place", err)
	}
	return nil
}

// Load restores a bandit state file in place. A missing file is not an
// error; the bandit is left as-is.
func (b *Bandit) Load(path string) error {
	if err := pathutil.Validate(path); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return coreerrors.IOError("failed to read bandit state", err)
	}

	var doc stateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return coreerrors.CorruptError("failed to parse bandit state", err)
	}
	if doc.Version != stateVersion {
		return coreerrors.CorruptError("unsupported bandit state version", nil)
	}

	b.cfg = doc.Config.withDefaults()
	for ctx, arms := range doc.Contexts {
		b.contexts.Add(ctx, arms)
	}
	return nil
}
