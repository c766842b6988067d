package federated

import (
	"encoding/json"
	"os"
	"path/filepath"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
	pathutil "github.com/agentmem/agentmem/internal/pathutil"
	"gonum.org/v1/gonum/mat"
)

type adapterDoc struct {
	Name  string
	Rank  int
	Alpha float64
	A     []float64
	B     []float64
}

type coordinatorDoc struct {
	Dimension     int
	Patterns      []Pattern
	Adapters      []adapterDoc
	ActiveAdapter string
}

// Save atomically writes the coordinator's pattern store and adapters to
// path as JSON.
func (c *Coordinator) Save(path string) error {
	if err := pathutil.Validate(path); err != nil {
		return err
	}

	c.mu.RLock()
	doc := coordinatorDoc{
		Dimension:     c.cfg.Dimension,
		Patterns:      append([]Pattern(nil), c.patterns...),
		ActiveAdapter: c.activeAdapter,
	}
	for name, a := range c.adapters {
		doc.Adapters = append(doc.Adapters, adapterDoc{
			Name:  name,
			Rank:  a.Rank,
			Alpha: a.Alpha,
			A:     a.a.RawMatrix().Data,
			B:     a.b.RawMatrix().Data,
		})
	}
	c.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return coreerrors.InternalError("failed to marshal coordinator state", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "agentmem-federated-*.tmp")
	if err != nil {
		return coreerrors.IOError("failed to create temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return coreerrors.IOError("failed to write coordinator state", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return coreerrors.IOError("failed to close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return coreerrors.IOError("failed to rename coordinator state into place", err)
	}
	return nil
}

// Load restores a previously saved coordinator state. A missing file is
// not an error: the coordinator is left empty.
func (c *Coordinator) Load(path string) error {
	if err := pathutil.Validate(path); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return coreerrors.IOError("failed to read coordinator state", err)
	}

	var doc coordinatorDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return coreerrors.CorruptError("failed to parse coordinator state", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Dimension = doc.Dimension
	c.patterns = doc.Patterns
	c.activeAdapter = doc.ActiveAdapter
	c.adapters = make(map[string]*Adapter, len(doc.Adapters))
	for _, ad := range doc.Adapters {
		c.adapters[ad.Name] = &Adapter{
			Rank:  ad.Rank,
			Alpha: ad.Alpha,
			a:     mat.NewDense(doc.Dimension, ad.Rank, ad.A),
			b:     mat.NewDense(ad.Rank, doc.Dimension, ad.B),
			dim:   doc.Dimension,
		}
	}
	return nil
}
