package router

import (
	"encoding/json"
	"os"
	"time"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
	"github.com/agentmem/agentmem/internal/pathutil"
)

type intentDoc struct {
	Name     string            `json:"name"`
	Centroid []float32         `json:"centroid"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type routerDoc struct {
	Dim       int         `json:"dim"`
	Threshold float32     `json:"threshold"`
	Intents   []intentDoc `json:"intents"`
}

// persist writes the router state to disk immediately, clearing the dirty
// flag. Callers needing debounced writes should use markDirty.
func (r *Router) persist() error {
	if r.persistPath == "" {
		return nil
	}
	if err := pathutil.Validate(r.persistPath); err != nil {
		return err
	}

	r.mu.RLock()
	doc := routerDoc{Dim: r.dim, Threshold: r.threshold}
	for _, intent := range r.intents {
		doc.Intents = append(doc.Intents, intentDoc{
			Name:     intent.Name,
			Centroid: intent.Centroid,
			Metadata: intent.Metadata,
		})
	}
	r.mu.RUnlock()

	data, err := json.Marshal(doc)
	if err != nil {
		return coreerrors.InternalError("failed to marshal router state", err)
	}
	if err := os.WriteFile(r.persistPath, data, 0o644); err != nil {
		return coreerrors.IOError("failed to write router state", err)
	}

	r.persistMu.Lock()
	r.dirty = false
	r.persistMu.Unlock()
	return nil
}

// Persist forces an immediate write, cancelling any pending debounce timer.
func (r *Router) Persist() error {
	r.persistMu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.persistMu.Unlock()
	return r.persist()
}

// Save sets the persistence path and immediately writes the current state.
func (r *Router) Save(path string) error {
	r.persistMu.Lock()
	r.persistPath = path
	r.persistMu.Unlock()
	return r.Persist()
}

// Load reads router state from path, replacing the current intents.
func (r *Router) Load(path string) error {
	if err := pathutil.Validate(path); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return coreerrors.IOError("failed to read router state", err)
	}
	var doc routerDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return coreerrors.CorruptError("router state file is corrupt", err)
	}

	r.mu.Lock()
	r.dim = doc.Dim
	r.threshold = doc.Threshold
	r.intents = make(map[string]*Intent, len(doc.Intents))
	for _, id := range doc.Intents {
		var normSq float32
		for _, v := range id.Centroid {
			normSq += v * v
		}
		r.intents[id.Name] = &Intent{
			Name:     id.Name,
			Centroid: id.Centroid,
			Norm:     sqrt32(normSq),
			Metadata: id.Metadata,
		}
	}
	r.mu.Unlock()

	r.persistMu.Lock()
	r.persistPath = path
	r.persistMu.Unlock()
	return nil
}

// markDirty sets the dirty flag and (re)schedules a debounced persist.
// Every call resets the timer, so a burst of writes produces one flush
// DefaultPersistDebounce after the last one.
func (r *Router) markDirty() {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	r.dirty = true
	if r.persistPath == "" {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, func() {
		_ = r.persist()
	})
}

// Close cancels any pending debounce timer and, if dirty, forces a final
// persist before returning.
func (r *Router) Close() error {
	r.persistMu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	dirty := r.dirty
	r.persistMu.Unlock()

	if dirty {
		return r.persist()
	}
	return nil
}
