package cmd

import (
	"fmt"
	"os"

	"github.com/agentmem/agentmem/internal/config"
	"github.com/agentmem/agentmem/pkg/memcore"
)

// storeFlags are the flags shared by every command that opens a store.
type storeFlags struct {
	path      string
	dimension int
	metric    string
	backend   string
}

func addStoreFlags(fs flagSetter, f *storeFlags, defaultPath string) {
	fs.StringVar(&f.path, "path", defaultPath, "store directory")
	fs.IntVar(&f.dimension, "dimension", 0, "vector dimension (required unless reopening an existing store)")
	fs.StringVar(&f.metric, "metric", "", "distance metric: cosine, l2, or ip")
	fs.StringVar(&f.backend, "backend", "auto", "backend: auto, ruvector, rvf, or hnswlib")
}

// flagSetter is the subset of *pflag.FlagSet used by addStoreFlags.
type flagSetter interface {
	StringVar(p *string, name string, value string, usage string)
	IntVar(p *int, name string, value int, usage string)
}

// resolveBackendName maps the legacy config.StoreConfig.Backend vocabulary
// ("auto", "hnsw") onto memcore's backend names when a CLI flag does not
// override it.
func resolveBackendName(configBackend string) memcore.Backend {
	switch configBackend {
	case "", "auto":
		return memcore.BackendAuto
	case "hnsw":
		return memcore.BackendHNSWLib
	default:
		return memcore.Backend(configBackend)
	}
}

func resolveMetric(m string) memcore.Metric {
	switch m {
	case "l2":
		return memcore.MetricL2
	case "ip":
		return memcore.MetricIP
	default:
		return memcore.MetricCosine
	}
}

// openStoreFromFlags loads project configuration from the current
// directory, applies any CLI flag overrides, and opens the resulting store.
func openStoreFromFlags(f *storeFlags) (*memcore.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	path := cfg.Store.Path
	if f.path != "" {
		path = f.path
	}

	dimension := cfg.Store.Dimension
	if f.dimension > 0 {
		dimension = f.dimension
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("--dimension is required: no existing store configuration found")
	}

	metric := cfg.Store.Metric
	if f.metric != "" {
		metric = f.metric
	}

	backendName := cfg.Store.Backend
	if f.backend != "" && f.backend != "auto" {
		backendName = f.backend
	}

	return memcore.OpenStore(memcore.OpenStoreConfig{
		Path:      path,
		Dimension: dimension,
		Metric:    resolveMetric(metric),
		Backend:   resolveBackendName(backendName),
		Adaptive:  cfg.Store.Adaptive,
		MMap:      cfg.Store.Mmap,
	})
}
