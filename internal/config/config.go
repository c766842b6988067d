package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// CoreConfig is the complete configuration for the memory core: the vector
// store, hybrid search, compressor, contrastive trainer, intent router,
// bandit, federated aggregator, and witness chain all read their tunables
// from one of these.
type CoreConfig struct {
	Version     int               `yaml:"version" json:"version"`
	Store       StoreConfig       `yaml:"store" json:"store"`
	BM25        BM25Config        `yaml:"bm25" json:"bm25"`
	Fusion      FusionConfig      `yaml:"fusion" json:"fusion"`
	Compress    CompressConfig    `yaml:"compress" json:"compress"`
	Contrastive ContrastiveConfig `yaml:"contrastive" json:"contrastive"`
	Router      RouterConfig      `yaml:"router" json:"router"`
	Bandit      BanditConfig      `yaml:"bandit" json:"bandit"`
	Federated   FederatedConfig   `yaml:"federated" json:"federated"`
	Witness     WitnessConfig     `yaml:"witness" json:"witness"`
	Server      ServerConfig      `yaml:"server" json:"server"`
}

// StoreConfig configures the vector index (C1) and the backend facade (C10).
type StoreConfig struct {
	Path      string `yaml:"path" json:"path"`
	Dimension int    `yaml:"dimension" json:"dimension"`
	// Metric is "cosine", "l2", or "ip".
	Metric string `yaml:"metric" json:"metric"`
	// Backend is "auto", "hnsw", or "bleve-hybrid". The CLI maps "auto" and
	// "hnsw" onto the store facade's backend names and passes any other value
	// through unchanged.
	Backend  string `yaml:"backend" json:"backend"`
	Adaptive bool   `yaml:"adaptive" json:"adaptive"`
	Mmap     bool   `yaml:"mmap" json:"mmap"`
}

// BM25Config configures the keyword half of hybrid search (C4).
type BM25Config struct {
	K1 float64 `yaml:"k1" json:"k1"`
	B  float64 `yaml:"b" json:"b"`
	// Backend selects "custom" (exact-formula, default) or "bleve".
	Backend        string   `yaml:"backend" json:"backend"`
	StopWords      []string `yaml:"stop_words" json:"stop_words"`
	MinTokenLength int      `yaml:"min_token_length" json:"min_token_length"`
}

// FusionConfig configures how BM25 and vector results are combined (C4).
type FusionConfig struct {
	// Method is "rrf", "linear", or "max".
	Method      string  `yaml:"method" json:"method"`
	RRFConstant int     `yaml:"rrf_constant" json:"rrf_constant"`
	BM25Weight  float64 `yaml:"bm25_weight" json:"bm25_weight"`
	VectorWeight float64 `yaml:"vector_weight" json:"vector_weight"`
}

// CompressConfig configures the tiered vector compressor (C2).
type CompressConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Access-count thresholds for demoting a vector to a lower-fidelity tier.
	// A vector with at least HalfThreshold accesses in the observation window
	// stays at "none"; fewer than HalfThreshold moves to "half"; fewer than
	// PQ8Threshold to "pq8"; and so on down to "binary" for the coldest vectors.
	HalfThreshold   int `yaml:"half_threshold" json:"half_threshold"`
	PQ8Threshold    int `yaml:"pq8_threshold" json:"pq8_threshold"`
	PQ4Threshold    int `yaml:"pq4_threshold" json:"pq4_threshold"`
	BinaryThreshold int `yaml:"binary_threshold" json:"binary_threshold"`
}

// ContrastiveConfig configures the online contrastive trainer (C5).
type ContrastiveConfig struct {
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	WeightDecay  float64 `yaml:"weight_decay" json:"weight_decay"`
	Temperature  float64 `yaml:"temperature" json:"temperature"`
	MaxNegatives int     `yaml:"max_negatives" json:"max_negatives"`
	// Curriculum is a sequence of "negative_count:hard_negative_threshold:batches" stages.
	Curriculum []string `yaml:"curriculum" json:"curriculum"`
}

// RouterConfig configures the intent router (C6).
type RouterConfig struct {
	MaxIntents           int     `yaml:"max_intents" json:"max_intents"`
	MaxExemplarsPerIntent int    `yaml:"max_exemplars_per_intent" json:"max_exemplars_per_intent"`
	Threshold            float64 `yaml:"threshold" json:"threshold"`
	DebounceSeconds      float64 `yaml:"debounce_seconds" json:"debounce_seconds"`
	PersistPath          string  `yaml:"persist_path" json:"persist_path"`
}

// BanditConfig configures the contextual Thompson-sampling bandit (C9).
type BanditConfig struct {
	ExplorationBonus float64 `yaml:"exploration_bonus" json:"exploration_bonus"`
	CostWeight       float64 `yaml:"cost_weight" json:"cost_weight"`
	CostEMADecay     float64 `yaml:"cost_ema_decay" json:"cost_ema_decay"`
	PersistPath      string  `yaml:"persist_path" json:"persist_path"`
}

// FederatedConfig configures the federated aggregator (C8).
type FederatedConfig struct {
	TrajectoryCapacity      int     `yaml:"trajectory_capacity" json:"trajectory_capacity"`
	MaxTrajectoryCapacity   int     `yaml:"max_trajectory_capacity" json:"max_trajectory_capacity"`
	ConsolidationThreshold  int     `yaml:"consolidation_threshold" json:"consolidation_threshold"`
	LoRARank                int     `yaml:"lora_rank" json:"lora_rank"`
	StoragePath             string  `yaml:"storage_path" json:"storage_path"`
}

// WitnessConfig configures the witness chain and recall certificates (C7).
type WitnessConfig struct {
	ChainPath string `yaml:"chain_path" json:"chain_path"`
}

// ServerConfig configures ambient, non-domain-specific facade settings.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a new CoreConfig with sensible defaults mirroring §4's
// per-component defaults.
func NewConfig() *CoreConfig {
	return &CoreConfig{
		Version: 1,
		Store: StoreConfig{
			Path:      defaultStorePath(),
			Dimension: 0, // caller must set or auto-detect on open_store
			Metric:    "cosine",
			Backend:   "auto",
			Adaptive:  true,
			Mmap:      false,
		},
		BM25: BM25Config{
			K1:             1.2,
			B:              0.75,
			Backend:        "custom",
			StopWords:      nil,
			MinTokenLength: 2,
		},
		Fusion: FusionConfig{
			Method:       "rrf",
			RRFConstant:  60,
			BM25Weight:   0.5,
			VectorWeight: 0.5,
		},
		Compress: CompressConfig{
			Enabled:         true,
			HalfThreshold:   50,
			PQ8Threshold:    20,
			PQ4Threshold:    5,
			BinaryThreshold: 1,
		},
		Contrastive: ContrastiveConfig{
			LearningRate: 1e-3,
			WeightDecay:  1e-2,
			Temperature:  0.07,
			MaxNegatives: 128,
			Curriculum:   []string{"4:0.5:100", "8:0.3:100", "16:0.1:100"},
		},
		Router: RouterConfig{
			MaxIntents:            1000,
			MaxExemplarsPerIntent: 100,
			Threshold:             0.0,
			DebounceSeconds:       5.0,
			PersistPath:           "",
		},
		Bandit: BanditConfig{
			ExplorationBonus: 0.2,
			CostWeight:       0.0,
			CostEMADecay:     0.1,
			PersistPath:      "",
		},
		Federated: FederatedConfig{
			TrajectoryCapacity:     10000,
			MaxTrajectoryCapacity:  100000,
			ConsolidationThreshold: 20,
			LoRARank:               0,
			StoragePath:            defaultFederatedPath(),
		},
		Witness: WitnessConfig{
			ChainPath: "",
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".agentmem", "store")
	}
	return filepath.Join(home, ".agentmem", "store")
}

func defaultFederatedPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".agentmem", "sessions")
	}
	return filepath.Join(home, ".agentmem", "sessions")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/agentmem/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/agentmem/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "agentmem", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "agentmem", "config.yaml")
	}
	return filepath.Join(home, ".config", "agentmem", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*CoreConfig, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration from the specified directory, applying overrides
// in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/agentmem/config.yaml)
//  3. Project config (.agentmem.yaml in dir)
//  4. Environment variables (AGENTMEM_*)
func Load(dir string) (*CoreConfig, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .agentmem.yaml or .agentmem.yml.
func (c *CoreConfig) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".agentmem.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".agentmem.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *CoreConfig) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed CoreConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *CoreConfig) mergeWith(other *CoreConfig) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
	if other.Store.Dimension != 0 {
		c.Store.Dimension = other.Store.Dimension
	}
	if other.Store.Metric != "" {
		c.Store.Metric = other.Store.Metric
	}
	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}

	if other.BM25.K1 != 0 {
		c.BM25.K1 = other.BM25.K1
	}
	if other.BM25.B != 0 {
		c.BM25.B = other.BM25.B
	}
	if other.BM25.Backend != "" {
		c.BM25.Backend = other.BM25.Backend
	}
	if len(other.BM25.StopWords) > 0 {
		c.BM25.StopWords = other.BM25.StopWords
	}
	if other.BM25.MinTokenLength != 0 {
		c.BM25.MinTokenLength = other.BM25.MinTokenLength
	}

	if other.Fusion.Method != "" {
		c.Fusion.Method = other.Fusion.Method
	}
	if other.Fusion.RRFConstant != 0 {
		c.Fusion.RRFConstant = other.Fusion.RRFConstant
	}
	if other.Fusion.BM25Weight != 0 {
		c.Fusion.BM25Weight = other.Fusion.BM25Weight
	}
	if other.Fusion.VectorWeight != 0 {
		c.Fusion.VectorWeight = other.Fusion.VectorWeight
	}

	if other.Compress.HalfThreshold != 0 {
		c.Compress.HalfThreshold = other.Compress.HalfThreshold
	}
	if other.Compress.PQ8Threshold != 0 {
		c.Compress.PQ8Threshold = other.Compress.PQ8Threshold
	}
	if other.Compress.PQ4Threshold != 0 {
		c.Compress.PQ4Threshold = other.Compress.PQ4Threshold
	}
	if other.Compress.BinaryThreshold != 0 {
		c.Compress.BinaryThreshold = other.Compress.BinaryThreshold
	}

	if other.Contrastive.LearningRate != 0 {
		c.Contrastive.LearningRate = other.Contrastive.LearningRate
	}
	if other.Contrastive.WeightDecay != 0 {
		c.Contrastive.WeightDecay = other.Contrastive.WeightDecay
	}
	if other.Contrastive.Temperature != 0 {
		c.Contrastive.Temperature = other.Contrastive.Temperature
	}
	if other.Contrastive.MaxNegatives != 0 {
		c.Contrastive.MaxNegatives = other.Contrastive.MaxNegatives
	}
	if len(other.Contrastive.Curriculum) > 0 {
		c.Contrastive.Curriculum = other.Contrastive.Curriculum
	}

	if other.Router.MaxIntents != 0 {
		c.Router.MaxIntents = other.Router.MaxIntents
	}
	if other.Router.MaxExemplarsPerIntent != 0 {
		c.Router.MaxExemplarsPerIntent = other.Router.MaxExemplarsPerIntent
	}
	if other.Router.Threshold != 0 {
		c.Router.Threshold = other.Router.Threshold
	}
	if other.Router.DebounceSeconds != 0 {
		c.Router.DebounceSeconds = other.Router.DebounceSeconds
	}
	if other.Router.PersistPath != "" {
		c.Router.PersistPath = other.Router.PersistPath
	}

	if other.Bandit.ExplorationBonus != 0 {
		c.Bandit.ExplorationBonus = other.Bandit.ExplorationBonus
	}
	if other.Bandit.CostWeight != 0 {
		c.Bandit.CostWeight = other.Bandit.CostWeight
	}
	if other.Bandit.CostEMADecay != 0 {
		c.Bandit.CostEMADecay = other.Bandit.CostEMADecay
	}
	if other.Bandit.PersistPath != "" {
		c.Bandit.PersistPath = other.Bandit.PersistPath
	}

	if other.Federated.TrajectoryCapacity != 0 {
		c.Federated.TrajectoryCapacity = other.Federated.TrajectoryCapacity
	}
	if other.Federated.MaxTrajectoryCapacity != 0 {
		c.Federated.MaxTrajectoryCapacity = other.Federated.MaxTrajectoryCapacity
	}
	if other.Federated.ConsolidationThreshold != 0 {
		c.Federated.ConsolidationThreshold = other.Federated.ConsolidationThreshold
	}
	if other.Federated.LoRARank != 0 {
		c.Federated.LoRARank = other.Federated.LoRARank
	}
	if other.Federated.StoragePath != "" {
		c.Federated.StoragePath = other.Federated.StoragePath
	}

	if other.Witness.ChainPath != "" {
		c.Witness.ChainPath = other.Witness.ChainPath
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies AGENTMEM_* environment variable overrides.
func (c *CoreConfig) applyEnvOverrides() {
	if v := os.Getenv("AGENTMEM_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("AGENTMEM_DIMENSION"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			c.Store.Dimension = d
		}
	}
	if v := os.Getenv("AGENTMEM_METRIC"); v != "" {
		c.Store.Metric = v
	}
	if v := os.Getenv("AGENTMEM_BACKEND"); v != "" {
		c.Store.Backend = v
	}

	if v := os.Getenv("AGENTMEM_BM25_K1"); v != "" {
		if f, err := parseFloat64(v); err == nil && f > 0 {
			c.BM25.K1 = f
		}
	}
	if v := os.Getenv("AGENTMEM_BM25_B"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 && f <= 1 {
			c.BM25.B = f
		}
	}
	if v := os.Getenv("AGENTMEM_BM25_BACKEND"); v != "" {
		c.BM25.Backend = v
	}

	if v := os.Getenv("AGENTMEM_FUSION_METHOD"); v != "" {
		c.Fusion.Method = v
	}
	if v := os.Getenv("AGENTMEM_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Fusion.RRFConstant = k
		}
	}
	if v := os.Getenv("AGENTMEM_BM25_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Fusion.BM25Weight = w
		}
	}
	if v := os.Getenv("AGENTMEM_VECTOR_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Fusion.VectorWeight = w
		}
	}

	if v := os.Getenv("AGENTMEM_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *CoreConfig) Validate() error {
	if c.Store.Dimension < 0 {
		return fmt.Errorf("store.dimension must be non-negative, got %d", c.Store.Dimension)
	}
	if c.Store.Dimension > 4096 {
		return fmt.Errorf("store.dimension must be at most 4096, got %d", c.Store.Dimension)
	}

	validMetrics := map[string]bool{"cosine": true, "l2": true, "ip": true}
	if !validMetrics[strings.ToLower(c.Store.Metric)] {
		return fmt.Errorf("store.metric must be 'cosine', 'l2', or 'ip', got %s", c.Store.Metric)
	}

	validBackends := map[string]bool{"auto": true, "hnsw": true, "bleve-hybrid": true}
	if !validBackends[strings.ToLower(c.Store.Backend)] {
		return fmt.Errorf("store.backend must be 'auto', 'hnsw', or 'bleve-hybrid', got %s", c.Store.Backend)
	}

	if c.BM25.K1 <= 0 {
		return fmt.Errorf("bm25.k1 must be positive, got %f", c.BM25.K1)
	}
	if c.BM25.B < 0 || c.BM25.B > 1 {
		return fmt.Errorf("bm25.b must be between 0 and 1, got %f", c.BM25.B)
	}

	validFusion := map[string]bool{"rrf": true, "linear": true, "max": true}
	if !validFusion[strings.ToLower(c.Fusion.Method)] {
		return fmt.Errorf("fusion.method must be 'rrf', 'linear', or 'max', got %s", c.Fusion.Method)
	}
	if c.Fusion.Method == "linear" {
		sum := c.Fusion.BM25Weight + c.Fusion.VectorWeight
		if math.Abs(sum-1.0) > 0.01 {
			return fmt.Errorf("fusion.bm25_weight + fusion.vector_weight must equal 1.0 for linear fusion, got %.2f", sum)
		}
	}

	if c.Bandit.ExplorationBonus < 0 {
		return fmt.Errorf("bandit.exploration_bonus must be non-negative, got %f", c.Bandit.ExplorationBonus)
	}

	if c.Federated.TrajectoryCapacity <= 0 {
		return fmt.Errorf("federated.trajectory_capacity must be positive, got %d", c.Federated.TrajectoryCapacity)
	}
	if c.Federated.MaxTrajectoryCapacity < c.Federated.TrajectoryCapacity {
		return fmt.Errorf("federated.max_trajectory_capacity must be >= trajectory_capacity")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *CoreConfig) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*CoreConfig, error) {
	return loadUserConfig()
}
