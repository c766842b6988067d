package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "cosine", cfg.Store.Metric)
	assert.Equal(t, "auto", cfg.Store.Backend)
	assert.True(t, cfg.Store.Adaptive)

	assert.Equal(t, 1.2, cfg.BM25.K1)
	assert.Equal(t, 0.75, cfg.BM25.B)
	assert.Equal(t, "custom", cfg.BM25.Backend)

	assert.Equal(t, "rrf", cfg.Fusion.Method)
	assert.Equal(t, 60, cfg.Fusion.RRFConstant)

	assert.Equal(t, 0.2, cfg.Bandit.ExplorationBonus)

	assert.Equal(t, 10000, cfg.Federated.TrajectoryCapacity)
	assert.Equal(t, 100000, cfg.Federated.MaxTrajectoryCapacity)

	assert.Equal(t, "info", cfg.Server.LogLevel)
}

func TestConfig_VersionDefaultsToOne(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 1, cfg.Version)
}

func TestConfig_DefaultsValidate(t *testing.T) {
	cfg := NewConfig()
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "cosine", cfg.Store.Metric)
}

func TestLoad_YamlFile_OverridesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
store:
  metric: ip
  dimension: 256
bm25:
  k1: 1.5
  b: 0.5
fusion:
  rrf_constant: 100
`
	err := os.WriteFile(filepath.Join(tmpDir, ".agentmem.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "ip", cfg.Store.Metric)
	assert.Equal(t, 256, cfg.Store.Dimension)
	assert.Equal(t, 1.5, cfg.BM25.K1)
	assert.Equal(t, 0.5, cfg.BM25.B)
	assert.Equal(t, 100, cfg.Fusion.RRFConstant)
}

func TestLoad_YmlExtension_IsRecognized(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
store:
  backend: hnsw
`
	err := os.WriteFile(filepath.Join(tmpDir, ".agentmem.yml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "hnsw", cfg.Store.Backend)
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	tmpDir := t.TempDir()
	yamlContent := "version: 1\nstore:\n  backend: hnsw\n"
	ymlContent := "version: 1\nstore:\n  backend: bleve-hybrid\n"
	err := os.WriteFile(filepath.Join(tmpDir, ".agentmem.yaml"), []byte(yamlContent), 0o644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(tmpDir, ".agentmem.yml"), []byte(ymlContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "hnsw", cfg.Store.Backend)
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	invalidContent := `
version: 1
bm25:
  k1: [invalid yaml syntax
`
	err := os.WriteFile(filepath.Join(tmpDir, ".agentmem.yaml"), []byte(invalidContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoad_InvalidConfig_FailsValidation(t *testing.T) {
	tmpDir := t.TempDir()
	invalidContent := `
version: 1
store:
  metric: euclidean
`
	err := os.WriteFile(filepath.Join(tmpDir, ".agentmem.yaml"), []byte(invalidContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_EnvVarOverridesMetric(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("AGENTMEM_METRIC", "ip")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "ip", cfg.Store.Metric)
}

func TestLoad_EnvVarOverridesLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("AGENTMEM_LOG_LEVEL", "debug")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestLoad_EnvVarOverridesBackend(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("AGENTMEM_BACKEND", "hnsw")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "hnsw", cfg.Store.Backend)
}

func TestLoad_EnvVarOverridesRRFConstant(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := "version: 1\nfusion:\n  rrf_constant: 100\n"
	err := os.WriteFile(filepath.Join(tmpDir, ".agentmem.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)
	t.Setenv("AGENTMEM_RRF_CONSTANT", "80")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Fusion.RRFConstant)
}

func TestLoad_EnvVarOverridesBM25Params(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("AGENTMEM_BM25_K1", "2.0")
	t.Setenv("AGENTMEM_BM25_B", "0.9")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.BM25.K1)
	assert.Equal(t, 0.9, cfg.BM25.B)
}

func TestLoad_EnvVarEmptyString_DoesNotOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("AGENTMEM_BACKEND", "")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "auto", cfg.Store.Backend)
}

func TestGetUserConfigPath_DefaultsToXDGLocation(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")

	path := GetUserConfigPath()

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	expected := filepath.Join(home, ".config", "agentmem", "config.yaml")
	assert.Equal(t, expected, path)
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	customConfig := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", customConfig)

	path := GetUserConfigPath()

	expected := filepath.Join(customConfig, "agentmem", "config.yaml")
	assert.Equal(t, expected, path)
}

func TestGetUserConfigDir_ReturnsParentOfConfigPath(t *testing.T) {
	dir := GetUserConfigDir()
	path := GetUserConfigPath()

	assert.Equal(t, filepath.Dir(path), dir)
}

func TestUserConfigExists_ReturnsFalseWhenMissing(t *testing.T) {
	emptyDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", emptyDir)

	assert.False(t, UserConfigExists())
}

func TestUserConfigExists_ReturnsTrueWhenPresent(t *testing.T) {
	configDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)
	agentmemDir := filepath.Join(configDir, "agentmem")
	require.NoError(t, os.MkdirAll(agentmemDir, 0o755))
	configPath := filepath.Join(agentmemDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("version: 1"), 0o644))

	assert.True(t, UserConfigExists())
}

func TestLoad_UserConfigOverridesDefaults(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	agentmemDir := filepath.Join(configDir, "agentmem")
	require.NoError(t, os.MkdirAll(agentmemDir, 0o755))
	userConfig := "version: 1\nstore:\n  path: /custom/store\n"
	require.NoError(t, os.WriteFile(filepath.Join(agentmemDir, "config.yaml"), []byte(userConfig), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, "/custom/store", cfg.Store.Path)
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	agentmemDir := filepath.Join(configDir, "agentmem")
	require.NoError(t, os.MkdirAll(agentmemDir, 0o755))
	userConfig := "version: 1\nstore:\n  backend: hnsw\n  metric: ip\n"
	require.NoError(t, os.WriteFile(filepath.Join(agentmemDir, "config.yaml"), []byte(userConfig), 0o644))

	projectConfig := "version: 1\nstore:\n  metric: cosine\n"
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".agentmem.yaml"), []byte(projectConfig), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, "cosine", cfg.Store.Metric)
	// user config's backend is still used (not overridden by project)
	assert.Equal(t, "hnsw", cfg.Store.Backend)
}

func TestLoad_EnvVarOverridesUserAndProjectConfig(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)
	t.Setenv("AGENTMEM_METRIC", "ip")

	agentmemDir := filepath.Join(configDir, "agentmem")
	require.NoError(t, os.MkdirAll(agentmemDir, 0o755))
	userConfig := "version: 1\nstore:\n  metric: cosine\n"
	require.NoError(t, os.WriteFile(filepath.Join(agentmemDir, "config.yaml"), []byte(userConfig), 0o644))

	projectConfig := "version: 1\nstore:\n  metric: cosine\n"
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".agentmem.yaml"), []byte(projectConfig), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, "ip", cfg.Store.Metric)
}

func TestLoad_InvalidUserConfig_ReturnsError(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	agentmemDir := filepath.Join(configDir, "agentmem")
	require.NoError(t, os.MkdirAll(agentmemDir, 0o755))
	invalidConfig := "version: 1\nstore:\n  dimension: [invalid yaml\n"
	require.NoError(t, os.WriteFile(filepath.Join(agentmemDir, "config.yaml"), []byte(invalidConfig), 0o644))

	cfg, err := Load(projectDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "user config")
}
