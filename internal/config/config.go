// Package config loads and validates the yaml configuration shared by the
// sandbox tooling.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gradebox/internal/language"
	"gradebox/internal/sandbox"
	"gradebox/internal/storage"
	"gradebox/pkg/utils/logger"
)

const (
	defaultSandboxBackend = "procbox"
	defaultTempDir        = "/tmp"
	defaultMaxFileSize    = 1 << 30 // 1 GiB
	defaultCacheTTL       = 30 * time.Minute
	defaultCacheEntries   = 256
	defaultCacheMaxBytes  = 4 << 30
	defaultCompileTime    = 10 * time.Second
	defaultCompileMemory  = 512 << 20
	defaultTrustedTime    = 10 * time.Second
	defaultTrustedMemory  = 4 << 30
	defaultLimitProcesses = 1000
)

// LimitsConfig bounds a class of sandboxed executions.
type LimitsConfig struct {
	MaxProcesses int           `yaml:"maxProcesses"`
	MaxTime      time.Duration `yaml:"maxTime"`
	MaxMemory    int64         `yaml:"maxMemory"`
}

// SandboxConfig holds sandbox backend settings.
type SandboxConfig struct {
	// Backend selects the sandbox implementation; "procbox" is the
	// reference backend.
	Backend        string `yaml:"backend"`
	TempDir        string `yaml:"tempDir"`
	HelperPath     string `yaml:"helperPath"`
	SeccompProfile string `yaml:"seccompProfile"`
	KeepSandbox    bool   `yaml:"keepSandbox"`
	UseCgroups     bool   `yaml:"useCgroups"`
	MaxFileSize    int64  `yaml:"maxFileSize"`
}

// CacheConfig holds local blob cache settings.
type CacheConfig struct {
	RootDir    string        `yaml:"rootDir"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"maxEntries"`
	MaxBytes   int64         `yaml:"maxBytes"`
}

// StorageConfig selects and configures the file store backend.
type StorageConfig struct {
	// Backend is "minio" or "local".
	Backend  string              `yaml:"backend"`
	LocalDir string              `yaml:"localDir"`
	MinIO    storage.MinIOConfig `yaml:"minio"`
	Cache    CacheConfig         `yaml:"cache"`
}

// AppConfig holds the full configuration.
type AppConfig struct {
	Logger      logger.Config   `yaml:"logger"`
	Sandbox     SandboxConfig   `yaml:"sandbox"`
	Storage     StorageConfig   `yaml:"storage"`
	Compilation LimitsConfig    `yaml:"compilation"`
	Trusted     LimitsConfig    `yaml:"trusted"`
	Languages   []language.Spec `yaml:"languages"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// Load reads the configuration at path and fills in defaults.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	if cfg.Storage.Backend == "minio" && cfg.Storage.MinIO.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with the stock limits.
func ApplyDefaults(cfg *AppConfig) {
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "console"
	}
	if cfg.Sandbox.Backend == "" {
		cfg.Sandbox.Backend = defaultSandboxBackend
	}
	if cfg.Sandbox.TempDir == "" {
		cfg.Sandbox.TempDir = defaultTempDir
	}
	if cfg.Sandbox.MaxFileSize <= 0 {
		cfg.Sandbox.MaxFileSize = defaultMaxFileSize
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Storage.LocalDir == "" {
		cfg.Storage.LocalDir = "./blobs"
	}
	if cfg.Storage.Cache.TTL == 0 {
		cfg.Storage.Cache.TTL = defaultCacheTTL
	}
	if cfg.Storage.Cache.MaxEntries <= 0 {
		cfg.Storage.Cache.MaxEntries = defaultCacheEntries
	}
	if cfg.Storage.Cache.MaxBytes <= 0 {
		cfg.Storage.Cache.MaxBytes = defaultCacheMaxBytes
	}
	applyLimitDefaults(&cfg.Compilation, defaultCompileTime, defaultCompileMemory)
	applyLimitDefaults(&cfg.Trusted, defaultTrustedTime, defaultTrustedMemory)
}

func applyLimitDefaults(limits *LimitsConfig, maxTime time.Duration, maxMemory int64) {
	if limits.MaxProcesses <= 0 {
		limits.MaxProcesses = defaultLimitProcesses
	}
	if limits.MaxTime == 0 {
		limits.MaxTime = maxTime
	}
	if limits.MaxMemory <= 0 {
		limits.MaxMemory = maxMemory
	}
}

// ToProcBoxConfig maps the sandbox section onto the backend config.
func (s SandboxConfig) ToProcBoxConfig() sandbox.ProcBoxConfig {
	return sandbox.ProcBoxConfig{
		TempDir:        s.TempDir,
		HelperPath:     s.HelperPath,
		SeccompProfile: s.SeccompProfile,
		KeepSandbox:    s.KeepSandbox,
		UseCgroups:     s.UseCgroups,
	}
}

// Apply copies the limits onto a sandbox before an execution. The wall-clock
// budget is twice the CPU budget plus a fixed grace so a process that sleeps
// instead of computing still gets terminated.
func (l LimitsConfig) Apply(base *sandbox.Base, maxFileSize int64) {
	base.MaxProcesses = l.MaxProcesses
	base.MaxCPUTime = l.MaxTime
	base.MaxWallTime = 2*l.MaxTime + 2*time.Second
	base.MaxMemory = l.MaxMemory
	base.MaxFileSize = maxFileSize
}
