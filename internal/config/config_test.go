package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gradebox/internal/sandbox"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gradebox.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "logger:\n  level: debug\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Logger.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logger.Level)
	}
	if cfg.Logger.Format != "console" {
		t.Fatalf("default format = %q", cfg.Logger.Format)
	}
	if cfg.Sandbox.Backend != "procbox" {
		t.Fatalf("default backend = %q, want %q", cfg.Sandbox.Backend, "procbox")
	}
	if cfg.Sandbox.TempDir != "/tmp" {
		t.Fatalf("default temp dir = %q", cfg.Sandbox.TempDir)
	}
	if cfg.Sandbox.MaxFileSize != 1<<30 {
		t.Fatalf("default max file size = %d", cfg.Sandbox.MaxFileSize)
	}
	if cfg.Storage.Backend != "local" {
		t.Fatalf("default backend = %q", cfg.Storage.Backend)
	}
	if cfg.Compilation.MaxProcesses != 1000 {
		t.Fatalf("compilation max processes = %d", cfg.Compilation.MaxProcesses)
	}
	if cfg.Compilation.MaxTime != 10*time.Second {
		t.Fatalf("compilation max time = %v", cfg.Compilation.MaxTime)
	}
	if cfg.Compilation.MaxMemory != 512<<20 {
		t.Fatalf("compilation max memory = %d", cfg.Compilation.MaxMemory)
	}
	if cfg.Trusted.MaxMemory != 4<<30 {
		t.Fatalf("trusted max memory = %d", cfg.Trusted.MaxMemory)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
sandbox:
  tempDir: /var/lib/boxes
  keepSandbox: true
  maxFileSize: 2048
storage:
  backend: minio
  minio:
    endpoint: minio.internal:9000
    bucket: blobs
compilation:
  maxProcesses: 64
  maxTime: 20s
trusted:
  maxMemory: 8589934592
languages:
  - name: "C11 / clang"
    sourceExtensions: [".c"]
    compile: ["/usr/bin/clang -O2 -o {exe} {sources}"]
    evaluate: ["./{exe}"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Sandbox.TempDir != "/var/lib/boxes" || !cfg.Sandbox.KeepSandbox {
		t.Fatalf("sandbox section = %+v", cfg.Sandbox)
	}
	if cfg.Sandbox.MaxFileSize != 2048 {
		t.Fatalf("max file size = %d", cfg.Sandbox.MaxFileSize)
	}
	if cfg.Storage.MinIO.Endpoint != "minio.internal:9000" {
		t.Fatalf("minio endpoint = %q", cfg.Storage.MinIO.Endpoint)
	}
	if cfg.Compilation.MaxProcesses != 64 || cfg.Compilation.MaxTime != 20*time.Second {
		t.Fatalf("compilation limits = %+v", cfg.Compilation)
	}
	if cfg.Trusted.MaxMemory != 8<<30 {
		t.Fatalf("trusted max memory = %d", cfg.Trusted.MaxMemory)
	}
	if len(cfg.Languages) != 1 || cfg.Languages[0].Name != "C11 / clang" {
		t.Fatalf("languages = %+v", cfg.Languages)
	}

	boxCfg := cfg.Sandbox.ToProcBoxConfig()
	if boxCfg.TempDir != "/var/lib/boxes" || !boxCfg.KeepSandbox {
		t.Fatalf("procbox config = %+v", boxCfg)
	}
}

func TestLoadRejectsMinioWithoutEndpoint(t *testing.T) {
	path := writeConfig(t, "storage:\n  backend: minio\n")
	if _, err := Load(path); err == nil {
		t.Fatal("minio backend without endpoint accepted")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing config accepted")
	}
}

func TestLimitsApply(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	base := sandbox.NewBase(nil, "limits", "/tmp")
	cfg.Compilation.Apply(&base, cfg.Sandbox.MaxFileSize)
	if base.MaxCPUTime != 10*time.Second {
		t.Fatalf("cpu limit = %v", base.MaxCPUTime)
	}
	if base.MaxWallTime != 22*time.Second {
		t.Fatalf("wall limit = %v", base.MaxWallTime)
	}
	if base.MaxMemory != 512<<20 {
		t.Fatalf("memory limit = %d", base.MaxMemory)
	}
	if base.MaxFileSize != 1<<30 {
		t.Fatalf("file size limit = %d", base.MaxFileSize)
	}
}
