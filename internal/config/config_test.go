package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir string, v map[string]any) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadDefaultsNumCPUs(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"buildDirectoryPath": dir,
		"grpcListenPath":     filepath.Join(dir, "sock", "bb_runner.sock"),
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NumCPUs <= 0 {
		t.Fatalf("NumCPUs = %d, want > 0", cfg.NumCPUs)
	}
	if cfg.CgroupRoot != defaultCgroupRoot {
		t.Errorf("CgroupRoot = %q, want %q", cfg.CgroupRoot, defaultCgroupRoot)
	}
	if _, err := os.Stat(filepath.Dir(cfg.GRPCListenPath)); err != nil {
		t.Errorf("grpcListenPath parent not created: %v", err)
	}
}

func TestLoadMissingRequiredKeys(t *testing.T) {
	dir := t.TempDir()

	path := writeConfig(t, dir, map[string]any{"grpcListenPath": "/tmp/x.sock"})
	if _, err := Load(path); err == nil {
		t.Error("expected error for missing buildDirectoryPath")
	}

	path = writeConfig(t, dir, map[string]any{"buildDirectoryPath": dir})
	if _, err := Load(path); err == nil {
		t.Error("expected error for missing grpcListenPath")
	}
}

func TestLoadBuildDirectoryMustExist(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"buildDirectoryPath": filepath.Join(dir, "does-not-exist"),
		"grpcListenPath":     filepath.Join(dir, "bb_runner.sock"),
	})
	if _, err := Load(path); err == nil {
		t.Error("expected error for nonexistent buildDirectoryPath")
	}
}

func TestLoadExplicitNumCPUsPreserved(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"buildDirectoryPath": dir,
		"grpcListenPath":     filepath.Join(dir, "bb_runner.sock"),
		"numCpus":            3,
		"memoryMax":          1 << 30,
		"rwPaths":            []string{"/opt/cache"},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NumCPUs != 3 {
		t.Errorf("NumCPUs = %d, want 3", cfg.NumCPUs)
	}
	if cfg.MemoryMax != 1<<30 {
		t.Errorf("MemoryMax = %d, want %d", cfg.MemoryMax, 1<<30)
	}
	if len(cfg.RWPaths) != 1 || cfg.RWPaths[0] != "/opt/cache" {
		t.Errorf("RWPaths = %v", cfg.RWPaths)
	}
}
