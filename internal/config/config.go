// Package config loads the JSON-compatible document that configures a
// bb_runner server instance.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Config holds everything needed to start the runner service.
//
// It is intentionally a flat struct matching the JSON document described
// in the specification: callers are expected to hand-edit this file, not
// generate it, so there is no nested "sections" indirection.
type Config struct {
	// BuildDirectoryPath is the root under which input roots, temporary
	// directories, and stdout/stderr files live. Required.
	BuildDirectoryPath string `json:"buildDirectoryPath"`

	// GRPCListenPath is the absolute path of the Unix domain socket to
	// bind. Required.
	GRPCListenPath string `json:"grpcListenPath"`

	// NumCPUs sizes the CPU-slot queue. 0 means "auto" (available
	// parallelism on the host).
	NumCPUs int `json:"numCpus,omitempty"`

	// MemoryMax is the per-job memory cap, in bytes, applied to every
	// job. 0 means no cap.
	MemoryMax uint64 `json:"memoryMax,omitempty"`

	// RWPaths lists additional writable paths granted to every sandbox,
	// on top of the job's own input root, temp dir, and home dir.
	RWPaths []string `json:"rwPaths,omitempty"`

	// CgroupRoot is the well-known root under which per-job cgroup
	// directories are created. Not part of the wire config schema;
	// overridable for tests.
	CgroupRoot string `json:"-"`
}

const defaultCgroupRoot = "/sys/fs/cgroup/bb_runner"

// Load reads and validates the configuration document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BuildDirectoryPath == "" {
		return fmt.Errorf("config: buildDirectoryPath is required")
	}
	if c.GRPCListenPath == "" {
		return fmt.Errorf("config: grpcListenPath is required")
	}
	info, err := os.Stat(c.BuildDirectoryPath)
	if err != nil {
		return fmt.Errorf("config: buildDirectoryPath %s: %w", c.BuildDirectoryPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("config: buildDirectoryPath %s is not a directory", c.BuildDirectoryPath)
	}
	if err := os.MkdirAll(filepath.Dir(c.GRPCListenPath), 0o755); err != nil {
		return fmt.Errorf("config: create grpcListenPath parent: %w", err)
	}
	if c.NumCPUs == 0 {
		c.NumCPUs = runtime.NumCPU()
	}
	if c.NumCPUs <= 0 {
		return fmt.Errorf("config: numCpus resolved to %d, want > 0", c.NumCPUs)
	}
	if c.CgroupRoot == "" {
		c.CgroupRoot = defaultCgroupRoot
	}
	return nil
}
