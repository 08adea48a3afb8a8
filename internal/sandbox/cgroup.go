//go:build linux

package sandbox

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/perfinion/bb-runner/internal/logger"
)

// cgroupVersion is which cgroup hierarchy bb_runner places jobs into.
// Detected via mountinfo on every NewCgroup call, the same way
// ja7ad-consumption's pkg/system/cgroup.Detect does.
type cgroupVersion int

const (
	cgroupUnavailable cgroupVersion = iota
	cgroupV1
	cgroupV2
)

// detectCgroupVersion scans /proc/self/mountinfo for a cgroup2 mount, and
// failing that, any cgroup (v1) mount; which controllers a v1 mount
// carries is not checked.
func detectCgroupVersion() cgroupVersion {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return cgroupUnavailable
	}
	defer f.Close()

	sawV1 := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// mountinfo fields are separated by a "-" marker; fstype follows it.
		idx := -1
		for i, f := range fields {
			if f == "-" {
				idx = i
				break
			}
		}
		if idx < 0 || idx+1 >= len(fields) {
			continue
		}
		switch fields[idx+1] {
		case "cgroup2":
			return cgroupV2
		case "cgroup":
			sawV1 = true
		}
	}
	if sawV1 {
		return cgroupV1
	}
	return cgroupUnavailable
}

// CgroupHandle owns one per-CPU-slot cgroup directory: a leaf under
// <CgroupRoot>/cpu-<id> (v2) or matching per-controller directories under
// <CgroupRoot>/{cpuset,memory}/cpu-<id> (v1). One handle is created
// lazily per CPU slot on first use and then reused by every job
// scheduled onto that slot for the lifetime of the process.
type CgroupHandle struct {
	version cgroupVersion
	paths   []string // every directory created, for Destroy
	procs   []string // cgroup.procs-equivalent files to add a pid to
}

// CgroupLimits bounds what a job's cgroup enforces. Zero values mean "no
// limit" for that dimension.
type CgroupLimits struct {
	CPUs      []int // cpuset.cpus members, empty means unrestricted
	MemoryMax uint64
}

// NewCgroup creates and configures the per-slot cgroup directory tree
// for id (the CPU slot index, as a string). Returns (nil, nil) when no
// cgroup hierarchy is mounted — callers fall back to resource accounting
// without enforcement, matching the teacher's prlimit-only fallback in
// cgroup_linux.go.
func NewCgroup(root, id string, limits CgroupLimits) (*CgroupHandle, error) {
	switch detectCgroupVersion() {
	case cgroupV2:
		return newCgroupV2(root, id, limits)
	case cgroupV1:
		return newCgroupV1(root, id, limits)
	default:
		logger.Warn("no cgroup hierarchy mounted, running without resource enforcement", "cpu", id)
		return nil, nil
	}
}

func newCgroupV2(root, id string, limits CgroupLimits) (*CgroupHandle, error) {
	path := filepath.Join(root, "cpu-"+id)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir cgroup %s: %w", path, err)
	}
	if err := enableSubtreeControllers(root, []string{"+cpuset", "+memory", "+pids"}); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("enable cgroup controllers: %w", err)
	}
	if len(limits.CPUs) > 0 {
		if err := writeCgroupFile(path, "cpuset.cpus", cpuListString(limits.CPUs)); err != nil {
			os.RemoveAll(path)
			return nil, err
		}
	}
	if limits.MemoryMax > 0 {
		if err := writeCgroupFile(path, "memory.max", fmt.Sprintf("%d", limits.MemoryMax)); err != nil {
			os.RemoveAll(path)
			return nil, err
		}
		if err := writeCgroupFile(path, "memory.swap.max", "0"); err != nil {
			logger.Debug("memory.swap.max not settable", "err", err)
		}
		if err := writeCgroupFile(path, "memory.oom.group", "1"); err != nil {
			logger.Debug("memory.oom.group not settable", "err", err)
		}
	}
	return &CgroupHandle{
		version: cgroupV2,
		paths:   []string{path},
		procs:   []string{filepath.Join(path, "cgroup.procs")},
	}, nil
}

func newCgroupV1(root, id string, limits CgroupLimits) (*CgroupHandle, error) {
	h := &CgroupHandle{version: cgroupV1}
	for _, controller := range []string{"cpuset", "memory"} {
		path := filepath.Join(root, controller, "cpu-"+id)
		if err := os.MkdirAll(path, 0o755); err != nil {
			h.Destroy()
			return nil, fmt.Errorf("mkdir cgroup %s: %w", path, err)
		}
		h.paths = append(h.paths, path)
		h.procs = append(h.procs, filepath.Join(path, "tasks"))

		switch controller {
		case "cpuset":
			// v1 cpuset requires cpus/mems to be populated from the
			// parent before any process can join.
			parentCPUs, _ := os.ReadFile(filepath.Join(root, controller, "cpuset.cpus"))
			parentMems, _ := os.ReadFile(filepath.Join(root, controller, "cpuset.mems"))
			cpus := strings.TrimSpace(string(parentCPUs))
			if len(limits.CPUs) > 0 {
				cpus = cpuListString(limits.CPUs)
			}
			if err := writeCgroupFile(path, "cpuset.cpus", cpus); err != nil {
				h.Destroy()
				return nil, err
			}
			if err := writeCgroupFile(path, "cpuset.mems", strings.TrimSpace(string(parentMems))); err != nil {
				h.Destroy()
				return nil, err
			}
		case "memory":
			if limits.MemoryMax > 0 {
				if err := writeCgroupFile(path, "memory.limit_in_bytes", fmt.Sprintf("%d", limits.MemoryMax)); err != nil {
					h.Destroy()
					return nil, err
				}
			}
		}
	}
	return h, nil
}

// Attach moves pid into every controller directory this handle owns.
func (h *CgroupHandle) Attach(pid int) error {
	if h == nil {
		return nil
	}
	for _, procsFile := range h.procs {
		if err := os.WriteFile(procsFile, []byte(strconv.Itoa(pid)), 0o644); err != nil {
			return fmt.Errorf("attach pid %d to %s: %w", pid, procsFile, err)
		}
	}
	return nil
}

// Destroy removes every directory this handle created. All member
// processes must already have exited — the kernel refuses to rmdir a
// non-empty cgroup.
func (h *CgroupHandle) Destroy() error {
	if h == nil {
		return nil
	}
	var firstErr error
	for i := len(h.paths) - 1; i >= 0; i-- {
		if err := os.Remove(h.paths[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func writeCgroupFile(dir, name, value string) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// enableSubtreeControllers writes to root's cgroup.subtree_control,
// retrying through the "no internal processes" EBUSY workaround from the
// teacher's cgroup_linux.go: move bb_runner itself into a leaf directory
// first, then retry.
func enableSubtreeControllers(root string, controllers []string) error {
	controlPath := filepath.Join(root, "cgroup.subtree_control")
	payload := strings.Join(controllers, " ")

	err := os.WriteFile(controlPath, []byte(payload), 0o644)
	if err == nil {
		return nil
	}
	if !strings.Contains(err.Error(), "device or resource busy") {
		return err
	}

	leafPath := filepath.Join(root, "bb_runner-leaf")
	if err := os.MkdirAll(leafPath, 0o755); err != nil {
		return fmt.Errorf("create leaf cgroup: %w", err)
	}
	if err := os.WriteFile(filepath.Join(leafPath, "cgroup.procs"), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("move self to leaf cgroup: %w", err)
	}
	return os.WriteFile(controlPath, []byte(payload), 0o644)
}

func cpuListString(cpus []int) string {
	parts := make([]string, len(cpus))
	for i, c := range cpus {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}
