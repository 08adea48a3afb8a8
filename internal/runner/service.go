// Package runner implements the buildbarn.runner.Runner gRPC service:
// one bb_runner process, one gRPC server, any number of concurrent
// sandboxed executions bounded by a CPU-slot queue.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/perfinion/bb-runner/internal/config"
	"github.com/perfinion/bb-runner/internal/logger"
	"github.com/perfinion/bb-runner/internal/runnerpb"
	"github.com/perfinion/bb-runner/internal/sandbox"
)

// Service implements runnerpb.RunnerServer.
type Service struct {
	runnerpb.UnimplementedRunnerServer

	cfg   *config.Config
	slots *sandbox.CPUSlots

	jobs int64 // monotonically increasing, used to derive job ids

	cgroupsMu sync.Mutex
	cgroups   map[int]*sandbox.CgroupHandle // one per CPU slot, created lazily, reused across jobs
}

// New constructs a Service backed by cfg. cfg.NumCPUs sizes the CPU-slot
// queue, so Load must already have resolved "0 means auto" before this
// is called.
func New(cfg *config.Config) *Service {
	return &Service{
		cfg:     cfg,
		slots:   sandbox.NewCPUSlots(cfg.NumCPUs),
		cgroups: make(map[int]*sandbox.CgroupHandle),
	}
}

// cgroupForCPU returns the cgroup handle for cpu, creating it on first
// use. Acquire guarantees at most one job holds cpu at a time, so the
// returned handle is never attached to two processes concurrently.
func (s *Service) cgroupForCPU(cpu int) (*sandbox.CgroupHandle, error) {
	s.cgroupsMu.Lock()
	defer s.cgroupsMu.Unlock()
	if h, ok := s.cgroups[cpu]; ok {
		return h, nil
	}
	h, err := sandbox.NewCgroup(s.cfg.CgroupRoot, strconv.Itoa(cpu), sandbox.CgroupLimits{
		CPUs:      []int{cpu},
		MemoryMax: s.cfg.MemoryMax,
	})
	if err != nil {
		return nil, err
	}
	s.cgroups[cpu] = h
	return h, nil
}

// Close releases every per-CPU-slot cgroup this Service has created. It
// must only be called once no job is in flight.
func (s *Service) Close() {
	s.cgroupsMu.Lock()
	defer s.cgroupsMu.Unlock()
	for cpu, h := range s.cgroups {
		if err := h.Destroy(); err != nil {
			logger.Warn("cgroup cleanup failed", "cpu", cpu, "err", err)
		}
	}
}

// CheckReadiness reports whether path exists under the build directory,
// per the external interface's readiness probe.
func (s *Service) CheckReadiness(ctx context.Context, req *runnerpb.CheckReadinessRequest) (*runnerpb.CheckReadinessResponse, error) {
	if req.Path == "" {
		return &runnerpb.CheckReadinessResponse{}, nil
	}
	full := filepath.Join(s.cfg.BuildDirectoryPath, req.Path)
	if _, err := os.Stat(full); err != nil {
		return nil, status.Errorf(codes.Unavailable, "readiness check %s: %v", req.Path, err)
	}
	return &runnerpb.CheckReadinessResponse{}, nil
}

// Run executes one command inside a fresh sandbox and reports its exit
// code and resource usage. It blocks for the lifetime of the sandboxed
// command, or until ctx is cancelled, whichever comes first.
func (s *Service) Run(ctx context.Context, req *runnerpb.RunRequest) (*runnerpb.RunResponse, error) {
	if len(req.Arguments) == 0 {
		return nil, status.Error(codes.InvalidArgument, "arguments must be non-empty")
	}

	jobID := fmt.Sprintf("%d-%s", atomic.AddInt64(&s.jobs, 1), uuid.NewString()[:8])
	log := logger.Log.With("job", jobID)

	cpu, err := s.slots.Acquire(ctx)
	if err != nil {
		return nil, status.Errorf(codes.ResourceExhausted, "no free CPU slot: %v", err)
	}
	defer s.slots.Release(cpu)

	inputRoot := s.resolvePath(req.InputRootDirectory)
	tmpDir := s.resolvePath(req.TemporaryDirectory)
	workDir := filepath.Join(inputRoot, req.WorkingDirectory)

	// temporary_directory/tmp and temporary_directory/home back TMP and
	// HOME inside the sandbox, per SPEC_FULL.md §4.I steps 2-3.
	var tmpSubdir, homeDir string
	if tmpDir != "" {
		tmpSubdir = filepath.Join(tmpDir, "tmp")
		homeDir = filepath.Join(tmpDir, "home")
		for _, dir := range []string{tmpDir, tmpSubdir, homeDir} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, status.Errorf(codes.Internal, "create temporary directory: %v", err)
			}
		}
	}

	stdout, err := s.openOutput(req.StdoutPath)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "open stdout: %v", err)
	}
	defer stdout.Close()
	stderr, err := s.openOutput(req.StderrPath)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "open stderr: %v", err)
	}
	defer stderr.Close()

	rwPaths := []string{inputRoot, tmpDir}
	if homeDir != "" {
		rwPaths = append(rwPaths, homeDir)
	}
	rwPaths = append(rwPaths, s.cfg.RWPaths...)

	cgroup, err := s.cgroupForCPU(cpu)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "create cgroup: %v", err)
	}

	env := flattenEnv(req.EnvironmentVariables)
	if tmpSubdir != "" {
		env = append(env, "TMP="+tmpSubdir, "HOME="+homeDir)
	}

	spec := &sandbox.Spec{
		Argv:             req.Arguments,
		Env:              env,
		WorkingDirectory: workDir,
		Stdout:           stdout,
		Stderr:           stderr,
		Hostname:         "localhost",
		RWPaths:          rwPaths,
		Cgroup:           cgroup,
	}

	log.Debug("spawning sandbox", "argv", req.Arguments, "cpu", cpu)
	proc, err := sandbox.Spawn(ctx, spec, jobID, tmpDir, cgroup)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "spawn sandbox: %v", err)
	}

	usage, waitErr := proc.Wait(ctx)

	exitCode := int32(0)
	if waitErr != nil {
		exitErr, ok := waitErr.(*sandbox.ExitError)
		if !ok {
			return nil, status.Errorf(codes.Internal, "sandboxed process: %v", waitErr)
		}
		if exitErr.Signal != "" {
			exitCode = 128
		} else {
			exitCode = int32(exitErr.ExitCode)
		}
	}

	usageAny, err := runnerpb.PackResourceUsage(&runnerpb.POSIXResourceUsage{
		UserTime:               durationpbFromDuration(usage.UserTime),
		SystemTime:             durationpbFromDuration(usage.SystemTime),
		MaximumResidentSetSize: usage.MaximumResidentSetSize,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "pack resource usage: %v", err)
	}

	return &runnerpb.RunResponse{
		ExitCode:      exitCode,
		ResourceUsage: []*anypb.Any{usageAny},
	}, nil
}

func (s *Service) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.cfg.BuildDirectoryPath, p)
}

func (s *Service) openOutput(p string) (*os.File, error) {
	if p == "" {
		return os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	}
	full := s.resolvePath(p)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
}

func durationpbFromDuration(d time.Duration) *durationpb.Duration {
	return durationpb.New(d)
}

func flattenEnv(vars map[string]string) []string {
	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	return env
}
