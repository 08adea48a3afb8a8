//go:build linux

package sandbox

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/perfinion/bb-runner/internal/logger"
)

// Spawn realizes a Spec as a fresh PID-1 child, per SPEC_FULL.md §4.F.
// The parent spawner sequence is:
//
//  1. open an O_CLOEXEC start-gate pipe
//  2. write the pid1Spec document to a temp file
//  3. clone-then-execve into "bb_runner __pid1" (realized here as
//     exec.Cmd with Cloneflags — Go's own forkAndExecInChild is the
//     raw-syscall-only stub between clone and exec that other sandboxes
//     hand-roll in assembly)
//  4. write uid_map/setgroups/gid_map for the new user namespace
//  5. attach the child to its cgroup
//  6. release the start gate
//
// A failure in steps 4 or 5 after the child exists is reported as a
// SpawnError and the child is killed and reaped before returning.
func Spawn(ctx context.Context, spec *Spec, jobID, tmpDir string, cgroup *CgroupHandle) (*Process, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, &SpawnError{Stage: "resolve-executable", Err: err}
	}

	gateRead, gateWrite, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Stage: "open-gate-pipe", Err: err}
	}
	defer gateRead.Close()

	ns := spec.effectiveNamespaces()
	wire := pid1Spec{
		Argv:             spec.Argv,
		Env:              spec.Env,
		WorkingDirectory: spec.WorkingDirectory,
		Hostname:         spec.Hostname,
		RWPaths:          spec.RWPaths,
		NetNamespace:     ns&NamespaceNET != 0,
	}
	specPath := filepath.Join(tmpDir, "pid1-spec-"+jobID+".json")
	data, err := json.Marshal(wire)
	if err != nil {
		gateWrite.Close()
		return nil, &SpawnError{Stage: "marshal-spec", Err: err}
	}
	if err := os.WriteFile(specPath, data, 0o600); err != nil {
		gateWrite.Close()
		return nil, &SpawnError{Stage: "write-spec", Err: err}
	}
	defer os.Remove(specPath)

	cmd := exec.Command(exe, "__pid1")
	cmd.ExtraFiles = []*os.File{gateRead, spec.Stdout, spec.Stderr}
	cmd.Env = []string{"BB_RUNNER_PID1_SPEC=" + specPath, "BB_RUNNER_LOG=" + os.Getenv(logger.EnvVar)}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags:   cloneFlagsFor(ns),
		Pdeathsig:    syscall.SIGKILL,
		UidMappings:  []syscall.SysProcIDMap{{ContainerID: 0, HostID: os.Getuid(), Size: 1}},
		GidMappings:  []syscall.SysProcIDMap{{ContainerID: 0, HostID: os.Getgid(), Size: 1}},
		GidMappingsEnableSetgroups: false,
	}

	if err := cmd.Start(); err != nil {
		gateWrite.Close()
		return nil, &SpawnError{Stage: "clone", Err: err}
	}
	pid := cmd.Process.Pid

	if cgroup != nil {
		if err := cgroup.Attach(pid); err != nil {
			killAndReap(cmd)
			gateWrite.Close()
			return nil, &SpawnError{Stage: "cgroup-attach", Err: err}
		}
	}

	if _, err := gateWrite.Write([]byte{0}); err != nil {
		killAndReap(cmd)
		gateWrite.Close()
		return nil, &SpawnError{Stage: "release-gate", Err: err}
	}
	gateWrite.Close()

	proc := &Process{Pid: pid, done: make(chan struct{})}
	jobCtx, cancel := context.WithCancel(ctx)
	proc.cancel = cancel

	go func() {
		defer close(proc.done)
		waitErr := cmd.Wait()
		if cmd.ProcessState != nil {
			if ru, ok := cmd.ProcessState.SysUsage().(*syscall.Rusage); ok {
				proc.usage = resourceUsageFromRusage(ru)
			}
		}
		proc.err = classifyWaitError(waitErr)
	}()

	go func() {
		select {
		case <-jobCtx.Done():
			// Either the caller's ctx died, or Process.Wait cancelled
			// jobCtx on its cancellation path — in both
			// cases the sandboxed process must be killed so the reaper
			// goroutine above can observe its exit and close proc.done.
			_ = cmd.Process.Kill()
		case <-proc.done:
			// Process exited on its own; nothing left to kill.
		}
	}()

	return proc, nil
}

func killAndReap(cmd *exec.Cmd) {
	_ = cmd.Process.Kill()
	_, _ = cmd.Process.Wait()
}

func classifyWaitError(err error) error {
	if err == nil {
		return nil
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return err
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return err
	}
	if status.Signaled() {
		return &ExitError{Signal: status.Signal().String()}
	}
	return &ExitError{ExitCode: status.ExitStatus()}
}

// cloneFlagsFor translates a NamespaceMask into syscall.SysProcAttr
// Cloneflags. CLONE_NEWUSER is always included: callers never run
// bb_runner as root in production, so an unprivileged user namespace is
// how CAP_SYS_ADMIN is obtained for the mount operations in step 5/8 of
// the PID-1 sequence.
func cloneFlagsFor(ns NamespaceMask) uintptr {
	flags := uintptr(syscall.CLONE_NEWUSER)
	if ns&NamespacePID != 0 {
		flags |= syscall.CLONE_NEWPID
	}
	if ns&NamespaceIPC != 0 {
		flags |= syscall.CLONE_NEWIPC
	}
	if ns&NamespaceNET != 0 {
		flags |= syscall.CLONE_NEWNET
	}
	if ns&NamespaceMNT != 0 {
		flags |= syscall.CLONE_NEWNS
	}
	if ns&NamespaceUTS != 0 {
		flags |= syscall.CLONE_NEWUTS
	}
	return flags
}

