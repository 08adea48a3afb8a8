//go:build linux

// Package sandbox spawns commands inside a transient Linux sandbox: a
// fresh set of namespaces, a cgroup-bounded resource envelope, and a
// read-only host filesystem punched through with a caller-supplied
// writable allow-list.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"time"
)

// NamespaceMask selects which Linux namespaces a sandboxed process is
// placed into. PID, IPC, NET, MNT, UTS and USER are unshared by default.
// USER is always unshared, whatever the mask says; UTS is unshared only
// when the mask includes NamespaceUTS, whether or not a hostname is set.
type NamespaceMask uint32

const (
	NamespacePID NamespaceMask = 1 << iota
	NamespaceIPC
	NamespaceNET
	NamespaceMNT
	NamespaceUTS
	NamespaceUser
)

// DefaultNamespaces is the mask every sandbox gets unless a Spec
// explicitly narrows it. UTS is included because every Run request sets
// a hostname (SPEC_FULL.md §4.I); a Spec that clears the Hostname field
// and also narrows Namespaces can drop NamespaceUTS to share the host's.
const DefaultNamespaces = NamespacePID | NamespaceIPC | NamespaceNET | NamespaceMNT | NamespaceUTS | NamespaceUser

// Spec describes one sandboxed invocation.
type Spec struct {
	// Argv is the command to run. Argv[0] is resolved against PATH the
	// same way os/exec resolves it.
	Argv []string
	// Env is the full environment handed to the sandboxed process;
	// callers are responsible for not leaking runner-process secrets.
	Env []string
	// WorkingDirectory is the process's cwd inside the sandbox mount
	// namespace. Must exist by the time Spawn is called.
	WorkingDirectory string
	// Stdout and Stderr receive the sandboxed process's output streams.
	Stdout, Stderr *os.File
	// Hostname, if non-empty, is set in a fresh UTS namespace.
	Hostname string
	// Namespaces overrides DefaultNamespaces when non-zero.
	Namespaces NamespaceMask
	// RWPaths lists filesystem paths that remain writable after the
	// read-only remount pass. Each entry must be an absolute, existing
	// path; prefix matching is by path component, not by byte string.
	RWPaths []string
	// Cgroup is the per-CPU-slot cgroup carrying the job's hard limits.
	// Spawn places the child in the cgroup passed as its own argument
	// and does not read this field. May be nil, in which case no cgroup
	// placement happens and accounting comes only from wait4's rusage.
	Cgroup *CgroupHandle
}

// Process is a running (or exited) sandboxed command.
type Process struct {
	Pid int

	cancel context.CancelFunc
	done   chan struct{}
	usage  ResourceUsage
	err    error
}

// Wait blocks until the sandboxed process exits, or ctx is cancelled (in
// which case the process is killed and Wait still returns once the kill
// has been reaped).
func (p *Process) Wait(ctx context.Context) (ResourceUsage, error) {
	select {
	case <-p.done:
		return p.usage, p.err
	case <-ctx.Done():
		p.cancel()
		<-p.done
		return p.usage, p.err
	}
}

// ExitError reports a sandboxed process's non-zero or signal-induced
// termination. A nil *ExitError (returned as a typed nil inside an
// error interface never happens here; callers type-assert instead).
type ExitError struct {
	ExitCode int
	Signal   string
}

func (e *ExitError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("sandboxed process killed by %s", e.Signal)
	}
	return fmt.Sprintf("sandboxed process exited with code %d", e.ExitCode)
}

// SpawnError distinguishes failures that happen before the target
// command's image is even loaded (the parent spawner steps listed on
// Spawn, such as the cgroup attach) from ordinary command failures. The scheduler-side
// semantics differ: a SpawnError means the slot never got a fair shot
// and should usually be retried elsewhere.
type SpawnError struct {
	Stage string
	Err   error
}

func (e *SpawnError) Error() string { return fmt.Sprintf("sandbox spawn (%s): %v", e.Stage, e.Err) }
func (e *SpawnError) Unwrap() error { return e.Err }

// effectiveNamespaces returns s.Namespaces if set, else the default mask.
func (s *Spec) effectiveNamespaces() NamespaceMask {
	if s.Namespaces != 0 {
		return s.Namespaces
	}
	return DefaultNamespaces
}

// StartTimeout is a 10 s bound for the PID-1 child to clear the start
// gate (write uid/gid maps, attach cgroup). Spawn does not consult it:
// none of Spawn's steps is timed out. It is not a wall-clock limit on
// the sandboxed command itself either.
const StartTimeout = 10 * time.Second
