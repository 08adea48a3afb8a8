//go:build linux

package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/perfinion/bb-runner/internal/logger"
)

// RunPID1 is the entry point for the hidden "__pid1" subcommand
// (SPEC_FULL.md §4.M). It is the only code that runs between clone
// returning in the parent and the target command's image being loaded,
// and it always terminates via syscall.Exit — returning to a Go runtime
// that thinks it's still inside an ordinary process is not safe once
// namespaces have been torn apart from under it.
func RunPID1() {
	specPath := os.Getenv("BB_RUNNER_PID1_SPEC")
	data, err := os.ReadFile(specPath)
	if err != nil {
		fatalf("read spec %s: %v", specPath, err)
	}
	var spec pid1Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		fatalf("parse spec: %v", err)
	}

	// 1. become process group leader.
	if err := unix.Setpgid(0, 0); err != nil {
		fatalf("setpgid: %v", err)
	}

	// 2. SIGTTIN/SIGTTOU stay ignored (no controlling terminal to fight
	// over); everything else keeps its execve-assigned default
	// disposition. SIGKILL/SIGSTOP are never catchable regardless.
	signal.Ignore(syscall.SIGTTIN, syscall.SIGTTOU)

	// 3. block on the start gate: the parent writes one byte only after
	// uid_map/gid_map and cgroup placement are done, both of which must
	// happen from outside this (now unprivileged-inside) user namespace.
	gate := os.NewFile(gateFD, "gate")
	var gateByte [1]byte
	if _, err := gate.Read(gateByte[:]); err != nil {
		fatalf("read start gate: %v", err)
	}
	gate.Close()

	// 4. chdir to a known point before reshaping the mount namespace.
	if err := unix.Chdir("/"); err != nil {
		fatalf("chdir /: %v", err)
	}

	// 5. make the whole mount tree private and recursive so nothing we
	// do here propagates back to the host.
	if err := unix.Mount("", "/", "", unix.MS_PRIVATE|unix.MS_REC, ""); err != nil {
		fatalf("make / private: %v", err)
	}

	// 6. optional UTS hostname.
	if spec.Hostname != "" {
		if err := unix.Sethostname([]byte(spec.Hostname)); err != nil {
			logger.Warn("sethostname failed", "err", err)
		}
	}

	// 7. mount a fresh /proc for this PID namespace. Without this, the
	// inherited /proc would describe the host's process tree.
	if err := unix.Mount("proc", "/proc", "proc", unix.MS_NOSUID|unix.MS_NOEXEC|unix.MS_NODEV, ""); err != nil {
		fatalf("mount /proc: %v", err)
	}

	// 8. bind rw paths onto themselves first so the read-only sweep
	// below leaves them alone, then remount everything else read-only.
	if err := mountRWPaths(spec.RWPaths); err != nil {
		fatalf("mount rw paths: %v", err)
	}
	if err := remountReadOnly(spec.RWPaths); err != nil {
		fatalf("remount read-only: %v", err)
	}

	// 9. bring loopback up if this sandbox kept a network namespace —
	// otherwise even localhost-only tools fail to bind.
	if spec.NetNamespace {
		if err := bringLoopbackUp(); err != nil {
			logger.Warn("loopback up failed", "err", err)
		}
	}

	// 10. arrange the target's stdio from the fds the parent passed
	// through ExtraFiles. The gate pipe is already closed; the inherited
	// stdout/stderr fds are marked close-on-exec so the target only sees
	// them as its own fds 1 and 2.
	unix.CloseOnExec(stdoutFD)
	unix.CloseOnExec(stderrFD)
	stdout := os.NewFile(stdoutFD, "stdout")
	stderr := os.NewFile(stderrFD, "stderr")

	if len(spec.Argv) == 0 {
		fatalf("empty argv")
	}
	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.WorkingDirectory
	cmd.Env = spec.Env
	cmd.Stdin = nil
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	// 11. spawn the target. It is our child, not our exec image, so this
	// process remains PID 1 and keeps reaping duty for the whole tree.
	if err := cmd.Start(); err != nil {
		fatalf("start target: %v", err)
	}
	stdout.Close()
	stderr.Close()

	// 12. reap everything in this PID namespace until the target itself
	// exits; orphans reparent to us as PID 1 and must be collected or
	// they'd wedge the namespace as zombies.
	exitCode, sig := reapUntil(cmd.Process.Pid)

	// 13. if the target died by signal, re-raise that exact signal
	// against ourselves (after resetting its disposition to default) so
	// the true parent's wait4 observes the same cause, rather than
	// flattening it into an exit code. Our own death tears down the PID
	// namespace either way, SIGKILLing any straggler the loop above
	// hadn't caught yet.
	if sig != 0 {
		signal.Reset(syscall.Signal(sig))
		_ = syscall.Kill(os.Getpid(), syscall.Signal(sig))
	}
	syscall.Exit(exitCode)
}

// reapUntil wait4(-1, ...)-loops, reaping every child, until targetPid
// itself is collected. It returns the target's exit code, or (0, sig)
// if the target died by signal sig.
func reapUntil(targetPid int) (exitCode int, sig int) {
	for {
		var status unix.WaitStatus
		var rusage unix.Rusage
		pid, err := unix.Wait4(-1, &status, 0, &rusage)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.ECHILD {
				return 0, 0
			}
			fatalf("wait4: %v", err)
		}
		if pid != targetPid {
			continue
		}
		if status.Signaled() {
			return 0, int(status.Signal())
		}
		return status.ExitStatus(), 0
	}
}

// bringLoopbackUp sets IFF_UP on "lo" via SIOCSIFFLAGS so localhost
// connections work inside a fresh network namespace.
func bringLoopbackUp() error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	var ifr struct {
		name  [unix.IFNAMSIZ]byte
		flags uint16
		_     [22]byte
	}
	copy(ifr.name[:], "lo")

	if err := ioctl(fd, unix.SIOCGIFFLAGS, &ifr); err != nil {
		return err
	}
	ifr.flags |= unix.IFF_UP | unix.IFF_RUNNING
	return ioctl(fd, unix.SIOCSIFFLAGS, &ifr)
}

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "bb_runner __pid1: "+format+"\n", args...)
	syscall.Exit(125)
}
