//go:build linux

package sandbox

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/perfinion/bb-runner/internal/logger"
)

// mountEntry is one line of /proc/self/mounts, decoded into the flag bits
// remountReadOnly needs to preserve when it adds MS_RDONLY.
type mountEntry struct {
	device     string
	mountpoint string
	fstype     string
	flags      uintptr
}

// tolerated errnos from remounting a mountpoint read-only: entries that
// are already gone, pseudo-filesystems that reject remount, or mounts we
// simply don't have permission to touch (the target image may be owned
// by a different uid inside the namespace).
var tolerableRemountErrnos = map[error]bool{
	unix.EACCES: true,
	unix.EPERM:  true,
	unix.EINVAL: true,
	unix.ENOENT: true,
	unix.ESTALE: true,
	unix.ENODEV: true,
}

// readMountTable parses /proc/self/mounts in kernel order. Each field is
// octal-escaped by the kernel (spaces, tabs, backslashes, newlines);
// unescape before use.
func readMountTable() ([]mountEntry, error) {
	f, err := os.Open("/proc/self/mounts")
	if err != nil {
		return nil, fmt.Errorf("open /proc/self/mounts: %w", err)
	}
	defer f.Close()

	var entries []mountEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		entries = append(entries, mountEntry{
			device:     unescapeMountField(fields[0]),
			mountpoint: unescapeMountField(fields[1]),
			fstype:     fields[2],
			flags:      mountOptsToFlags(fields[3]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan /proc/self/mounts: %w", err)
	}
	return entries, nil
}

func unescapeMountField(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// mountOptsToFlags maps the comma-separated option list from
// /proc/self/mounts to the bind-remount flags the kernel needs repeated
// on a remount, per mount_namespaces(7): nosuid, nodev, noexec, noatime,
// nodiratime, relatime, and ro/rw itself.
func mountOptsToFlags(opts string) uintptr {
	var flags uintptr
	for _, opt := range strings.Split(opts, ",") {
		switch opt {
		case "nosuid":
			flags |= unix.MS_NOSUID
		case "nodev":
			flags |= unix.MS_NODEV
		case "noexec":
			flags |= unix.MS_NOEXEC
		case "noatime":
			flags |= unix.MS_NOATIME
		case "nodiratime":
			flags |= unix.MS_NODIRATIME
		case "relatime":
			flags |= unix.MS_RELATIME
		case "ro":
			flags |= unix.MS_RDONLY
		}
	}
	return flags
}

// isUnderRWPath reports whether mountpoint is rwPath itself or a
// descendant of it, matching by whole path component rather than raw
// byte prefix — "/home/build2" must not match rwPath "/home/build". Only a
// trailing slash is trimmed; the paths are not otherwise cleaned.
func isUnderRWPath(mountpoint, rwPath string) bool {
	mountpoint = strings.TrimSuffix(mountpoint, "/")
	rwPath = strings.TrimSuffix(rwPath, "/")
	if mountpoint == rwPath {
		return true
	}
	return strings.HasPrefix(mountpoint, rwPath+"/")
}

// remountReadOnly walks the mount table in order and bind-remounts every
// entry read-only, except those under rwPaths. Errors that indicate the
// mountpoint can't sensibly be remounted are logged and tolerated; the
// read-only guarantee is best-effort over the mount table snapshot taken
// at call time, matching the teacher's own tolerance for EACCES/EPERM
// seen in deny_linux.go.
func remountReadOnly(rwPaths []string) error {
	entries, err := readMountTable()
	if err != nil {
		return err
	}

	for _, e := range entries {
		writable := false
		for _, rw := range rwPaths {
			if isUnderRWPath(e.mountpoint, rw) {
				writable = true
				break
			}
		}
		if writable {
			continue
		}
		if e.flags&unix.MS_RDONLY != 0 {
			continue
		}
		err := unix.Mount("", e.mountpoint, "", unix.MS_REMOUNT|unix.MS_BIND|unix.MS_RDONLY|e.flags, "")
		if err == nil {
			continue
		}
		if tolerableRemountErrnos[err] {
			logger.Debug("remount read-only tolerated failure", "mountpoint", e.mountpoint, "err", err)
			continue
		}
		return fmt.Errorf("remount %s read-only: %w", e.mountpoint, err)
	}
	return nil
}

// mountRWPaths bind-mounts each configured writable path onto itself so
// it survives the read-only sweep above untouched. Each path must
// already exist; a missing one is an error.
func mountRWPaths(rwPaths []string) error {
	for _, p := range rwPaths {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("rw path %s: %w", p, err)
		}
		if err := unix.Mount(p, p, "", unix.MS_BIND, ""); err != nil {
			return fmt.Errorf("bind rw path %s onto itself: %w", p, err)
		}
	}
	return nil
}
