//go:build linux

package sandbox

import "testing"

func TestIsUnderRWPath(t *testing.T) {
	cases := []struct {
		mountpoint, rwPath string
		want               bool
	}{
		{"/home/build", "/home/build", true},
		{"/home/build/out", "/home/build", true},
		{"/home/build2", "/home/build", false},
		{"/home/build-other", "/home/build", false},
		{"/opt/cache", "/opt/cache/", true},
		{"/opt/other", "/opt/cache", false},
	}
	for _, c := range cases {
		if got := isUnderRWPath(c.mountpoint, c.rwPath); got != c.want {
			t.Errorf("isUnderRWPath(%q, %q) = %v, want %v", c.mountpoint, c.rwPath, got, c.want)
		}
	}
}

func TestMountOptsToFlags(t *testing.T) {
	flags := mountOptsToFlags("rw,nosuid,nodev,noexec,relatime")
	if flags == 0 {
		t.Fatal("expected non-zero flags for nosuid,nodev,noexec,relatime")
	}
}

func TestUnescapeMountField(t *testing.T) {
	got := unescapeMountField(`/mnt/my\040dir`)
	if got != "/mnt/my dir" {
		t.Errorf("unescapeMountField = %q, want %q", got, "/mnt/my dir")
	}
}
