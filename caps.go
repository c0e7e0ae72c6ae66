package goshare

import (
	"fmt"
	"strings"

	"github.com/syndtr/gocapability/capability"
)

// Capability is a Linux capability number (CAP_CHOWN, CAP_SYS_ADMIN, ...).
// It is deliberately a thin wrapper over the kernel's numbering rather than
// a full enum: new kernels add capabilities faster than this package could
// track them, and the capset(2)/ambient-raise syscalls only ever need the
// bit position.
type Capability uint

// capBitmap packs a set of capabilities into the two 32-bit words the
// kernel's capset(2) ABI (and this package's keep_caps configuration) uses.
type capBitmap [2]uint32

func bitmapFromCaps(caps []Capability) capBitmap {
	var buf capBitmap
	for _, c := range caps {
		buf[c>>5] |= 1 << (uint(c) & 31)
	}
	return buf
}

func (b capBitmap) has(c Capability) bool {
	return b[c>>5]&(1<<(uint(c)&31)) != 0
}

// capabilityByName resolves a CAP_* name (case-insensitive, with or
// without the "CAP_" prefix) to its numeric Capability value, using
// gocapability's name table instead of hand-maintaining one.
func capabilityByName(name string) (Capability, error) {
	want := strings.ToUpper(name)
	if !strings.HasPrefix(want, "CAP_") {
		want = "CAP_" + want
	}
	for _, c := range capability.List() {
		// gocapability names capabilities without the prefix ("chown").
		if "CAP_"+strings.ToUpper(c.String()) == want {
			return Capability(c), nil
		}
	}
	return 0, fmt.Errorf("goshare: unknown capability %q", name)
}
