package goshare

import "golang.org/x/sys/unix"

// Config groups the per-spawn settings that are neither fd plumbing nor
// one-shot callbacks: namespace/id/capability/signal configuration that the
// child entry point reads as a single borrowed block.
type Config struct {
	// DeathSig is delivered to the child when its parent dies. Defaults to
	// SIGKILL; set to 0 (via AllowDaemonize) to let the child survive and
	// proceed as if daemonizing.
	DeathSig unix.Signal

	// WorkDir, if non-empty, is chdir'd to after uid/gid/chroot/pivot is
	// applied, as the final directory change.
	WorkDir string

	UID *int
	GID *int

	SupplementaryGIDs []int

	UIDMap []IDMap
	GIDMap []IDMap

	// CloneFlags accumulates the CLONE_NEW* bits requested via Unshare.
	CloneFlags uintptr

	// SetnsNamespaces maps a namespace kind to an already-open fd the child
	// should setns(2) into before any namespace-dependent step runs.
	SetnsNamespaces map[Namespace]int

	// RestoreSigmask, true by default, empties the signal mask and resets
	// dispositions 1..32 to SIG_DFL right before execve.
	RestoreSigmask bool

	// MakeGroupLeader calls setpgid(child, child) in the parent right after
	// clone returns.
	MakeGroupLeader bool
}

func newConfig() Config {
	return Config{
		DeathSig:       unix.SIGKILL,
		RestoreSigmask: true,
	}
}
