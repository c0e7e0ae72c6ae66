package goshare

import "github.com/docker/docker/pkg/reexec"

// initCommandName is the argv[0] this package re-executes itself as to run
// goshareInitMain in a freshly exec'd, single-threaded process. Using
// docker/pkg/reexec's argv0 dispatch means Spawn never has to fork the
// calling process directly: os/exec already knows how to start a process
// with a given SysProcAttr (Cloneflags, UidMappings, Pdeathsig, ...), and
// all of this package's own setup work — pivot_root, capabilities, setns,
// the wake-up handshake — runs safely after that exec, not between a raw
// clone and exec the way the crate this package generalizes has to.
const initCommandName = "goshare-init"

func init() {
	reexec.Register(initCommandName, goshareInitMain)
}

// selfExePath resolves the path os/exec should launch for the reexec'd
// init stage, honoring whatever argv0 dispatch docker/pkg/reexec set up
// (typically /proc/self/exe on Linux).
func selfExePath() string {
	return reexec.Self()
}
