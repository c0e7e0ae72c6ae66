package goshare

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Command accumulates the declarative configuration for a single spawn.
// Every setter returns the receiver so calls can be chained; validation
// that can fail before Spawn is deferred to Spawn itself except for a
// handful of documented preconditions (relative chroot/pivot paths, a
// put_old not nested inside new_root, a close-fd range starting below 3, a
// FileDescriptor target below 3) which panic immediately, the same way
// the Rust crate this package generalizes panics on programmer error
// rather than returning a Result for it.
type Command struct {
	filename string
	args     []string // args[0] is argv0, defaults to filename

	environ     map[string]string
	environInit bool

	fds      map[int]FdIntent
	closeFds [][2]int

	chrootDir *string
	pivot     *pivotRootSpec

	idMapCommands *IDMapCommands

	pidEnvVars map[string]struct{}

	keepCaps *capBitmap

	beforeUnfreeze func(pid int) error
	preExecName    string

	config Config
}

type pivotRootSpec struct {
	newRoot string
	putOld  string
	unmount bool
}

// New creates a Command that will execute path. args[0] defaults to path;
// use Arg0 to override it.
func New(path string) *Command {
	return &Command{
		filename: path,
		args:     []string{path},
		fds: map[int]FdIntent{
			0: Inherit{},
			1: Inherit{},
			2: Inherit{},
		},
		pidEnvVars: map[string]struct{}{},
		config:     newConfig(),
	}
}

// Arg appends arguments after argv0.
func (c *Command) Arg(args ...string) *Command {
	c.args = append(c.args, args...)
	return c
}

// Arg0 overrides argv[0] without changing the executable path used by
// execve.
func (c *Command) Arg0(s string) *Command {
	c.args[0] = s
	return c
}

func (c *Command) initEnvMap() {
	if c.environInit {
		return
	}
	c.environInit = true
	c.environ = map[string]string{}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			c.environ[kv[:i]] = kv[i+1:]
		}
	}
}

// EnvClear replaces the environment with an empty map; subsequent calls to
// Env add to that empty map rather than to the inherited environment.
func (c *Command) EnvClear() *Command {
	c.environInit = true
	c.environ = map[string]string{}
	return c
}

// Env sets an environment variable, materializing the inherited
// environment on first call.
func (c *Command) Env(k, v string) *Command {
	c.initEnvMap()
	c.environ[k] = v
	return c
}

// EnvVarWithPid removes any existing value for k and marks it to be
// patched with the child's actual pid, formatted in decimal, at exec time.
func (c *Command) EnvVarWithPid(k string) *Command {
	c.initEnvMap()
	delete(c.environ, k)
	c.pidEnvVars[k] = struct{}{}
	return c
}

// Unshare ORs the CLONE_NEW* flags for the given namespaces into the
// clone(2) call.
func (c *Command) Unshare(ns ...Namespace) *Command {
	for _, n := range ns {
		c.config.CloneFlags |= n.cloneFlag()
	}
	return c
}

// SetNamespace duplicates f's fd (close-on-exec) and records it so the
// child calls setns(fd, ns) before any namespace-dependent syscall. Using
// Unshare and SetNamespace for the same namespace kind is meaningless.
// Returns an error if f's fd can't be duplicated.
func (c *Command) SetNamespace(f *os.File, ns Namespace) (*Command, error) {
	newFd, err := unix.FcntlInt(f.Fd(), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("goshare: duplicating namespace fd: %w", err)
	}
	if c.config.SetnsNamespaces == nil {
		c.config.SetnsNamespaces = map[Namespace]int{}
	}
	c.config.SetnsNamespaces[ns] = newFd
	return c, nil
}

// SetIDMaps configures uid/gid mappings for a new user namespace and
// implicitly unshares User. By default the maps are written directly to
// /proc/<pid>/{uid,gid}_map; call SetIDMapCommands to use newuidmap/
// newgidmap helpers instead.
func (c *Command) SetIDMaps(uid, gid []IDMap) *Command {
	c.Unshare(User)
	c.config.UIDMap = uid
	c.config.GIDMap = gid
	return c
}

// SetIDMapCommands sets the paths to newuidmap/newgidmap-style helpers.
// No-op unless SetIDMaps was also called.
func (c *Command) SetIDMapCommands(newuidmap, newgidmap string) *Command {
	c.idMapCommands = &IDMapCommands{NewUidMap: newuidmap, NewGidMap: newgidmap}
	return c
}

// KeepCaps drops all capabilities except the ones listed, installing them
// into the permitted/effective/inheritable sets and, where supported, the
// ambient set. Replaces any previous call.
func (c *Command) KeepCaps(caps ...Capability) *Command {
	buf := bitmapFromCaps(caps)
	c.keepCaps = &buf
	return c
}

// WithCapabilityNames is a convenience wrapper over KeepCaps that resolves
// CAP_* names (e.g. "CAP_NET_BIND_SERVICE" or "net_bind_service") using the
// kernel's capability table instead of requiring callers to hardcode
// numbers.
func (c *Command) WithCapabilityNames(names ...string) (*Command, error) {
	caps := make([]Capability, 0, len(names))
	for _, name := range names {
		cap, err := capabilityByName(name)
		if err != nil {
			return nil, err
		}
		caps = append(caps, cap)
	}
	return c.KeepCaps(caps...), nil
}

// FdRange is a half-open [Start,End) range of file descriptors to close in
// the child, built with To/From/Between/All.
type FdRange struct {
	start, end int
	openEnded  bool
}

// Between closes [a,b). a must be >= 3.
func Between(a, b int) FdRange { return FdRange{start: a, end: b} }

// To closes [3,n).
func To(n int) FdRange { return FdRange{start: 3, end: n} }

// From closes [n, rlimit) using RLIMIT_NOFILE resolved when CloseFds runs.
func From(n int) FdRange { return FdRange{start: n, openEnded: true} }

// All closes [3, rlimit).
func All() FdRange { return FdRange{start: 3, openEnded: true} }

// CloseFds adds a range of file descriptors to close in the child once its
// descriptor transfers are in place, shortly before execve. Multiple calls accumulate ranges; see ResetFds to clear
// them. Panics if the range's lower bound is below 3 (stdio is configured
// through Stdin/Stdout/Stderr/FileDescriptor instead).
func (c *Command) CloseFds(r FdRange) *Command {
	if r.start < 3 {
		panic(fmt.Sprintf("goshare: close_fds range must start at fd >= 3, got %d", r.start))
	}
	end := r.end
	if r.openEnded {
		var rlim unix.Rlimit
		if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
			panic(fmt.Sprintf("goshare: can't get rlimit: %v", err))
		}
		end = int(rlim.Cur)
	}
	c.closeFds = append(c.closeFds, [2]int{r.start, end})
	return c
}

// ResetFds restores the initial fd plan: inherit 0/1/2, no close ranges.
func (c *Command) ResetFds() *Command {
	c.fds = map[int]FdIntent{0: Inherit{}, 1: Inherit{}, 2: Inherit{}}
	c.closeFds = nil
	return c
}

// ChrootDir sets an absolute chroot directory. If pivot_root is also
// configured, the chroot is applied after pivoting and is resolved
// relative to the new filesystem root. Panics if dir is not absolute.
func (c *Command) ChrootDir(dir string) *Command {
	if !filepath.IsAbs(dir) {
		panic("goshare: chroot dir must be absolute")
	}
	c.chrootDir = &dir
	return c
}

// PivotRoot moves the filesystem root to newRoot, stashing the old root at
// putOld, optionally unmounting it afterwards (MNT_DETACH). Both paths
// must be absolute and newRoot must be a path-component prefix of putOld.
// Panics otherwise.
func (c *Command) PivotRoot(newRoot, putOld string, unmount bool) *Command {
	if !filepath.IsAbs(newRoot) {
		panic("goshare: new_root must be absolute")
	}
	if !filepath.IsAbs(putOld) {
		panic("goshare: put_old must be absolute")
	}
	if !isPathPrefix(newRoot, putOld) {
		panic("goshare: new_root is not a prefix of put_old")
	}
	c.pivot = &pivotRootSpec{newRoot: newRoot, putOld: putOld, unmount: unmount}
	return c
}

// SetParentDeathSignal sets the signal delivered to the child when its
// parent dies. Defaults to SIGKILL.
func (c *Command) SetParentDeathSignal(sig unix.Signal) *Command {
	c.config.DeathSig = sig
	return c
}

// AllowDaemonize disables the parent death signal, letting the child
// survive its parent's death and proceed as if daemonizing.
func (c *Command) AllowDaemonize() *Command {
	c.config.DeathSig = 0
	return c
}

// KeepSigmask disables the default behavior of emptying the signal mask
// and resetting dispositions to SIG_DFL right before execve.
func (c *Command) KeepSigmask() *Command {
	c.config.RestoreSigmask = false
	return c
}

// MakeGroupLeader makes the child its own process group leader via
// setpgid(child, child), run by the parent right after clone returns.
func (c *Command) MakeGroupLeader(v bool) *Command {
	c.config.MakeGroupLeader = v
	return c
}

// BeforeUnfreeze registers a parent-side callback invoked with the child's
// pid after id-maps are written but before the wake-up byte is sent.
// Replaces any previously registered callback.
func (c *Command) BeforeUnfreeze(f func(pid int) error) *Command {
	c.beforeUnfreeze = f
	return c
}

// PreExecName arranges for the hook registered under name (via
// RegisterPreExecHook) to run in the child, immediately before execve.
// Hooks are referenced by name rather than passed as a closure because the
// child runs as a freshly re-exec'd process image, not a forked copy of
// the caller's heap; see RegisterPreExecHook. Replaces any previously
// configured hook.
func (c *Command) PreExecName(name string) *Command {
	c.preExecName = name
	return c
}

// Stdin configures fd 0 using the given Stdio choice.
func (c *Command) Stdin(s Stdio) *Command { c.fds[0] = s.toFdIntent(false); return c }

// Stdout configures fd 1.
func (c *Command) Stdout(s Stdio) *Command { c.fds[1] = s.toFdIntent(true); return c }

// Stderr configures fd 2.
func (c *Command) Stderr(s Stdio) *Command { c.fds[2] = s.toFdIntent(true); return c }

// FileDescriptor configures an arbitrary fd >= 3. Panics for fd <= 2; use
// Stdin/Stdout/Stderr for those.
func (c *Command) FileDescriptor(fd int, intent FdIntent) *Command {
	if fd <= 2 {
		panic(fmt.Sprintf("goshare: stdio fds must be configured with Stdin/Stdout/Stderr, not FileDescriptor(%d, ...)", fd))
	}
	c.fds[fd] = intent
	return c
}

// FileDescriptorRaw is a shorthand for FileDescriptor(fd, BorrowedFd{src}).
func (c *Command) FileDescriptorRaw(fd int, src int) *Command {
	return c.FileDescriptor(fd, BorrowedFd{FD: src})
}

// UID sets the uid the child calls setuid(2) with.
func (c *Command) UID(uid int) *Command { c.config.UID = &uid; return c }

// GID sets the gid the child calls setgid(2) with.
func (c *Command) GID(gid int) *Command { c.config.GID = &gid; return c }

// SupplementaryGroups sets the gids the child calls setgroups(2) with.
func (c *Command) SupplementaryGroups(gids ...int) *Command {
	c.config.SupplementaryGIDs = gids
	return c
}

// WorkDir sets the directory the child chdir's to as the final directory
// change in its setup sequence.
func (c *Command) WorkDir(dir string) *Command {
	c.config.WorkDir = dir
	return c
}

// Status spawns the command and blocks until it exits, combining Spawn and
// Child.Wait for the common case where nothing needs to happen between
// process creation and reaping.
func (c *Command) Status() (ExitStatus, error) {
	child, err := c.Spawn()
	if err != nil {
		return ExitStatus{}, err
	}
	return child.Wait()
}

// String renders the configured command line for logging/debugging,
// mirroring how a shell would echo it back.
func (c *Command) String() string {
	var b strings.Builder
	b.WriteString(c.filename)
	if len(c.args) > 1 {
		b.WriteByte(' ')
		b.WriteString(strings.Join(c.args[1:], " "))
	}
	return b.String()
}
