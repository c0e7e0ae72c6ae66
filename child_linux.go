package goshare

import (
	"encoding/binary"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/syndtr/gocapability/capability"
	"golang.org/x/sys/unix"
)

// goshareInitMain is the entry point docker/pkg/reexec dispatches to when
// this binary is re-exec'd as initCommandName. By the time it runs, the
// kernel has already applied Cloneflags (new namespaces exist) and any
// UidMappings/GidMappings the runtime wrote itself; everything left in
// childInfo is work this package does by hand between here and the final
// execve of the caller's program.
//
// Unlike a clone(2)-based child entry point, nothing here is
// async-signal-safe territory: this process is a normal, freshly exec'd,
// single-threaded Go binary, so allocation, the json package, and error
// wrapping are all fine. A failure at any step is reported to the parent
// as a 5-byte frame on the error pipe and the process exits; on success
// the final execve replaces this image entirely and the error pipe's
// write end, still marked close-on-exec, closes itself.
func goshareInitMain() {
	index, err := strconv.Atoi(os.Args[1])
	if err != nil {
		os.Exit(127)
	}
	infoFd := 3 + index
	raw, err := io.ReadAll(os.NewFile(uintptr(infoFd), "goshare-info"))
	if err != nil {
		os.Exit(127)
	}

	info, err := decodeChildInfo(raw)
	if err != nil {
		os.Exit(127)
	}

	errFd := 3 + info.ErrIndex
	unix.CloseOnExec(errFd)

	fail := func(code ErrorCode, cause error) {
		writeErrorFrame(errFd, code, errnoOf(cause))
		os.Exit(127)
	}

	wakeupFd := 3 + info.WakeupIndex
	if err := waitForWakeup(wakeupFd, info.DeathSig); err != nil {
		fail(ErrPipeError, err)
		return
	}
	unix.Close(wakeupFd)

	for ns, idx := range info.SetnsIndex {
		fd := 3 + idx
		if err := unix.Setns(fd, int(ns.cloneFlag())); err != nil {
			fail(ErrSetNs, err)
			return
		}
		unix.Close(fd)
	}

	if info.PivotNewRoot != "" {
		if err := unix.PivotRoot(info.PivotNewRoot, info.PivotPutOld); err != nil {
			fail(ErrChangeRoot, err)
			return
		}
		if err := unix.Chdir("/"); err != nil {
			fail(ErrChdir, err)
			return
		}
		if info.PivotUnmount {
			if err := unix.Unmount(info.PivotOldInside, unix.MNT_DETACH); err != nil {
				fail(ErrChangeRoot, err)
				return
			}
		}
	}

	if info.ChrootDir != "" {
		if err := unix.Chroot(info.ChrootDir); err != nil {
			fail(ErrChangeRoot, err)
			return
		}
		if err := unix.Chdir("/"); err != nil {
			fail(ErrChdir, err)
			return
		}
	}

	// PR_SET_KEEPCAPS must be set before setuid(2) or the kernel drops the
	// permitted set the moment the real/effective uid changes away from
	// 0, leaving nothing for capset to install below.
	if info.HaveCaps {
		if err := unix.Prctl(unix.PR_SET_KEEPCAPS, 1, 0, 0, 0); err != nil {
			fail(ErrCapSet, err)
			return
		}
	}

	if len(info.SupplementaryGIDs) > 0 {
		if err := unix.Setgroups(info.SupplementaryGIDs); err != nil {
			fail(ErrSetUser, err)
			return
		}
	}
	if info.GID != nil {
		if err := unix.Setgid(*info.GID); err != nil {
			fail(ErrSetUser, err)
			return
		}
	}
	if info.UID != nil {
		if err := unix.Setuid(*info.UID); err != nil {
			fail(ErrSetUser, err)
			return
		}
	}

	// capset, and the ambient raise within it, must follow setuid: the
	// permitted set survives only because of PR_SET_KEEPCAPS above, and the
	// effective/ambient sets have to be rebuilt from scratch post-setuid.
	if info.HaveCaps {
		if err := applyKeepCaps(info.KeepCaps); err != nil {
			fail(ErrCapSet, err)
			return
		}
	}

	if info.RestoreMask {
		var empty unix.Sigset_t
		unix.RtSigprocmask(unix.SIG_SETMASK, &empty, nil, 8)
		// Ignored signals survive execve; a daemonizing parent that has
		// SIG_IGN'd, say, SIGPIPE must not pass that along to the child.
		signal.Reset()
	}

	if err := unix.Chdir(info.WorkDir); err != nil {
		fail(ErrChdir, err)
		return
	}

	unix.Close(infoFd)

	if err := applyFdTransfers(info.Transfers, &errFd); err != nil {
		fail(ErrStdioError, err)
		return
	}

	if err := closeFdRanges(info.CloseFds, info.Transfers, errFd); err != nil {
		fail(ErrStdioError, err)
		return
	}

	if info.RestoreMask {
		var empty unix.Sigset_t
		unix.RtSigprocmask(unix.SIG_SETMASK, &empty, nil, 8)
		// Ignored signals survive execve; a daemonizing parent that has
		// SIG_IGN'd, say, SIGPIPE must not pass that along to the child.
		signal.Reset()
	}

	if info.PreExecName != "" {
		hook, err := lookupPreExecHook(info.PreExecName)
		if err != nil {
			fail(ErrExec, err)
			return
		}
		if err := hook(); err != nil {
			fail(ErrExec, err)
			return
		}
	}

	env := buildChildEnv(info)
	if err := unix.Exec(info.Filename, info.Args, env); err != nil {
		fail(ErrExec, err)
		return
	}
}

// waitForWakeup blocks on fd until the parent writes a byte (id maps are
// written and BeforeUnfreeze has run) or closes it. A zero-byte read means
// the parent died before ever getting there — Pdeathsig only covers the
// window after this process already knows its parent, so this case has to
// self-deliver deathSig the same way the kernel would have.
func waitForWakeup(fd int, deathSig int) error {
	var b [1]byte
	for {
		n, err := unix.Read(fd, b[:])
		if err == unix.EINTR || err == unix.EAGAIN {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			if deathSig != 0 {
				unix.Kill(os.Getpid(), syscall.Signal(deathSig))
			}
			os.Exit(127)
		}
		return nil
	}
}

// applyFdTransfers dup2's every resolved source (3+Index, from ExtraFiles)
// onto its final Target. os/exec packs ExtraFiles into a contiguous block
// starting at fd 3, which a caller-chosen target >= 3 (FileDescriptor(5,
// ...), say) can easily fall inside; a naive dup2 pass in target order can
// then clobber a source that hasn't been placed yet, or the error pipe
// itself, before it gets used. To make that impossible, every source (and
// errFd, the one descriptor besides the transfer sources that must survive
// this function) is first relocated via F_DUPFD_CLOEXEC to an fd strictly
// above every target, so the final dup2 pass can never land on a fd this
// function still needs.
func applyFdTransfers(transfers []fdTransfer, errFd *int) error {
	if len(transfers) == 0 {
		return nil
	}

	floor := 3
	for _, t := range transfers {
		if t.Target >= floor {
			floor = t.Target + 1
		}
	}
	if *errFd >= floor {
		floor = *errFd + 1
	}

	relocated := make([]int, len(transfers))
	for i, t := range transfers {
		src := 3 + t.Index
		newSrc, err := unix.FcntlInt(uintptr(src), unix.F_DUPFD_CLOEXEC, floor)
		if err != nil {
			return err
		}
		unix.Close(src)
		relocated[i] = newSrc
	}

	newErr, err := unix.FcntlInt(uintptr(*errFd), unix.F_DUPFD_CLOEXEC, floor)
	if err != nil {
		return err
	}
	unix.Close(*errFd)
	*errFd = newErr

	for i, t := range transfers {
		if err := unix.Dup2(relocated[i], t.Target); err != nil {
			return err
		}
	}
	for _, src := range relocated {
		unix.Close(src)
	}
	return nil
}

// closeFdRanges closes every fd named by ranges except one that a transfer
// just installed as a target, or the error pipe: CloseFds(All()) and a
// custom FileDescriptor target commonly overlap (both describe "everything
// above 3"), and closing a target fd right after placing it would silently
// undo the transfer.
func closeFdRanges(ranges [][2]int, transfers []fdTransfer, errFd int) error {
	keep := map[int]bool{errFd: true}
	for _, t := range transfers {
		keep[t.Target] = true
	}
	for _, r := range ranges {
		for fd := r[0]; fd < r[1]; fd++ {
			if keep[fd] {
				continue
			}
			unix.Close(fd)
		}
	}
	return nil
}

func buildChildEnv(info *childInfo) []string {
	if len(info.PidEnvVars) == 0 {
		return info.Envp
	}
	pid := strconv.Itoa(os.Getpid())
	env := make([]string, len(info.Envp), len(info.Envp)+len(info.PidEnvVars))
	copy(env, info.Envp)
	for _, name := range info.PidEnvVars {
		env = append(env, name+"="+pid)
	}
	return env
}

func applyKeepCaps(keep *capBitmap) error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return err
	}
	if err := caps.Load(); err != nil {
		return err
	}
	caps.Clear(capability.CAPS | capability.BOUNDING | capability.AMBIENT)
	for _, c := range capability.List() {
		if keep.has(Capability(c)) {
			caps.Set(capability.PERMITTED|capability.EFFECTIVE|capability.INHERITABLE, c)
		}
	}
	if err := caps.Apply(capability.CAPS); err != nil {
		return err
	}
	for _, c := range capability.List() {
		if keep.has(Capability(c)) {
			caps.Set(capability.AMBIENT, c)
		}
	}
	return caps.Apply(capability.AMBIENT)
}

func writeErrorFrame(fd int, code ErrorCode, errno unix.Errno) {
	var frame [5]byte
	frame[0] = byte(code)
	binary.BigEndian.PutUint32(frame[1:], uint32(int32(errno)))
	unix.Write(fd, frame[:])
}
