package goshare

import (
	"fmt"
	"os"
	"sort"

	"golang.org/x/sys/unix"
)

// resolvedStdio holds the parent-side halves of any pipes created to
// satisfy StdioPiped requests, keyed by the target fd they feed (0/1/2 or
// whatever FileDescriptor configured).
type resolvedStdio struct {
	files map[int]*os.File
}

// planFds resolves the declarative fds map into a list of *os.File to pass
// through os/exec's ExtraFiles, plus the fdTransfer table telling the
// reexec'd child which ExtraFiles slot belongs on which final target fd.
// Descriptors that are already correctly in place (Inherit on a target
// that already holds the right fd) need no transfer at all.
//
// Passing descriptors via ExtraFiles instead of raw numbers means this
// package never has to choose fd numbers itself: os/exec always places
// ExtraFiles at a contiguous block starting at fd 3 in the child. That
// block can still overlap a caller-chosen target >= 3 (FileDescriptor(5,
// ...) and a five-entry ExtraFiles block both live at fd 5, for instance),
// so the reexec'd init's dup2-into-target pass (applyFdTransfers in
// child_linux.go) relocates every source above the highest target before
// wiring anything into place, rather than assuming the two ranges can't
// collide.
func planFds(fds map[int]FdIntent) ([]*os.File, []fdTransfer, *resolvedStdio, error) {
	stdio := &resolvedStdio{files: map[int]*os.File{}}

	targets := make([]int, 0, len(fds))
	for t := range fds {
		targets = append(targets, t)
	}
	sort.Ints(targets)

	var extra []*os.File
	var transfers []fdTransfer

	for _, target := range targets {
		f, err := resolveFdIntent(target, fds[target], stdio)
		if err != nil {
			closeAll(stdio)
			return nil, nil, nil, err
		}
		if f == nil {
			continue
		}
		transfers = append(transfers, fdTransfer{Index: len(extra), Target: target})
		extra = append(extra, f)
	}

	return extra, transfers, stdio, nil
}

func closeAll(s *resolvedStdio) {
	for _, f := range s.files {
		f.Close()
	}
}

// resolveFdIntent turns one FdIntent into the *os.File the reexec'd child
// should receive for target, or nil if nothing needs transferring
// (Inherit).
func resolveFdIntent(target int, intent FdIntent, stdio *resolvedStdio) (*os.File, error) {
	switch v := intent.(type) {
	case Inherit:
		return nil, nil

	case ReadNull:
		f, err := os.OpenFile(os.DevNull, os.O_RDONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("goshare: opening %s for fd %d: %w", os.DevNull, target, err)
		}
		return f, nil

	case WriteNull:
		f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("goshare: opening %s for fd %d: %w", os.DevNull, target, err)
		}
		return f, nil

	case ReadPipe:
		// Child reads, so the child's end is the pipe's read half; the
		// parent keeps the write half to feed it.
		r, w, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("goshare: creating pipe for fd %d: %w", target, err)
		}
		stdio.files[target] = w
		return r, nil

	case WritePipe:
		r, w, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("goshare: creating pipe for fd %d: %w", target, err)
		}
		stdio.files[target] = r
		return w, nil

	case OwnedFd:
		return os.NewFile(uintptr(v.FD), fmt.Sprintf("owned-fd-%d", v.FD)), nil

	case BorrowedFd:
		dup, err := unix.FcntlInt(uintptr(v.FD), unix.F_DUPFD_CLOEXEC, 0)
		if err != nil {
			return nil, fmt.Errorf("goshare: duplicating borrowed fd %d: %w", v.FD, err)
		}
		return os.NewFile(uintptr(dup), fmt.Sprintf("borrowed-fd-%d", v.FD)), nil

	default:
		return nil, fmt.Errorf("goshare: unhandled fd intent %T for fd %d", intent, target)
	}
}
