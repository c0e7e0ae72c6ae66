package goshare

import "os"

// FdIntent describes what the child should see on a given target file
// descriptor. The zero value of each concrete type is a valid intent; the
// Stdin/Stdout/Stderr helpers on Command translate a Stdio choice (pipe,
// inherit, null, or an explicit fd) into the read/write variant that makes
// sense for that specific fd.
type FdIntent interface {
	isFdIntent()
}

// ReadPipe creates a pipe; the child gets the read end, the caller gets the
// write end back through Child.Stdio.
type ReadPipe struct{}

// WritePipe is the mirror of ReadPipe: the child gets the write end, the
// caller gets the read end back through Child.Stdio.
type WritePipe struct{}

// Inherit passes the target fd through unchanged from the parent. For 0, 1
// and 2 the parent's stdio is handed on; for a higher fd nothing is
// transferred, so the child sees it only if the parent's fd is not
// close-on-exec and no ExtraFiles slot lands on the same number.
type Inherit struct{}

// ReadNull opens /dev/null read-only for the child.
type ReadNull struct{}

// WriteNull opens /dev/null write-only for the child.
type WriteNull struct{}

// OwnedFd hands the planner an fd the Command takes ownership of: it is
// closed exactly once, either by the child's dup2/close sequence or by the
// parent-side holder if spawn never reaches the child.
type OwnedFd struct{ FD int }

// BorrowedFd is like OwnedFd but the caller keeps ownership; goshare never
// closes it.
type BorrowedFd struct{ FD int }

func (ReadPipe) isFdIntent()   {}
func (WritePipe) isFdIntent()  {}
func (Inherit) isFdIntent()    {}
func (ReadNull) isFdIntent()   {}
func (WriteNull) isFdIntent()  {}
func (OwnedFd) isFdIntent()    {}
func (BorrowedFd) isFdIntent() {}

// Stdio is the convenience enumeration used by the Stdin/Stdout/Stderr
// builder methods; it collapses to a read or write FdIntent depending on
// which stdio stream it is attached to.
type Stdio int

const (
	StdioInherit Stdio = iota
	StdioPiped
	StdioNull
)

func (s Stdio) toFdIntent(write bool) FdIntent {
	switch s {
	case StdioPiped:
		if write {
			return WritePipe{}
		}
		return ReadPipe{}
	case StdioNull:
		if write {
			return WriteNull{}
		}
		return ReadNull{}
	default:
		return Inherit{}
	}
}

// FromFile wraps an already-open file as an owned fd intent; goshare takes
// over closing it.
func FromFile(f *os.File) OwnedFd {
	return OwnedFd{FD: int(f.Fd())}
}
