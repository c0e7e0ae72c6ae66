package goshare

import "golang.org/x/sys/unix"

// Namespace identifies one of the Linux namespace kinds this package can
// unshare or join via setns. It is bijective with the kernel's CLONE_NEW*
// flags, see cloneFlag below.
type Namespace int

const (
	Mount Namespace = iota
	UTS
	IPC
	User
	PID
	Net
)

// cloneFlag returns the CLONE_NEW* flag corresponding to ns.
func (ns Namespace) cloneFlag() uintptr {
	switch ns {
	case Mount:
		return unix.CLONE_NEWNS
	case UTS:
		return unix.CLONE_NEWUTS
	case IPC:
		return unix.CLONE_NEWIPC
	case User:
		return unix.CLONE_NEWUSER
	case PID:
		return unix.CLONE_NEWPID
	case Net:
		return unix.CLONE_NEWNET
	default:
		panic("goshare: unknown namespace kind")
	}
}

func (ns Namespace) String() string {
	switch ns {
	case Mount:
		return "mount"
	case UTS:
		return "uts"
	case IPC:
		return "ipc"
	case User:
		return "user"
	case PID:
		return "pid"
	case Net:
		return "net"
	default:
		return "unknown"
	}
}
