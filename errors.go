package goshare

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrorCode identifies which step of the child entry sequence failed. The
// numeric values are wire format: they are the first byte the child writes
// into the error pipe, and must match the taxonomy the child and the
// parent both compile against.
type ErrorCode uint8

const (
	ErrCreatePipe ErrorCode = iota + 1
	ErrFork
	ErrExec
	ErrChdir
	ErrParentDeathSignal
	ErrPipeError
	ErrStdioError
	ErrSetUser
	ErrChangeRoot
	ErrSetIdMap
	ErrSetPGid
	ErrSetNs
	ErrCapSet
)

func (c ErrorCode) description() string {
	switch c {
	case ErrCreatePipe:
		return "can't create pipe"
	case ErrFork:
		return "error when forking"
	case ErrExec:
		return "error when executing"
	case ErrChdir:
		return "error when setting working directory"
	case ErrParentDeathSignal:
		return "error setting parent death signal"
	case ErrPipeError:
		return "error in signalling pipe"
	case ErrStdioError:
		return "error setting up stdio for child"
	case ErrSetUser:
		return "error setting user or groups"
	case ErrChangeRoot:
		return "error changing root directory"
	case ErrSetIdMap:
		return "error setting uid/gid mappings"
	case ErrSetPGid:
		return "error when calling setpgid"
	case ErrSetNs:
		return "error when calling setns"
	case ErrCapSet:
		return "error when setting capabilities"
	default:
		return "unknown error"
	}
}

// SpawnError is the error surfaced for every child-entry failure code: the
// 5-byte frame is decoded straight into one of these.
type SpawnError struct {
	Code  ErrorCode
	Errno unix.Errno
}

func (e *SpawnError) Error() string {
	if e.Errno == 0 {
		return e.Code.description()
	}
	return fmt.Sprintf("%s: %s (os error %d)", e.Code.description(), e.Errno.Error(), int32(e.Errno))
}

// WaitError wraps an unexpected waitpid(2) failure; EINTR is always
// retried internally and never surfaces as this error.
type WaitError struct {
	Errno unix.Errno
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("error in waiting for child: %s (os error %d)", e.Errno.Error(), int32(e.Errno))
}

// AuxCommandExited reports that newuidmap/newgidmap ran but exited non-zero.
type AuxCommandExited struct {
	Status int
}

func (e *AuxCommandExited) Error() string {
	return fmt.Sprintf("aux command exited with non-zero code %d", e.Status)
}

// AuxCommandKilled reports that newuidmap/newgidmap was killed by a signal.
type AuxCommandKilled struct {
	Signal unix.Signal
}

func (e *AuxCommandKilled) Error() string {
	return fmt.Sprintf("aux command was killed by signal %s", e.Signal)
}

// BeforeUnfreezeError wraps whatever error the user's BeforeUnfreeze
// callback returned.
type BeforeUnfreezeError struct {
	Err error
}

func (e *BeforeUnfreezeError) Error() string {
	return fmt.Sprintf("error in before_unfreeze callback: %s", e.Err)
}

func (e *BeforeUnfreezeError) Unwrap() error {
	return e.Err
}

// UnknownError is returned when the error pipe produced neither 0 nor 5
// bytes, or an error code outside the known taxonomy.
type UnknownError struct {
	ByteCount int
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unexpected value received via error pipe (%d bytes)", e.ByteCount)
}

// decodeErrorFrame turns the 5-byte child error frame into a SpawnError, or
// *UnknownError if the code byte isn't recognized.
func decodeErrorFrame(frame [5]byte) error {
	code := ErrorCode(frame[0])
	errno := int32(frame[1])<<24 | int32(frame[2])<<16 | int32(frame[3])<<8 | int32(frame[4])
	switch code {
	case ErrCreatePipe, ErrFork, ErrExec, ErrChdir, ErrParentDeathSignal,
		ErrPipeError, ErrStdioError, ErrSetUser, ErrChangeRoot, ErrSetIdMap,
		ErrSetPGid, ErrSetNs, ErrCapSet:
		return &SpawnError{Code: code, Errno: unix.Errno(errno)}
	default:
		return &UnknownError{ByteCount: 5}
	}
}
