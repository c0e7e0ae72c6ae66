package goshare

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Child is a handle to a spawned process. It is returned once Spawn has
// confirmed the process exists and has been unblocked past the wake-up
// handshake; it does not mean the target program has actually started
// running yet (it may still be inside its own setup, or even still in
// the reexec'd init stage racing the parent to read the error pipe).
type Child struct {
	cmd   *exec.Cmd
	errR  *os.File
	stdio *resolvedStdio
}

// Pid returns the process id of the spawned (reexec'd) process. It is
// stable across the init stage's own execve of the target program: Linux
// never changes a process's pid across exec.
func (ch *Child) Pid() int {
	return ch.cmd.Process.Pid
}

// Stdio returns the parent-side pipe end for a piped fd configured via
// Stdin(StdioPiped)/Stdout(StdioPiped)/Stderr(StdioPiped) or
// FileDescriptor with ReadPipe/WritePipe, keyed by the target fd. Returns
// nil if that fd wasn't piped.
func (ch *Child) Stdio(fd int) *os.File {
	return ch.stdio.files[fd]
}

// ExitStatus is the parsed outcome of a finished child: either a normal
// exit code or the signal that killed it.
type ExitStatus struct {
	Code     int
	Signaled bool
	Signal   unix.Signal
}

func (s ExitStatus) String() string {
	if s.Signaled {
		return fmt.Sprintf("signal: %s", s.Signal)
	}
	return fmt.Sprintf("exit status: %d", s.Code)
}

// Success reports whether the child exited with code 0 and wasn't
// signaled.
func (s ExitStatus) Success() bool {
	return !s.Signaled && s.Code == 0
}

// Wait blocks until the child exits, first checking the error pipe for a
// setup failure (a 5-byte error frame means the target program never ran)
// and otherwise reaping the process and reporting its real exit status.
func (ch *Child) Wait() (ExitStatus, error) {
	defer ch.errR.Close()

	var frame [5]byte
	n, readErr := io.ReadFull(ch.errR, frame[:])
	switch {
	case n == 0:
		// EOF with nothing read: the error pipe's write end closed on a
		// successful execve, exactly as a set-up failure never happens.
	case n == 5:
		ch.cmd.Wait()
		return ExitStatus{}, decodeErrorFrame(frame)
	default:
		ch.cmd.Wait()
		return ExitStatus{}, &UnknownError{ByteCount: n}
	}
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		return ExitStatus{}, &WaitError{Errno: errnoOf(readErr)}
	}

	err := ch.cmd.Wait()
	processState := ch.cmd.ProcessState
	if ws, ok := processState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitStatus{Signaled: true, Signal: unix.Signal(ws.Signal())}, nil
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return ExitStatus{}, &WaitError{Errno: errnoOf(err)}
		}
	}
	return ExitStatus{Code: processState.ExitCode()}, nil
}

// Kill sends sig to the child.
func (ch *Child) Kill(sig unix.Signal) error {
	return ch.cmd.Process.Signal(sig)
}
