package goshare

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Spawn starts the configured command. It returns as soon as the process
// exists and any BeforeUnfreeze callback has run and the wake-up signal
// has been sent; use the returned Child's Wait to block for exit.
func (c *Command) Spawn() (*Child, error) {
	extraFiles, transfers, stdio, err := planFds(c.fds)
	if err != nil {
		return nil, err
	}

	wakeupR, wakeupW, err := os.Pipe()
	if err != nil {
		closeAll(stdio)
		return nil, &SpawnError{Code: ErrCreatePipe, Errno: errnoOf(err)}
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		wakeupR.Close()
		wakeupW.Close()
		closeAll(stdio)
		return nil, &SpawnError{Code: ErrCreatePipe, Errno: errnoOf(err)}
	}
	infoR, infoW, err := os.Pipe()
	if err != nil {
		wakeupR.Close()
		wakeupW.Close()
		errR.Close()
		errW.Close()
		closeAll(stdio)
		return nil, &SpawnError{Code: ErrCreatePipe, Errno: errnoOf(err)}
	}

	wakeupIndex := len(extraFiles)
	extraFiles = append(extraFiles, wakeupR)
	errIndex := len(extraFiles)
	extraFiles = append(extraFiles, errW)
	infoIndex := len(extraFiles)
	extraFiles = append(extraFiles, infoR)

	setnsStart := len(extraFiles)
	setnsOrder := make([]Namespace, 0, len(c.config.SetnsNamespaces))
	for ns, fd := range c.config.SetnsNamespaces {
		setnsOrder = append(setnsOrder, ns)
		extraFiles = append(extraFiles, os.NewFile(uintptr(fd), ns.String()))
	}

	info := newChildInfo(c, transfers, wakeupIndex, errIndex)
	for i, ns := range setnsOrder {
		info.SetnsIndex[ns] = setnsStart + i
	}

	payload, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("goshare: encoding child info: %w", err)
	}

	cmd := exec.Command(selfExePath(), initCommandName, strconv.Itoa(infoIndex))
	cmd.ExtraFiles = extraFiles
	// Inherit on 0/1/2 produces no transfer, so the init stage has to start
	// on the parent's own stdio for those fds to reach the final program.
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: c.config.CloneFlags,
		Pdeathsig:  syscall.Signal(c.config.DeathSig),
	}
	// With external newuidmap/newgidmap helpers, the mapping is written
	// after Start by runIDMapCommands against the child's real pid; asking
	// the runtime to also write /proc/<pid>/{uid,gid}_map during Start would
	// conflict with it.
	if c.idMapCommands == nil {
		cmd.SysProcAttr.UidMappings = toSysProcIDMap(c.config.UIDMap)
		cmd.SysProcAttr.GidMappings = toSysProcIDMap(c.config.GIDMap)
		cmd.SysProcAttr.GidMappingsEnableSetgroups = true
	}

	if err := cmd.Start(); err != nil {
		wakeupW.Close()
		errR.Close()
		infoW.Close()
		closeAll(stdio)
		closeFiles(extraFiles)
		return nil, &SpawnError{Code: ErrFork, Errno: errnoOf(err)}
	}

	// The child now owns its copies of every ExtraFiles descriptor; the
	// parent's copies only duplicate that work and, left open, would stop
	// pipes from ever reaching EOF.
	closeFiles(extraFiles)

	// Past this point the child exists; any failure kills and reaps it
	// before the error is returned.
	abort := func(err error) (*Child, error) {
		wakeupW.Close()
		errR.Close()
		closeAll(stdio)
		cmd.Process.Kill()
		cmd.Wait()
		return nil, err
	}

	if _, err := infoW.Write(payload); err != nil {
		logrus.WithError(err).Warn("goshare: writing child info")
	}
	infoW.Close()

	if c.config.MakeGroupLeader {
		if err := unix.Setpgid(cmd.Process.Pid, cmd.Process.Pid); err != nil {
			return abort(&SpawnError{Code: ErrSetPGid, Errno: errnoOf(err)})
		}
	}

	if c.idMapCommands != nil {
		if err := runIDMapCommands(cmd.Process.Pid, c.idMapCommands, c.config.UIDMap, c.config.GIDMap); err != nil {
			return abort(err)
		}
	}

	if c.beforeUnfreeze != nil {
		if err := c.beforeUnfreeze(cmd.Process.Pid); err != nil {
			return abort(&BeforeUnfreezeError{Err: err})
		}
	}

	// Unblock the child: it has been parked on a read of wakeupR since
	// its own exec, waiting for id maps and BeforeUnfreeze to finish.
	if _, err := wakeupW.Write([]byte{1}); err != nil {
		logrus.WithError(err).Warn("goshare: writing wake-up byte")
	}
	wakeupW.Close()

	return &Child{cmd: cmd, errR: errR, stdio: stdio}, nil
}

func toSysProcIDMap(maps []IDMap) []syscall.SysProcIDMap {
	if len(maps) == 0 {
		return nil
	}
	out := make([]syscall.SysProcIDMap, len(maps))
	for i, m := range maps {
		out[i] = syscall.SysProcIDMap{
			ContainerID: int(m.InsideID),
			HostID:      int(m.OutsideID),
			Size:        int(m.Count),
		}
	}
	return out
}

func closeFiles(files []*os.File) {
	for _, f := range files {
		if f != nil {
			f.Close()
		}
	}
}

func errnoOf(err error) unix.Errno {
	if e, ok := err.(*os.SyscallError); ok {
		if errno, ok := e.Err.(unix.Errno); ok {
			return errno
		}
	}
	if pe, ok := err.(*os.PathError); ok {
		if errno, ok := pe.Err.(unix.Errno); ok {
			return errno
		}
	}
	if errno, ok := err.(unix.Errno); ok {
		return errno
	}
	return 0
}
