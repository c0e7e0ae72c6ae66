package goshare

import (
	"fmt"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// runIDMapCommands invokes external newuidmap/newgidmap-style helpers
// against an already-running child, for the rootless case where the
// calling process cannot write /proc/<pid>/{uid,gid}_map directly and
// relies on a setuid helper instead. Each helper is invoked once with the
// full map as repeated "inside outside count" triples, matching the
// newuidmap(1)/newgidmap(1) calling convention.
func runIDMapCommands(pid int, cmds *IDMapCommands, uidMap, gidMap []IDMap) error {
	if len(uidMap) > 0 {
		if err := runOneIDMapCommand(cmds.NewUidMap, pid, uidMap); err != nil {
			return err
		}
	}
	if len(gidMap) > 0 {
		if err := runOneIDMapCommand(cmds.NewGidMap, pid, gidMap); err != nil {
			return err
		}
	}
	return nil
}

func runOneIDMapCommand(path string, pid int, maps []IDMap) error {
	args := make([]string, 0, 1+3*len(maps))
	args = append(args, strconv.Itoa(pid))
	for _, m := range maps {
		args = append(args,
			strconv.FormatUint(uint64(m.InsideID), 10),
			strconv.FormatUint(uint64(m.OutsideID), 10),
			strconv.FormatUint(uint64(m.Count), 10),
		)
	}

	cmd := exec.Command(path, args...)
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				return &AuxCommandKilled{Signal: unix.Signal(ws.Signal())}
			}
			return &AuxCommandExited{Status: exitErr.ExitCode()}
		}
		return fmt.Errorf("goshare: running %s: %w", path, err)
	}
	return nil
}
