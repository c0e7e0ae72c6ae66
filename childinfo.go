package goshare

import (
	"encoding/json"
	"os"
)

// decodeChildInfo unmarshals the JSON payload the parent wrote to the
// info pipe. Safe to call with full heap allocation: by the time the
// reexec'd init process reads this, execve has already completed.
func decodeChildInfo(raw []byte) (*childInfo, error) {
	var info childInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// fdTransfer describes one descriptor the reexec'd child inherits via
// os/exec's ExtraFiles and where it must end up before the final execve.
// index is the position in ExtraFiles (so the inherited fd number is
// 3+index, following os/exec's own numbering); target is the fd it must
// occupy in the final program (0, 1, 2, or anything >= 3 configured via
// FileDescriptor).
type fdTransfer struct {
	Index  int `json:"index"`
	Target int `json:"target"`
}

// childInfo is the full recipe for the reexec'd init process: what to
// execve, how to wire its descriptors, and what namespace/identity/root
// setup to perform first. It is JSON-encoded by the parent and read back
// by the child over a dedicated pipe, so unlike a clone(2)-based design
// there is no async-signal-safety constraint on decoding it — by the time
// goshareInitMain runs, execve has already happened and the process is a
// normal, single-threaded Go binary.
type childInfo struct {
	Filename string   `json:"filename"`
	Args     []string `json:"args"`
	Envp     []string `json:"envp"`

	PidEnvVars []string `json:"pid_env_vars"`

	Transfers []fdTransfer `json:"transfers"`
	CloseFds  [][2]int     `json:"close_fds"`

	PivotNewRoot   string `json:"pivot_new_root,omitempty"`
	PivotPutOld    string `json:"pivot_put_old,omitempty"`
	PivotOldInside string `json:"pivot_old_inside,omitempty"`
	PivotUnmount   bool   `json:"pivot_unmount,omitempty"`
	ChrootDir      string `json:"chroot_dir,omitempty"`
	WorkDir        string `json:"work_dir"`

	UID               *int  `json:"uid,omitempty"`
	GID               *int  `json:"gid,omitempty"`
	SupplementaryGIDs []int `json:"supplementary_gids,omitempty"`

	// SetnsIndex maps a namespace to the ExtraFiles index of the fd to
	// setns(2) into, mirroring Transfers' indexing scheme.
	SetnsIndex map[Namespace]int `json:"setns_index,omitempty"`

	KeepCaps    *capBitmap `json:"keep_caps,omitempty"`
	HaveCaps    bool       `json:"have_caps"`
	DeathSig    int        `json:"death_sig"`
	RestoreMask bool       `json:"restore_sigmask"`
	MakeLeader  bool       `json:"make_group_leader"`

	// WakeupIndex is the ExtraFiles index of the read end of the wake-up
	// pipe; the child blocks here until the parent has finished writing
	// id maps and running BeforeUnfreeze.
	WakeupIndex int `json:"wakeup_index"`
	// ErrIndex is the ExtraFiles index of the write end of the error
	// pipe; on success it is simply left open and closed by the final
	// execve (it is O_CLOEXEC), which is how the parent tells success
	// (EOF with zero bytes) apart from failure (a 5-byte frame).
	ErrIndex int `json:"err_index"`

	// PreExecName, if non-empty, names a hook registered with
	// RegisterPreExecHook to run immediately before the final execve.
	PreExecName string `json:"pre_exec_name,omitempty"`
}

func newChildInfo(c *Command, transfers []fdTransfer, wakeupIndex, errIndex int) *childInfo {
	envp := make([]string, 0, len(c.environ))
	for k, v := range c.environ {
		envp = append(envp, k+"="+v)
	}
	// A Command whose environment was never touched passes on the caller's
	// environment as it is at spawn time.
	if !c.environInit {
		envp = os.Environ()
	}
	pidVars := make([]string, 0, len(c.pidEnvVars))
	for k := range c.pidEnvVars {
		pidVars = append(pidVars, k)
	}

	root := resolveRoot(c.pivot, c.chrootDir)

	info := &childInfo{
		Filename:          c.filename,
		Args:              c.args,
		Envp:              envp,
		PidEnvVars:        pidVars,
		Transfers:         transfers,
		CloseFds:          c.closeFds,
		ChrootDir:         root.chroot,
		WorkDir:           resolveWorkDir(c.config.WorkDir),
		UID:               c.config.UID,
		GID:               c.config.GID,
		SupplementaryGIDs: c.config.SupplementaryGIDs,
		KeepCaps:          c.keepCaps,
		HaveCaps:          c.keepCaps != nil,
		DeathSig:          int(c.config.DeathSig),
		RestoreMask:       c.config.RestoreSigmask,
		MakeLeader:        c.config.MakeGroupLeader,
		WakeupIndex:       wakeupIndex,
		ErrIndex:          errIndex,
		PreExecName:       c.preExecName,
	}
	if root.pivot != nil {
		info.PivotNewRoot = root.pivot.newRoot
		info.PivotPutOld = root.pivot.putOld
		info.PivotOldInside = pivotOldInside(root.pivot)
		info.PivotUnmount = root.pivot.unmount
	}
	if len(c.config.SetnsNamespaces) > 0 {
		info.SetnsIndex = map[Namespace]int{}
	}
	return info
}
