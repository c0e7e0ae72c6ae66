// Package goshare spawns processes into fresh Linux namespaces with full
// control over the sequence of privileged syscalls that run between
// process creation and the final execve(2) of the caller's program.
//
// It generalizes the conventional fork+exec builder with mount/UTS/IPC/
// user/PID/network namespaces, pivot_root/chroot, uid/gid mappings, per
// process capability sets, supplementary groups, file descriptor
// reshuffling, a parent death signal, signal mask restoration, process
// group leadership, and a wake-up handshake that lets the parent finish
// configuring the child (writing uid/gid maps, running a callback) before
// the child proceeds towards exec.
//
// Spawn never forks the calling process directly. It starts a re-exec'd
// copy of itself via os/exec (see reexec.go and child_linux.go), the same
// way container-tooling code in this corpus avoids the narrow window
// between a raw clone(2) and exec where almost nothing — no allocation, no
// locking — is safe to do in a multi-threaded Go process.
package goshare
