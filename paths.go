package goshare

import (
	"path/filepath"
	"strings"
)

// resolvedRoot describes the filesystem-root change the child must apply,
// after pivot_root and chroot have been reconciled against each other.
type resolvedRoot struct {
	pivot      *pivotRootSpec
	chroot     string // absolute path to chroot(2) into, empty if none
	haveChroot bool
}

// resolveRoot combines a Command's pivot and chroot settings into the
// sequence the child applies: pivot_root first (if any), then chroot
// resolved relative to the new root (if both are set), matching the
// original's rule that chroot_dir is always interpreted post-pivot.
func resolveRoot(pivot *pivotRootSpec, chrootDir *string) resolvedRoot {
	r := resolvedRoot{pivot: pivot}
	if chrootDir == nil {
		return r
	}
	dir := *chrootDir
	if pivot != nil {
		dir = joinUnderRoot(pivot.newRoot, dir)
	}
	r.chroot = dir
	r.haveChroot = true
	return r
}

// joinUnderRoot resolves an absolute path as if root were "/": it strips
// root's prefix semantics by simply joining, since dir is itself already
// absolute and meant to be interpreted inside the new mount namespace
// where newRoot has just become "/".
func joinUnderRoot(newRoot, dir string) string {
	return filepath.Join(newRoot, dir)
}

// resolveWorkDir picks the directory the child chdir's to as its last
// setup step: the configured WorkDir, or "/" if unset, matching the
// fallback the original applies so a pivoted/chrooted child never inherits
// a working directory that no longer resolves to anything.
func resolveWorkDir(configured string) string {
	if configured == "" {
		return "/"
	}
	return configured
}

// pivotOldInside computes the path at which the pre-pivot root is visible
// once pivot_root has run and the child has chdir'd to the new "/": the
// suffix of putOld below newRoot, prepended with "/". pivot_root grafts the
// old root onto putOld without moving anything, so putOld itself (an
// absolute path in the *old* mount namespace) stops resolving to anything
// useful the moment the root changes; only this rebased path does.
func pivotOldInside(pivot *pivotRootSpec) string {
	rel, err := filepath.Rel(pivot.newRoot, pivot.putOld)
	if err != nil {
		return "/"
	}
	return "/" + filepath.Clean(rel)
}

// isPathPrefix reports whether prefix is a strict path-component prefix of
// full (full must be nested inside prefix, not equal to it), used by
// Command.PivotRoot to validate that new_root contains put_old.
func isPathPrefix(prefix, full string) bool {
	rel, err := filepath.Rel(prefix, full)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
