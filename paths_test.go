package goshare

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPathPrefix(t *testing.T) {
	assert.True(t, isPathPrefix("/var/lib/container", "/var/lib/container/old-root"))
	assert.True(t, isPathPrefix("/", "/old-root"))
	assert.False(t, isPathPrefix("/var/lib/container", "/var/lib/other/old-root"))
	assert.False(t, isPathPrefix("/a/b", "/a/b"))
}

func TestResolveWorkDirDefaultsToRoot(t *testing.T) {
	assert.Equal(t, "/", resolveWorkDir(""))
	assert.Equal(t, "/srv/app", resolveWorkDir("/srv/app"))
}

func TestResolveRootChrootRelativeToPivot(t *testing.T) {
	pivot := &pivotRootSpec{newRoot: "/var/lib/container", putOld: "/var/lib/container/.old", unmount: true}
	dir := "/srv/app"

	r := resolveRoot(pivot, &dir)
	assert.True(t, r.haveChroot)
	assert.Equal(t, "/var/lib/container/srv/app", r.chroot)
	assert.Same(t, pivot, r.pivot)
}

func TestResolveRootNoChroot(t *testing.T) {
	r := resolveRoot(nil, nil)
	assert.False(t, r.haveChroot)
	assert.Nil(t, r.pivot)
}

func TestPivotOldInside(t *testing.T) {
	pivot := &pivotRootSpec{newRoot: "/var/lib/container", putOld: "/var/lib/container/.old"}
	assert.Equal(t, "/.old", pivotOldInside(pivot))
}

func TestPivotOldInsideNested(t *testing.T) {
	pivot := &pivotRootSpec{newRoot: "/var/lib/container", putOld: "/var/lib/container/mnt/.old"}
	assert.Equal(t, "/mnt/.old", pivotOldInside(pivot))
}
