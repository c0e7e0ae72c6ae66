package goshare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestNewDefaults(t *testing.T) {
	c := New("/bin/true")
	assert.Equal(t, []string{"/bin/true"}, c.args)
	assert.Equal(t, "/bin/true", c.String())
	assert.Equal(t, unix.SIGKILL, c.config.DeathSig)
}

func TestArgAndArg0(t *testing.T) {
	c := New("/bin/sh").Arg("-c", "echo hi").Arg0("sh")
	assert.Equal(t, []string{"sh", "-c", "echo hi"}, c.args)
	assert.Equal(t, "/bin/sh", c.filename)
}

func TestEnvClearThenEnv(t *testing.T) {
	c := New("/bin/true").EnvClear().Env("FOO", "bar")
	assert.Equal(t, map[string]string{"FOO": "bar"}, c.environ)
}

func TestEnvVarWithPidRemovesExplicitValue(t *testing.T) {
	c := New("/bin/true").Env("PID", "stale").EnvVarWithPid("PID")
	_, present := c.environ["PID"]
	assert.False(t, present)
	_, marked := c.pidEnvVars["PID"]
	assert.True(t, marked)
}

func TestUnshareAccumulatesFlags(t *testing.T) {
	c := New("/bin/true").Unshare(Mount, UTS)
	assert.NotZero(t, c.config.CloneFlags&Mount.cloneFlag())
	assert.NotZero(t, c.config.CloneFlags&UTS.cloneFlag())
}

func TestSetIDMapsImpliesUserNamespace(t *testing.T) {
	c := New("/bin/true").SetIDMaps(
		[]IDMap{{InsideID: 0, OutsideID: 1000, Count: 1}},
		[]IDMap{{InsideID: 0, OutsideID: 1000, Count: 1}},
	)
	assert.NotZero(t, c.config.CloneFlags&User.cloneFlag())
	assert.Len(t, c.config.UIDMap, 1)
}

func TestChrootDirPanicsOnRelativePath(t *testing.T) {
	assert.Panics(t, func() {
		New("/bin/true").ChrootDir("relative/path")
	})
}

func TestCloseFdsPanicsBelowThree(t *testing.T) {
	assert.Panics(t, func() {
		New("/bin/true").CloseFds(Between(1, 5))
	})
}

func TestPivotRootPanicsWhenNotPrefix(t *testing.T) {
	assert.Panics(t, func() {
		New("/bin/true").PivotRoot("/var/lib/container", "/somewhere/else", false)
	})
}

func TestPivotRootAcceptsNestedPutOld(t *testing.T) {
	c := New("/bin/true").PivotRoot("/var/lib/container", "/var/lib/container/.old", true)
	assert.Equal(t, "/var/lib/container", c.pivot.newRoot)
	assert.True(t, c.pivot.unmount)
}
