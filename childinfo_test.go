package goshare

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildInfoRoundTripsThroughJSON(t *testing.T) {
	c := New("/bin/echo").Arg("hi").EnvClear().Env("FOO", "bar")
	c.PivotRoot("/var/lib/container", "/var/lib/container/.old", true)
	c.ChrootDir("/srv/app")
	c.WorkDir("/work")

	info := newChildInfo(c, nil, 7, 8)
	raw, err := json.Marshal(info)
	require.NoError(t, err)

	decoded, err := decodeChildInfo(raw)
	require.NoError(t, err)

	assert.Equal(t, info.Filename, decoded.Filename)
	assert.Equal(t, info.Args, decoded.Args)
	assert.Equal(t, info.Envp, decoded.Envp)
	assert.Equal(t, "/var/lib/container", decoded.PivotNewRoot)
	assert.Equal(t, "/var/lib/container/.old", decoded.PivotPutOld)
	assert.Equal(t, "/.old", decoded.PivotOldInside)
	assert.True(t, decoded.PivotUnmount)
	assert.Equal(t, "/var/lib/container/srv/app", decoded.ChrootDir)
	assert.Equal(t, "/work", decoded.WorkDir)
	assert.Equal(t, 7, decoded.WakeupIndex)
	assert.Equal(t, 8, decoded.ErrIndex)
}
