package goshare

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func frameFor(code ErrorCode, errno int32) [5]byte {
	var f [5]byte
	f[0] = byte(code)
	binary.BigEndian.PutUint32(f[1:], uint32(errno))
	return f
}

func TestDecodeErrorFrameKnownCode(t *testing.T) {
	frame := frameFor(ErrExec, int32(unix.ENOENT))
	err := decodeErrorFrame(frame)

	spawnErr, ok := err.(*SpawnError)
	require.True(t, ok)
	assert.Equal(t, ErrExec, spawnErr.Code)
	assert.Equal(t, unix.ENOENT, spawnErr.Errno)
	assert.Contains(t, spawnErr.Error(), "error when executing")
	assert.Contains(t, spawnErr.Error(), "os error")
}

func TestDecodeErrorFrameUnknownCode(t *testing.T) {
	frame := frameFor(ErrorCode(99), 0)
	err := decodeErrorFrame(frame)

	_, ok := err.(*UnknownError)
	assert.True(t, ok)
}

func TestSpawnErrorWithoutErrno(t *testing.T) {
	err := &SpawnError{Code: ErrCreatePipe}
	assert.Equal(t, "can't create pipe", err.Error())
}

func TestBeforeUnfreezeErrorUnwraps(t *testing.T) {
	inner := assertErr{}
	err := &BeforeUnfreezeError{Err: inner}
	assert.ErrorIs(t, err, inner)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
