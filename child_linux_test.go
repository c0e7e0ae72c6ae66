package goshare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// placeAt dup2's fd onto want, closing fd's original number, and returns
// want. Used to build a reexec'd child's fd layout deterministically,
// the way os/exec's ExtraFiles placement and a caller's FileDescriptor
// targets would collide in a real Spawn.
func placeAt(t *testing.T, fd int, want int) int {
	t.Helper()
	require.NoError(t, unix.Dup2(fd, want))
	unix.Close(fd)
	t.Cleanup(func() { unix.Close(want) })
	return want
}

func newPipe(t *testing.T) (r, w int) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	return fds[0], fds[1]
}

// TestApplyFdTransfersSurvivesTargetsInsideSourceRange reproduces a
// FileDescriptor target landing on a not-yet-placed source, and another
// landing on the error pipe itself — exactly what os/exec's contiguous
// ExtraFiles block produces whenever a caller-chosen target is also >= 3.
// A naive in-order dup2 pass would destroy one or the other; the fix
// relocates every source and the error pipe above the highest target
// first.
func TestApplyFdTransfersSurvivesTargetsInsideSourceRange(t *testing.T) {
	const base = 60 // far above any fd this test process has open

	srcR := [3]int{}
	srcW := [3]int{}
	for i := range srcR {
		r, w := newPipe(t)
		srcR[i] = placeAt(t, r, base+i)
		srcW[i] = w
		w := w
		t.Cleanup(func() { unix.Close(w) })
	}

	errR, errW := newPipe(t)
	t.Cleanup(func() { unix.Close(errR) })
	errFd := placeAt(t, errW, base+3)

	// target[0] lands on source 2's not-yet-relocated fd; target[1] lands
	// on the error pipe's fd; target[2] is an ordinary fd with no overlap.
	targets := [3]int{base + 2, base + 3, base + 20}

	transfers := []fdTransfer{
		{Index: (base + 0) - 3, Target: targets[0]},
		{Index: (base + 1) - 3, Target: targets[1]},
		{Index: (base + 2) - 3, Target: targets[2]},
	}

	require.NoError(t, applyFdTransfers(transfers, &errFd))
	t.Cleanup(func() {
		for _, tgt := range targets {
			unix.Close(tgt)
		}
		unix.Close(errFd)
	})

	for i, tgt := range targets {
		unix.Write(srcW[i], []byte{byte('A' + i)})
		var buf [1]byte
		n, err := unix.Read(tgt, buf[:])
		require.NoError(t, err)
		require.Equal(t, 1, n)
		assert.Equal(t, byte('A'+i), buf[0])
	}

	_, err := unix.Write(errFd, []byte{1})
	require.NoError(t, err)
	var buf [1]byte
	n, err := unix.Read(errR, buf[:])
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCloseFdRangesSkipsTransferTargetsAndErrFd(t *testing.T) {
	const base = 90

	keptR, keptW := newPipe(t)
	t.Cleanup(func() { unix.Close(keptW) })
	kept := placeAt(t, keptR, base)

	errR, errW := newPipe(t)
	t.Cleanup(func() { unix.Close(errW) })
	errFd := placeAt(t, errR, base+1)

	closeableR, closeableW := newPipe(t)
	t.Cleanup(func() { unix.Close(closeableW) })
	closeable := placeAt(t, closeableR, base+2)

	transfers := []fdTransfer{{Index: 0, Target: kept}}

	require.NoError(t, closeFdRanges([][2]int{{base, base + 10}}, transfers, errFd))
	t.Cleanup(func() {
		unix.Close(kept)
		unix.Close(errFd)
	})

	_, err := unix.FcntlInt(uintptr(kept), unix.F_GETFD, 0)
	assert.NoError(t, err, "transfer target must survive CloseFds")

	_, err = unix.FcntlInt(uintptr(errFd), unix.F_GETFD, 0)
	assert.NoError(t, err, "error pipe must survive CloseFds")

	_, err = unix.FcntlInt(uintptr(closeable), unix.F_GETFD, 0)
	assert.Error(t, err, "an ordinary fd in range must still be closed")
}
