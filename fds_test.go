package goshare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanFdsInheritNeedsNoTransfer(t *testing.T) {
	extra, transfers, stdio, err := planFds(map[int]FdIntent{
		0: Inherit{},
		1: Inherit{},
		2: Inherit{},
	})
	require.NoError(t, err)
	assert.Empty(t, extra)
	assert.Empty(t, transfers)
	assert.Empty(t, stdio.files)
}

func TestPlanFdsPipedStdoutProducesTransferAndParentEnd(t *testing.T) {
	extra, transfers, stdio, err := planFds(map[int]FdIntent{
		0: Inherit{},
		1: WritePipe{},
		2: Inherit{},
	})
	require.NoError(t, err)
	defer closeAll(stdio)
	defer closeFiles(extra)

	require.Len(t, transfers, 1)
	assert.Equal(t, 1, transfers[0].Target)
	assert.Equal(t, 0, transfers[0].Index)
	require.Len(t, extra, 1)

	parentEnd, ok := stdio.files[1]
	require.True(t, ok)
	assert.NotNil(t, parentEnd)
}

func TestPlanFdsNullStdin(t *testing.T) {
	extra, transfers, stdio, err := planFds(map[int]FdIntent{
		0: ReadNull{},
	})
	require.NoError(t, err)
	defer closeAll(stdio)
	defer closeFiles(extra)

	require.Len(t, transfers, 1)
	assert.Equal(t, 0, transfers[0].Target)
	assert.Empty(t, stdio.files)
}

func TestPlanFdsOrdersTransfersByTarget(t *testing.T) {
	extra, transfers, stdio, err := planFds(map[int]FdIntent{
		5: WriteNull{},
		0: WriteNull{},
		3: WriteNull{},
	})
	require.NoError(t, err)
	defer closeAll(stdio)
	defer closeFiles(extra)

	require.Len(t, transfers, 3)
	assert.Equal(t, []int{0, 3, 5}, []int{transfers[0].Target, transfers[1].Target, transfers[2].Target})
}
