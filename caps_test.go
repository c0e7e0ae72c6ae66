package goshare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitmapFromCaps(t *testing.T) {
	b := bitmapFromCaps([]Capability{0, 31, 32})
	assert.True(t, b.has(0))
	assert.True(t, b.has(31))
	assert.True(t, b.has(32))
	assert.False(t, b.has(1))
	assert.False(t, b.has(33))
}

func TestCapabilityByNameAcceptsPrefixVariants(t *testing.T) {
	a, err := capabilityByName("CAP_CHOWN")
	require.NoError(t, err)

	b, err := capabilityByName("chown")
	require.NoError(t, err)

	c, err := capabilityByName("Chown")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
}

func TestCapabilityByNameUnknown(t *testing.T) {
	_, err := capabilityByName("not_a_real_capability")
	assert.Error(t, err)
}
