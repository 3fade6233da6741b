package registry

import (
	"testing"

	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryBijection(t *testing.T) {
	ids := []string{"sku-1", "sku-2", "sku-3"}
	r, err := New(ids)
	require.NoError(t, err)
	require.Equal(t, 3, r.Len())

	for i, id := range ids {
		pos, ok := r.Position(id)
		require.True(t, ok)
		assert.Equal(t, i, pos)

		back, ok := r.ID(pos)
		require.True(t, ok)
		assert.Equal(t, id, back)
	}

	_, ok := r.Position("missing")
	assert.False(t, ok)
	_, ok = r.ID(3)
	assert.False(t, ok)
	_, ok = r.ID(-1)
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := New([]string{"a", "b", "a"})
	assert.ErrorIs(t, err, e.ErrDuplicateID)

	_, err = New([]string{"a", ""})
	assert.ErrorIs(t, err, e.ErrInvalidArgument)
}

func TestRegistryCopiesInput(t *testing.T) {
	ids := []string{"a", "b"}
	r, err := New(ids)
	require.NoError(t, err)

	ids[0] = "z"
	got, _ := r.ID(0)
	assert.Equal(t, "a", got)

	out := r.IDs()
	out[1] = "y"
	got, _ = r.ID(1)
	assert.Equal(t, "b", got)
}

func TestRegistryFingerprint(t *testing.T) {
	a, err := New([]string{"a", "b"})
	require.NoError(t, err)
	b, err := New([]string{"a", "b"})
	require.NoError(t, err)
	c, err := New([]string{"b", "a"})
	require.NoError(t, err)
	d, err := New([]string{"ab"})
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())
}

func TestRegistryEmpty(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
}
