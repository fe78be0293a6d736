package resolver

import (
	"testing"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores() []domain.Store {
	return []domain.Store{
		{ID: 3, Name: "Viana do Castelo", Zone: "Norte"},
		{ID: 1, Name: "Bragá – Minho Center", Zone: "Norte"},
		{ID: 2, Name: "Lisboa Colombo", Zone: "Sul"},
	}
}

func TestRegistryResolveExact(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(testStores())
	require.Equal(t, 3, reg.Len())

	s, err := reg.Resolve("BRAGA - MINHO  CENTER")
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.ID)

	_, err = reg.Resolve("Store XYZ")
	assert.ErrorIs(t, err, domain.ErrStoreNotFound)

	// exact mode never falls back to containment
	_, err = reg.Resolve("Colombo")
	assert.ErrorIs(t, err, domain.ErrStoreNotFound)
}

func TestRegistryResolveAmbiguous(t *testing.T) {
	t.Parallel()

	reg := NewRegistry([]domain.Store{
		{ID: 1, Name: "Porto Centro"},
		{ID: 2, Name: "PORTO  CENTRO"},
	})
	_, err := reg.Resolve("porto centro")
	assert.ErrorIs(t, err, domain.ErrAmbiguousStore)
}

func TestRegistryIsASnapshot(t *testing.T) {
	t.Parallel()

	stores := testStores()
	reg := NewRegistry(stores)
	stores[0].Name = "Renamed"

	s, err := reg.Resolve("Viana do Castelo")
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.ID)
}

func TestResolveApproximate(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(testStores())

	m, ok := reg.ResolveApproximate("lisboa colombo")
	require.True(t, ok)
	assert.True(t, m.Exact)
	assert.Equal(t, int64(2), m.Store.ID)

	m, ok = reg.ResolveApproximate("Loja Viana do Castelo (nova)")
	require.True(t, ok)
	assert.False(t, m.Exact)
	assert.Equal(t, int64(3), m.Store.ID)

	m, ok = reg.ResolveApproximate("Colombo")
	require.True(t, ok)
	assert.Equal(t, int64(2), m.Store.ID)

	_, ok = reg.ResolveApproximate("Faro")
	assert.False(t, ok)

	_, ok = reg.ResolveApproximate("   ")
	assert.False(t, ok)
}
