package assignment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/flota-api/internal/application/assignment"
)

func TestExclusionRegistry_CargaDocumentoExistente(t *testing.T) {
	store := &fakeExclusionStore{found: true, ids: []int64{2, 5}}
	registry := assignment.NewExclusionRegistry(store)

	require.NoError(t, registry.Load(context.Background(), 9))

	assert.True(t, registry.IsExcluded(2))
	assert.True(t, registry.IsExcluded(5))
	assert.False(t, registry.IsExcluded(9),
		"el valor por defecto no aplica si el documento ya existe")
	assert.Empty(t, store.replaced, "cargar un documento existente no escribe")
}

func TestExclusionRegistry_PrimerArranqueSiembraElDefault(t *testing.T) {
	store := &fakeExclusionStore{found: false}
	registry := assignment.NewExclusionRegistry(store)

	require.NoError(t, registry.Load(context.Background(), 7))

	assert.True(t, registry.IsExcluded(7))
	require.Len(t, store.replaced, 1, "el default debe persistirse en el primer arranque")
	assert.Equal(t, []int64{7}, store.replaced[0])
}

func TestExclusionRegistry_PrimerArranqueSinDefault(t *testing.T) {
	store := &fakeExclusionStore{found: false}
	registry := assignment.NewExclusionRegistry(store)

	require.NoError(t, registry.Load(context.Background(), 0))

	assert.Empty(t, registry.Snapshot())
	require.Len(t, store.replaced, 1)
	assert.Empty(t, store.replaced[0])
}

func TestExclusionRegistry_SnapshotOrdenado(t *testing.T) {
	store := &fakeExclusionStore{found: true, ids: []int64{5, 1, 3}}
	registry := assignment.NewExclusionRegistry(store)
	require.NoError(t, registry.Load(context.Background(), 0))

	registry.Add(2)
	assert.Equal(t, []int64{1, 2, 3, 5}, registry.Snapshot())

	registry.Remove(3)
	assert.Equal(t, []int64{1, 2, 5}, registry.Snapshot())
}
