package assignment

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jhoicas/flota-api/internal/domain/repository"
)

// ExclusionRegistry conjunto en memoria de camionetas excluidas de asignación,
// respaldado por el documento de configuración persistido. La persistencia es
// sobreescritura total sin merge: last writer wins.
type ExclusionRegistry struct {
	store repository.ExclusionStore

	mu  sync.RWMutex
	ids map[int64]struct{}
}

// NewExclusionRegistry construye el registro sobre el puerto de persistencia.
func NewExclusionRegistry(store repository.ExclusionStore) *ExclusionRegistry {
	return &ExclusionRegistry{
		store: store,
		ids:   make(map[int64]struct{}),
	}
}

// Load lee el documento persistido una sola vez al arranque. Si no existe,
// siembra el valor por defecto (defaultID, 0 = conjunto vacío) y lo persiste.
func (r *ExclusionRegistry) Load(ctx context.Context, defaultID int64) error {
	ids, found, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("leer exclusiones: %w", err)
	}
	if !found {
		ids = nil
		if defaultID > 0 {
			ids = []int64{defaultID}
		}
		if err := r.store.Replace(ctx, ids); err != nil {
			return fmt.Errorf("sembrar exclusiones por defecto: %w", err)
		}
	}

	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	r.mu.Lock()
	r.ids = set
	r.mu.Unlock()
	return nil
}

// IsExcluded indica si la camioneta está excluida de asignación.
func (r *ExclusionRegistry) IsExcluded(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}

// Add marca la camioneta como excluida (solo en memoria; el llamador persiste
// el snapshot vía el adaptador de sincronización).
func (r *ExclusionRegistry) Add(id int64) {
	r.mu.Lock()
	r.ids[id] = struct{}{}
	r.mu.Unlock()
}

// Remove quita la camioneta del conjunto (solo en memoria).
func (r *ExclusionRegistry) Remove(id int64) {
	r.mu.Lock()
	delete(r.ids, id)
	r.mu.Unlock()
}

// Snapshot devuelve el conjunto actual ordenado, listo para persistir.
func (r *ExclusionRegistry) Snapshot() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.ids))
	for id := range r.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
