package assignment

import (
	"context"
	"sync"

	"github.com/jhoicas/flota-api/internal/domain/entity"
	"github.com/jhoicas/flota-api/internal/domain/repository"
)

// CatalogCache snapshot en memoria del catálogo de camionetas.
// Es un campo explícito del motor, no un estado ambiente: se inyecta y se
// puede poblar en tests sin red. Cada Refresh reemplaza el snapshot completo.
type CatalogCache struct {
	fetcher repository.WarehouseCatalog

	mu    sync.RWMutex
	byID  map[int64]*entity.Warehouse
	order []int64 // orden de llegada del servicio de catálogo
}

// NewCatalogCache construye la caché sobre el puerto de catálogo.
func NewCatalogCache(fetcher repository.WarehouseCatalog) *CatalogCache {
	return &CatalogCache{
		fetcher: fetcher,
		byID:    make(map[int64]*entity.Warehouse),
	}
}

// Refresh descarga el catálogo completo y reemplaza el snapshot.
// Si la descarga falla, el snapshot anterior se conserva.
func (c *CatalogCache) Refresh(ctx context.Context) error {
	list, err := c.fetcher.FetchAll(ctx)
	if err != nil {
		return err
	}
	byID := make(map[int64]*entity.Warehouse, len(list))
	order := make([]int64, 0, len(list))
	for _, w := range list {
		if _, dup := byID[w.ID]; dup {
			continue
		}
		byID[w.ID] = w
		order = append(order, w.ID)
	}

	c.mu.Lock()
	c.byID = byID
	c.order = order
	c.mu.Unlock()
	return nil
}

// Get devuelve la camioneta por ID si existe en el último snapshot.
func (c *CatalogCache) Get(id int64) (*entity.Warehouse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.byID[id]
	return w, ok
}

// All devuelve las camionetas en el orden entregado por el catálogo.
func (c *CatalogCache) All() []*entity.Warehouse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list := make([]*entity.Warehouse, 0, len(c.order))
	for _, id := range c.order {
		list = append(list, c.byID[id])
	}
	return list
}

// Len cantidad de camionetas en el snapshot actual.
func (c *CatalogCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}
