package repository

import (
	"context"

	"github.com/jhoicas/flota-api/internal/domain/entity"
)

// WarehouseCatalog define el puerto de lectura del servicio de catálogo de
// inventario (DIP). Solo lectura: el catálogo es la fuente de identidad y
// stock de las camionetas.
type WarehouseCatalog interface {
	// FetchAll descarga la lista completa de camionetas. Sin paginación:
	// cada llamada reemplaza el snapshot anterior.
	FetchAll(ctx context.Context) ([]*entity.Warehouse, error)
}
