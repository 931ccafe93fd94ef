package repository

import (
	"context"

	"github.com/jhoicas/flota-api/internal/domain/entity"
)

// UserDirectory define el puerto sobre el directorio de usuarios (DIP):
// colección de documentos reactiva, con clave el ID de usuario.
type UserDirectory interface {
	// List devuelve el snapshot completo del directorio.
	List(ctx context.Context) ([]*entity.User, error)

	// SetAssignedWarehouse escribe el único campo que este subsistema muta:
	// assigned_warehouse_id (nil = disponible). Exactamente una escritura
	// por usuario afectado en cada operación del motor.
	SetAssignedWarehouse(ctx context.Context, userID string, warehouseID *int64) error

	// Subscribe bloquea entregando snapshots completos del directorio cada
	// vez que cambia (o al vencer el intervalo de sondeo de respaldo).
	// Retorna cuando ctx se cancela.
	Subscribe(ctx context.Context, onSnapshot func([]*entity.User)) error
}
