package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrUserNotFound         = errors.New("usuario no encontrado")
	ErrWarehouseNotFound    = errors.New("camioneta no encontrada")
	ErrWarehouseExcluded    = errors.New("camioneta excluida de asignación")
	ErrCapacityFull         = errors.New("camioneta sin cupo disponible")
	ErrNotAssigned          = errors.New("el usuario no tiene camioneta asignada")
	ErrConfirmationRequired = errors.New("la operación requiere confirmación")
	ErrRemoteWrite          = errors.New("fallo al persistir en el almacén remoto")
	ErrInvalidInput         = errors.New("entrada inválida")
)
