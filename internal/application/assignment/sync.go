package assignment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jhoicas/flota-api/internal/domain/repository"
	"github.com/jhoicas/flota-api/pkg/logger"
)

// SyncAdapter única frontera de efectos del motor: traduce mutaciones en
// escrituras de un solo campo contra el directorio de usuarios y en
// sobreescrituras del documento de exclusiones.
//
// A diferencia del diseño original (fire-and-forget), cada escritura devuelve
// su resultado para que el motor pueda revertir la mutación local si falla.
type SyncAdapter struct {
	directory  repository.UserDirectory
	exclusions repository.ExclusionStore
	log        *logger.Logger
}

// NewSyncAdapter construye el adaptador.
func NewSyncAdapter(directory repository.UserDirectory, exclusions repository.ExclusionStore, log *logger.Logger) *SyncAdapter {
	return &SyncAdapter{directory: directory, exclusions: exclusions, log: log}
}

// SetUserWarehouse escribe assigned_warehouse_id del usuario (nil = disponible).
// Cada mutación se registra con un op_id para correlacionar en los logs.
func (s *SyncAdapter) SetUserWarehouse(ctx context.Context, userID string, warehouseID *int64) error {
	opID := uuid.New().String()
	ev := s.log.Debug().Str("op_id", opID).Str("user_id", userID)
	if warehouseID != nil {
		ev = ev.Int64("warehouse_id", *warehouseID)
	}
	ev.Msg("escribiendo asignación en el directorio")

	if err := s.directory.SetAssignedWarehouse(ctx, userID, warehouseID); err != nil {
		s.log.Error().Err(err).Str("op_id", opID).Str("user_id", userID).
			Msg("escritura de asignación falló")
		return fmt.Errorf("escribir asignación de %s: %w", userID, err)
	}
	return nil
}

// ClearUserWarehouse limpia la asignación persistida sin propagar el error
// (fire-and-log). Se usa durante la reconciliación para corregir referencias
// obsoletas; un fallo deja el valor viejo y se reintenta en la próxima
// reconciliación.
func (s *SyncAdapter) ClearUserWarehouse(ctx context.Context, userID string) {
	if err := s.directory.SetAssignedWarehouse(ctx, userID, nil); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).
			Msg("no se pudo limpiar la asignación obsoleta")
	}
}

// SetExclusionSet sobreescribe el documento de exclusiones completo.
func (s *SyncAdapter) SetExclusionSet(ctx context.Context, ids []int64) error {
	opID := uuid.New().String()
	s.log.Debug().Str("op_id", opID).Ints64("excluded_ids", ids).
		Msg("persistiendo conjunto de exclusiones")

	if err := s.exclusions.Replace(ctx, ids); err != nil {
		s.log.Error().Err(err).Str("op_id", opID).
			Msg("persistencia de exclusiones falló")
		return fmt.Errorf("persistir exclusiones: %w", err)
	}
	return nil
}
