package repository

import "context"

// ExclusionStore define el puerto sobre el documento de configuración que
// persiste el conjunto de camionetas excluidas. Un único registro: lectura
// al arranque y sobreescritura total en cada cambio (last writer wins, sin
// versionado ni detección de conflictos).
type ExclusionStore interface {
	// Load lee el documento. found=false si aún no existe (primer arranque).
	Load(ctx context.Context) (ids []int64, found bool, err error)

	// Replace sobreescribe el conjunto completo.
	Replace(ctx context.Context, ids []int64) error
}
