package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/flota-api/internal/domain/repository"
)

var _ repository.ExclusionStore = (*ExclusionStoreRepo)(nil)

// ExclusionStoreRepo implementación del puerto ExclusionStore: el documento
// de configuración es una única fila con el conjunto de IDs excluidos en
// jsonb. Sobreescritura total en cada cambio, sin versionado.
type ExclusionStoreRepo struct {
	pool *pgxpool.Pool
}

// NewExclusionStoreRepository construye el adaptador del documento de exclusiones.
func NewExclusionStoreRepository(pool *pgxpool.Pool) *ExclusionStoreRepo {
	return &ExclusionStoreRepo{pool: pool}
}

// Load lee el documento. found=false si la fila no existe todavía.
func (r *ExclusionStoreRepo) Load(ctx context.Context) ([]int64, bool, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT excluded_warehouse_ids FROM assignment_config WHERE id = 1`,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("leer assignment_config: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, false, fmt.Errorf("decodificar exclusiones: %w", err)
	}
	return ids, true, nil
}

// Replace sobreescribe el conjunto completo (upsert de la única fila).
func (r *ExclusionStoreRepo) Replace(ctx context.Context, ids []int64) error {
	if ids == nil {
		ids = []int64{} // jsonb '[]', nunca null
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("codificar exclusiones: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO assignment_config (id, excluded_warehouse_ids, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE
		SET excluded_warehouse_ids = EXCLUDED.excluded_warehouse_ids, updated_at = now()`,
		raw,
	)
	if err != nil {
		return fmt.Errorf("persistir assignment_config: %w", err)
	}
	return nil
}
