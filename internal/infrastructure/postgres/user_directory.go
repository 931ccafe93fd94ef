package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/flota-api/internal/domain"
	"github.com/jhoicas/flota-api/internal/domain/entity"
	"github.com/jhoicas/flota-api/internal/domain/repository"
	"github.com/jhoicas/flota-api/pkg/logger"
)

// notifyChannel canal de pg_notify disparado por el trigger de directory_users
// (ver migrations/001_init.sql).
const notifyChannel = "directory_users_changed"

var _ repository.UserDirectory = (*UserDirectoryRepo)(nil)

// UserDirectoryRepo implementación del puerto UserDirectory sobre PostgreSQL.
// Las lecturas vivas usan LISTEN/NOTIFY con un sondeo de respaldo por si se
// pierde una notificación o la conexión de escucha se recicla.
type UserDirectoryRepo struct {
	pool *pgxpool.Pool
	log  *logger.Logger
	// pollInterval intervalo del sondeo de respaldo de Subscribe.
	pollInterval time.Duration
}

// NewUserDirectoryRepository construye el adaptador del directorio.
func NewUserDirectoryRepository(pool *pgxpool.Pool, log *logger.Logger, pollInterval time.Duration) *UserDirectoryRepo {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &UserDirectoryRepo{pool: pool, log: log, pollInterval: pollInterval}
}

// List devuelve el snapshot completo del directorio.
func (r *UserDirectoryRepo) List(ctx context.Context) ([]*entity.User, error) {
	query := `
		SELECT id, name, email, phone, assigned_warehouse_id
		FROM directory_users ORDER BY name, id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list directory users: %w", err)
	}
	defer rows.Close()

	var list []*entity.User
	for rows.Next() {
		var u entity.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.AssignedWarehouseID); err != nil {
			return nil, fmt.Errorf("scan directory user: %w", err)
		}
		list = append(list, &u)
	}
	return list, rows.Err()
}

// SetAssignedWarehouse actualiza el único campo que este subsistema escribe.
// El trigger de la tabla emite la notificación que hace que el snapshot del
// propio escritor vuelva por la suscripción.
func (r *UserDirectoryRepo) SetAssignedWarehouse(ctx context.Context, userID string, warehouseID *int64) error {
	query := `
		UPDATE directory_users SET assigned_warehouse_id = $2, updated_at = now()
		WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, userID, warehouseID)
	if err != nil {
		return fmt.Errorf("update assigned warehouse: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Subscribe escucha el canal de notificaciones y entrega un snapshot
// completo en cada cambio; si no llega ninguna notificación dentro del
// intervalo de sondeo, relee igualmente. Bloquea hasta que ctx se cancela.
func (r *UserDirectoryRepo) Subscribe(ctx context.Context, onSnapshot func([]*entity.User)) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("adquirir conexión de escucha: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("LISTEN %s: %w", notifyChannel, err)
	}

	for {
		waitCtx, cancel := context.WithTimeout(ctx, r.pollInterval)
		_, err := conn.Conn().WaitForNotification(waitCtx)
		cancel()

		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil && !errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("esperar notificación: %w", err)
		case err != nil:
			// Venció el sondeo de respaldo: releer de todos modos.
		}

		users, err := r.List(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.log.Warn().Err(err).Msg("relectura del directorio falló; se reintenta en el próximo ciclo")
			continue
		}
		onSnapshot(users)
	}
}
