package assignment

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jhoicas/flota-api/internal/domain"
	"github.com/jhoicas/flota-api/internal/domain/entity"
	"github.com/jhoicas/flota-api/pkg/logger"
)

// ResetConfirmationPhrase frase exacta que el operador debe escribir para
// ejecutar el reinicio masivo de asignaciones.
const ResetConfirmationPhrase = "REINICIAR ASIGNACIONES"

// Engine motor de asignación: dueño de la proyección en memoria de qué
// usuario está asignado a qué camioneta y quién está disponible.
//
// Invariantes que mantiene por construcción:
//   - cupo: ninguna camioneta no excluida supera entity.WarehouseCapacity;
//   - partición: cada usuario está en exactamente un lugar (disponible o una
//     sola camioneta);
//   - exclusión: una camioneta excluida siempre tiene cero asignados, y no
//     se excluye una camioneta ocupada sin evacuarla antes.
//
// Las operaciones son no interactivas: cuando una requiere consentimiento
// del operador devuelven domain.ErrConfirmationRequired salvo que el
// llamador pase confirmed=true. La capa HTTP es quien conversa con el
// operador; el motor nunca bloquea esperando un diálogo.
//
// Cada mutación aplica el cambio local y emite la escritura remota a través
// del SyncAdapter; si la escritura falla, el cambio local se revierte y la
// operación retorna domain.ErrRemoteWrite.
type Engine struct {
	mu       sync.Mutex
	catalog  *CatalogCache
	registry *ExclusionRegistry
	remote   *SyncAdapter
	log      *logger.Logger

	// users último snapshot del directorio (con optimismo local aplicado).
	users map[string]*entity.User
	// assignedTo proyección usuario → camioneta.
	assignedTo map[string]int64
	// byWarehouse proyección camioneta → usuarios en orden de asignación.
	byWarehouse map[int64][]string
}

// NewEngine construye el motor con sus colaboradores inyectados.
// La caché de catálogo y el registro de exclusiones son campos explícitos
// del motor: no hay estado ambiente y el motor es testeable sin red.
func NewEngine(catalog *CatalogCache, registry *ExclusionRegistry, remote *SyncAdapter, log *logger.Logger) *Engine {
	return &Engine{
		catalog:     catalog,
		registry:    registry,
		remote:      remote,
		log:         log,
		users:       make(map[string]*entity.User),
		assignedTo:  make(map[string]int64),
		byWarehouse: make(map[int64][]string),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Reconciliación
// ──────────────────────────────────────────────────────────────────────────────

// Reconcile reemplaza el snapshot de usuarios y reconstruye la proyección
// desde cero. El valor remoto es autoritativo: cualquier optimismo local
// pendiente queda sobrescrito.
//
// Un usuario cuya camioneta persistida ya no existe, está excluida o llegó
// con sobrecupo pasa a disponibles y su campo remoto se limpia con una
// escritura fire-and-log (ver DESIGN.md).
func (e *Engine) Reconcile(ctx context.Context, snapshot []*entity.User) {
	e.mu.Lock()
	users := make(map[string]*entity.User, len(snapshot))
	for _, u := range snapshot {
		cp := *u
		users[cp.ID] = &cp
	}
	e.users = users
	stale := e.rebuildLocked()
	assigned := len(e.assignedTo)
	e.mu.Unlock()

	for _, id := range stale {
		e.remote.ClearUserWarehouse(ctx, id)
	}

	e.log.Debug().
		Int("users", len(snapshot)).
		Int("assigned", assigned).
		Int("stale_cleared", len(stale)).
		Msg("proyección reconciliada")
}

// RefreshCatalog descarga el catálogo completo y reconstruye la proyección
// contra el nuevo snapshot (carga inicial y refresco manual del operador).
func (e *Engine) RefreshCatalog(ctx context.Context) error {
	if err := e.catalog.Refresh(ctx); err != nil {
		return fmt.Errorf("refrescar catálogo: %w", err)
	}

	e.mu.Lock()
	stale := e.rebuildLocked()
	e.mu.Unlock()

	for _, id := range stale {
		e.remote.ClearUserWarehouse(ctx, id)
	}
	return nil
}

// rebuildLocked reconstruye assignedTo/byWarehouse como función pura de
// (catálogo, exclusiones, campo persistido por usuario). Devuelve los IDs de
// usuarios con referencia obsoleta o con sobrecupo, que quedan disponibles.
func (e *Engine) rebuildLocked() []string {
	byWarehouse := make(map[int64][]string)
	assignedTo := make(map[string]int64)
	var stale []string

	// Orden determinista (nombre, luego ID) para que los sobrecupos remotos
	// se resuelvan siempre igual.
	for _, u := range e.sortedUsersLocked() {
		if u.AssignedWarehouseID == nil {
			continue
		}
		id := *u.AssignedWarehouseID
		_, known := e.catalog.Get(id)
		switch {
		case !known || e.registry.IsExcluded(id):
			stale = append(stale, u.ID)
		case len(byWarehouse[id]) >= entity.WarehouseCapacity:
			stale = append(stale, u.ID)
		default:
			byWarehouse[id] = append(byWarehouse[id], u.ID)
			assignedTo[u.ID] = id
		}
	}

	e.byWarehouse = byWarehouse
	e.assignedTo = assignedTo
	return stale
}

func (e *Engine) sortedUsersLocked() []*entity.User {
	list := make([]*entity.User, 0, len(e.users))
	for _, u := range e.users {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// ──────────────────────────────────────────────────────────────────────────────
// Operaciones del operador
// ──────────────────────────────────────────────────────────────────────────────

// Assign asigna el usuario a la camioneta indicada.
// Si el usuario ya tiene otra camioneta se trata como reasignación y exige
// confirmed=true. Asignar a la camioneta que ya tiene es un no-op.
func (e *Engine) Assign(ctx context.Context, userID string, warehouseID int64, confirmed bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, ok := e.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if err := e.validateTargetLocked(warehouseID); err != nil {
		return err
	}

	prev, had := e.assignedTo[userID]
	if had && prev == warehouseID {
		return nil
	}
	if len(e.byWarehouse[warehouseID]) >= entity.WarehouseCapacity {
		return domain.ErrCapacityFull
	}
	if had && !confirmed {
		return domain.ErrConfirmationRequired
	}

	restore := e.captureLocked()
	e.detachLocked(userID)
	e.attachLocked(userID, warehouseID)
	wid := warehouseID
	u.AssignedWarehouseID = &wid

	if err := e.remote.SetUserWarehouse(ctx, userID, &wid); err != nil {
		e.restoreLocked(restore)
		return fmt.Errorf("%w: %s", domain.ErrRemoteWrite, err)
	}
	return nil
}

// Unassign retira al usuario de su camioneta actual y lo deja disponible.
func (e *Engine) Unassign(ctx context.Context, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, ok := e.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	_, had := e.assignedTo[userID]
	if !had && u.AssignedWarehouseID == nil {
		return domain.ErrNotAssigned
	}

	restore := e.captureLocked()
	e.detachLocked(userID)
	u.AssignedWarehouseID = nil

	if err := e.remote.SetUserWarehouse(ctx, userID, nil); err != nil {
		e.restoreLocked(restore)
		return fmt.Errorf("%w: %s", domain.ErrRemoteWrite, err)
	}
	return nil
}

// Move mueve al usuario de una camioneta a otra en un solo paso lógico
// (evento de fin de arrastre). Aplica la misma precondición de cupo que
// Assign y la misma semántica de confirmación cuando el destino difiere de
// una asignación previa todavía registrada. Emite exactamente una escritura
// remota para el usuario.
func (e *Engine) Move(ctx context.Context, userID string, fromWarehouseID, toWarehouseID int64, confirmed bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, ok := e.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if err := e.validateTargetLocked(toWarehouseID); err != nil {
		return err
	}

	cur, had := e.assignedTo[userID]
	if had && cur == toWarehouseID {
		return nil
	}
	if len(e.byWarehouse[toWarehouseID]) >= entity.WarehouseCapacity {
		return domain.ErrCapacityFull
	}
	if had && !confirmed {
		return domain.ErrConfirmationRequired
	}
	if had && cur != fromWarehouseID {
		// El arrastre se originó sobre una vista vieja; manda la proyección.
		e.log.Debug().Str("user_id", userID).
			Int64("drag_from", fromWarehouseID).Int64("current", cur).
			Msg("origen del arrastre desactualizado")
	}

	restore := e.captureLocked()
	e.detachLocked(userID)
	e.attachLocked(userID, toWarehouseID)
	wid := toWarehouseID
	u.AssignedWarehouseID = &wid

	if err := e.remote.SetUserWarehouse(ctx, userID, &wid); err != nil {
		e.restoreLocked(restore)
		return fmt.Errorf("%w: %s", domain.ErrRemoteWrite, err)
	}
	return nil
}

// ToggleExclusion alterna la exclusión de la camioneta. Ambas direcciones
// exigen confirmed=true.
//
// Al excluir una camioneta ocupada primero se evacúa a todos sus asignados
// (una escritura remota por usuario) y después se persiste el registro de
// exclusiones: dos escrituras secuenciales, no atómicas. Si una evacuación
// falla, el estado local se revierte y la exclusión no se aplica; las
// evacuaciones remotas ya confirmadas se corrigen en la próxima
// reconciliación con el directorio.
func (e *Engine) ToggleExclusion(ctx context.Context, warehouseID int64, confirmed bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, known := e.catalog.Get(warehouseID); !known {
		return domain.ErrWarehouseNotFound
	}
	if !confirmed {
		return domain.ErrConfirmationRequired
	}

	if e.registry.IsExcluded(warehouseID) {
		// Volver a incluir: queda asignable con lista vacía.
		e.registry.Remove(warehouseID)
		if err := e.remote.SetExclusionSet(ctx, e.registry.Snapshot()); err != nil {
			e.registry.Add(warehouseID)
			return fmt.Errorf("%w: %s", domain.ErrRemoteWrite, err)
		}
		e.log.Info().Int64("warehouse_id", warehouseID).Msg("camioneta habilitada para asignación")
		return nil
	}

	// Excluir: evacuar antes de tocar el registro.
	evacuees := append([]string(nil), e.byWarehouse[warehouseID]...)
	restore := e.captureLocked()
	for _, uid := range evacuees {
		e.detachLocked(uid)
		e.users[uid].AssignedWarehouseID = nil
		if err := e.remote.SetUserWarehouse(ctx, uid, nil); err != nil {
			e.restoreLocked(restore)
			return fmt.Errorf("%w: %s", domain.ErrRemoteWrite, err)
		}
	}

	e.registry.Add(warehouseID)
	if err := e.remote.SetExclusionSet(ctx, e.registry.Snapshot()); err != nil {
		e.registry.Remove(warehouseID)
		return fmt.Errorf("%w: %s", domain.ErrRemoteWrite, err)
	}

	e.log.Info().Int64("warehouse_id", warehouseID).
		Int("evacuated", len(evacuees)).
		Msg("camioneta excluida de asignación")
	return nil
}

// ResetAll evacúa a todos los usuarios asignados del sistema en un lote.
// Operación destructiva y sin deshacer: exige la frase de confirmación
// exacta (ResetConfirmationPhrase). Es idempotente: repetirla sin asignados
// no emite escrituras.
func (e *Engine) ResetAll(ctx context.Context, phrase string) error {
	if phrase != ResetConfirmationPhrase {
		return domain.ErrConfirmationRequired
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.assignedTo))
	for uid := range e.assignedTo {
		ids = append(ids, uid)
	}
	sort.Strings(ids)

	var failed int
	for _, uid := range ids {
		if err := e.remote.SetUserWarehouse(ctx, uid, nil); err != nil {
			// El usuario conserva su asignación local; se reintenta en el
			// próximo reinicio o lo corrige la reconciliación.
			failed++
			continue
		}
		e.detachLocked(uid)
		e.users[uid].AssignedWarehouseID = nil
	}

	e.log.Info().Int("unassigned", len(ids)-failed).Int("failed", failed).
		Msg("reinicio masivo de asignaciones")
	if failed > 0 {
		return fmt.Errorf("%w: %d usuarios sin limpiar", domain.ErrRemoteWrite, failed)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Consultas para la capa de confirmación (la decisión vive en el llamador)
// ──────────────────────────────────────────────────────────────────────────────

// CurrentAssignment devuelve la camioneta actualmente proyectada para el
// usuario, si tiene una.
func (e *Engine) CurrentAssignment(userID string) (*entity.Warehouse, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.assignedTo[userID]
	if !ok {
		return nil, false
	}
	w, known := e.catalog.Get(id)
	if !known {
		return nil, false
	}
	return w, true
}

// AssignedCount cantidad de usuarios asignados a la camioneta (para el
// mensaje de confirmación de exclusión).
func (e *Engine) AssignedCount(warehouseID int64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.byWarehouse[warehouseID])
}

// IsExcluded indica si la camioneta está excluida.
func (e *Engine) IsExcluded(warehouseID int64) bool {
	return e.registry.IsExcluded(warehouseID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Mutación local y reversa
// ──────────────────────────────────────────────────────────────────────────────

// engineState copia del estado mutable para revertir una mutación fallida.
type engineState struct {
	assignedTo  map[string]int64
	byWarehouse map[int64][]string
	fields      map[string]*int64 // AssignedWarehouseID por usuario
}

func (e *Engine) captureLocked() engineState {
	st := engineState{
		assignedTo:  make(map[string]int64, len(e.assignedTo)),
		byWarehouse: make(map[int64][]string, len(e.byWarehouse)),
		fields:      make(map[string]*int64, len(e.users)),
	}
	for k, v := range e.assignedTo {
		st.assignedTo[k] = v
	}
	for k, v := range e.byWarehouse {
		st.byWarehouse[k] = append([]string(nil), v...)
	}
	for k, u := range e.users {
		if u.AssignedWarehouseID != nil {
			v := *u.AssignedWarehouseID
			st.fields[k] = &v
		} else {
			st.fields[k] = nil
		}
	}
	return st
}

func (e *Engine) restoreLocked(st engineState) {
	e.assignedTo = st.assignedTo
	e.byWarehouse = st.byWarehouse
	for k, v := range st.fields {
		if u, ok := e.users[k]; ok {
			u.AssignedWarehouseID = v
		}
	}
}

// detachLocked saca al usuario de su lista actual, si está en alguna.
func (e *Engine) detachLocked(userID string) {
	id, ok := e.assignedTo[userID]
	if !ok {
		return
	}
	delete(e.assignedTo, userID)
	list := e.byWarehouse[id]
	for i, uid := range list {
		if uid == userID {
			e.byWarehouse[id] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
}

// attachLocked agrega al usuario al final de la lista de la camioneta.
func (e *Engine) attachLocked(userID string, warehouseID int64) {
	e.assignedTo[userID] = warehouseID
	e.byWarehouse[warehouseID] = append(e.byWarehouse[warehouseID], userID)
}

// validateTargetLocked precondiciones comunes de destino: conocida y no excluida.
func (e *Engine) validateTargetLocked(warehouseID int64) error {
	if _, known := e.catalog.Get(warehouseID); !known {
		return domain.ErrWarehouseNotFound
	}
	if e.registry.IsExcluded(warehouseID) {
		return domain.ErrWarehouseExcluded
	}
	return nil
}
