package assignment_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/flota-api/internal/application/assignment"
	"github.com/jhoicas/flota-api/internal/application/dto"
	"github.com/jhoicas/flota-api/internal/domain"
	"github.com/jhoicas/flota-api/internal/domain/entity"
	"github.com/jhoicas/flota-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes de los puertos
// ──────────────────────────────────────────────────────────────────────────────

type fakeCatalog struct {
	warehouses []*entity.Warehouse
	err        error
}

func (f *fakeCatalog) FetchAll(ctx context.Context) ([]*entity.Warehouse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.warehouses, nil
}

// directoryWrite una escritura registrada contra el directorio.
type directoryWrite struct {
	userID      string
	warehouseID *int64
}

type fakeDirectory struct {
	mu      sync.Mutex
	users   []*entity.User
	writes  []directoryWrite
	failFor map[string]bool // userID → la escritura falla
}

func (f *fakeDirectory) List(ctx context.Context) ([]*entity.User, error) {
	return f.users, nil
}

func (f *fakeDirectory) SetAssignedWarehouse(ctx context.Context, userID string, warehouseID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[userID] {
		return errors.New("directorio no disponible")
	}
	f.writes = append(f.writes, directoryWrite{userID: userID, warehouseID: warehouseID})
	return nil
}

func (f *fakeDirectory) Subscribe(ctx context.Context, onSnapshot func([]*entity.User)) error {
	<-ctx.Done()
	return nil
}

// writesFor escrituras registradas para un usuario.
func (f *fakeDirectory) writesFor(userID string) []directoryWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []directoryWrite
	for _, w := range f.writes {
		if w.userID == userID {
			out = append(out, w)
		}
	}
	return out
}

func (f *fakeDirectory) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

type fakeExclusionStore struct {
	mu       sync.Mutex
	ids      []int64
	found    bool
	err      error
	replaced [][]int64
}

func (f *fakeExclusionStore) Load(ctx context.Context) ([]int64, bool, error) {
	return f.ids, f.found, nil
}

func (f *fakeExclusionStore) Replace(ctx context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.replaced = append(f.replaced, ids)
	f.ids = ids
	f.found = true
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

func wid(id int64) *int64 { return &id }

func quietLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "production", Level: "error"})
}

func testWarehouses() []*entity.Warehouse {
	return []*entity.Warehouse{
		{ID: 1, Name: "Camioneta Norte", StockTotal: 120},
		{ID: 2, Name: "Camioneta Sur", StockTotal: 80},
		{ID: 3, Name: "Camioneta Centro", StockTotal: 45},
	}
}

func testUsers() []*entity.User {
	return []*entity.User{
		{ID: "u1", Name: "Ana", Email: "ana@flota.co", Phone: "300111"},
		{ID: "u2", Name: "Bruno", Email: "bruno@flota.co", Phone: "300222"},
		{ID: "u3", Name: "Carla", Email: "carla@flota.co", Phone: "300333"},
		{ID: "u4", Name: "Diego", Email: "diego@flota.co", Phone: "300444"},
	}
}

// newTestEngine arma un motor con catálogo y directorio falsos ya reconciliados.
func newTestEngine(t *testing.T, dir *fakeDirectory, store *fakeExclusionStore) *assignment.Engine {
	t.Helper()
	ctx := context.Background()

	cache := assignment.NewCatalogCache(&fakeCatalog{warehouses: testWarehouses()})
	registry := assignment.NewExclusionRegistry(store)
	require.NoError(t, registry.Load(ctx, 0))

	adapter := assignment.NewSyncAdapter(dir, store, quietLogger())
	engine := assignment.NewEngine(cache, registry, adapter, quietLogger())
	require.NoError(t, engine.RefreshCatalog(ctx))
	engine.Reconcile(ctx, dir.users)
	return engine
}

func boardWarehouse(t *testing.T, b *dto.BoardResponse, id int64) dto.WarehouseBoardItem {
	t.Helper()
	for _, w := range b.Warehouses {
		if w.ID == id {
			return w
		}
	}
	t.Fatalf("camioneta %d no está en el tablero", id)
	return dto.WarehouseBoardItem{}
}

func assignedIDs(item dto.WarehouseBoardItem) []string {
	ids := make([]string, 0, len(item.Users))
	for _, u := range item.Users {
		ids = append(ids, u.ID)
	}
	return ids
}

func availableIDs(b *dto.BoardResponse) []string {
	ids := make([]string, 0, len(b.Available))
	for _, u := range b.Available {
		ids = append(ids, u.ID)
	}
	return ids
}

// ──────────────────────────────────────────────────────────────────────────────
// Assign
// ──────────────────────────────────────────────────────────────────────────────

// Escenario A: usuario disponible a camioneta con cupo.
func TestAssign_UsuarioDisponibleACamionetaConCupo(t *testing.T) {
	dir := &fakeDirectory{users: testUsers()}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	require.NoError(t, engine.Assign(context.Background(), "u1", 1, false))

	board := engine.Board()
	assert.Equal(t, []string{"u1"}, assignedIDs(boardWarehouse(t, board, 1)),
		"la camioneta 1 debe tener solo a u1")
	assert.NotContains(t, availableIDs(board), "u1",
		"u1 no debe seguir en disponibles")

	writes := dir.writesFor("u1")
	require.Len(t, writes, 1, "debe haber exactamente una escritura remota")
	require.NotNil(t, writes[0].warehouseID)
	assert.Equal(t, int64(1), *writes[0].warehouseID)
}

// Escenario B: camioneta llena rechaza al cuarto usuario sin cambiar estado.
func TestAssign_RechazaSinCupo(t *testing.T) {
	users := testUsers()
	users[0].AssignedWarehouseID = wid(1)
	users[1].AssignedWarehouseID = wid(1)
	users[2].AssignedWarehouseID = wid(1)
	dir := &fakeDirectory{users: users}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	err := engine.Assign(context.Background(), "u4", 1, false)
	assert.ErrorIs(t, err, domain.ErrCapacityFull)

	board := engine.Board()
	assert.Len(t, boardWarehouse(t, board, 1).Users, 3,
		"la camioneta 1 debe seguir con 3 asignados")
	assert.Contains(t, availableIDs(board), "u4")
	assert.Zero(t, dir.writeCount(), "un rechazo no debe emitir escrituras")
}

func TestAssign_RechazaCamionetaExcluida(t *testing.T) {
	dir := &fakeDirectory{users: testUsers()}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true, ids: []int64{2}})

	err := engine.Assign(context.Background(), "u1", 2, false)
	assert.ErrorIs(t, err, domain.ErrWarehouseExcluded)
	assert.Zero(t, dir.writeCount())
}

func TestAssign_RechazaCamionetaDesconocida(t *testing.T) {
	dir := &fakeDirectory{users: testUsers()}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	err := engine.Assign(context.Background(), "u1", 99, false)
	assert.ErrorIs(t, err, domain.ErrWarehouseNotFound)
	assert.Zero(t, dir.writeCount())
}

// P5: reasignar sin confirmación no debe pisar la asignación vigente.
func TestAssign_ReasignacionRequiereConfirmacion(t *testing.T) {
	users := testUsers()
	users[0].AssignedWarehouseID = wid(1)
	dir := &fakeDirectory{users: users}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	err := engine.Assign(context.Background(), "u1", 2, false)
	assert.ErrorIs(t, err, domain.ErrConfirmationRequired)
	assert.Equal(t, []string{"u1"}, assignedIDs(boardWarehouse(t, engine.Board(), 1)),
		"sin confirmación la asignación vigente no cambia")
	assert.Zero(t, dir.writeCount())

	// Con confirmación sí procede, con una única escritura.
	require.NoError(t, engine.Assign(context.Background(), "u1", 2, true))
	board := engine.Board()
	assert.Empty(t, boardWarehouse(t, board, 1).Users)
	assert.Equal(t, []string{"u1"}, assignedIDs(boardWarehouse(t, board, 2)))
	require.Len(t, dir.writesFor("u1"), 1)
	assert.Equal(t, int64(2), *dir.writesFor("u1")[0].warehouseID)
}

func TestAssign_MismaCamionetaEsNoOp(t *testing.T) {
	users := testUsers()
	users[0].AssignedWarehouseID = wid(1)
	dir := &fakeDirectory{users: users}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	require.NoError(t, engine.Assign(context.Background(), "u1", 1, false))
	assert.Zero(t, dir.writeCount(), "reasignar a la misma camioneta no escribe")
}

func TestAssign_UsuarioDesconocido(t *testing.T) {
	dir := &fakeDirectory{users: testUsers()}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	err := engine.Assign(context.Background(), "nadie", 1, false)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

// La escritura remota falla: la mutación local se revierte por completo.
func TestAssign_RevierteSiFallaLaEscritura(t *testing.T) {
	dir := &fakeDirectory{users: testUsers(), failFor: map[string]bool{"u1": true}}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	err := engine.Assign(context.Background(), "u1", 1, false)
	assert.ErrorIs(t, err, domain.ErrRemoteWrite)

	board := engine.Board()
	assert.Empty(t, boardWarehouse(t, board, 1).Users,
		"la camioneta debe quedar como antes del intento")
	assert.Contains(t, availableIDs(board), "u1",
		"u1 debe seguir disponible tras el rollback")
}

// ──────────────────────────────────────────────────────────────────────────────
// Unassign y Move
// ──────────────────────────────────────────────────────────────────────────────

func TestUnassign_DejaAlUsuarioDisponible(t *testing.T) {
	users := testUsers()
	users[0].AssignedWarehouseID = wid(1)
	dir := &fakeDirectory{users: users}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	require.NoError(t, engine.Unassign(context.Background(), "u1"))

	board := engine.Board()
	assert.Empty(t, boardWarehouse(t, board, 1).Users)
	assert.Contains(t, availableIDs(board), "u1")

	writes := dir.writesFor("u1")
	require.Len(t, writes, 1)
	assert.Nil(t, writes[0].warehouseID, "la escritura debe poner el campo en null")
}

func TestUnassign_SinAsignacionPrevia(t *testing.T) {
	dir := &fakeDirectory{users: testUsers()}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	err := engine.Unassign(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrNotAssigned)
	assert.Zero(t, dir.writeCount())
}

// Escenario E: arrastre de W1 a W2 en un solo paso lógico.
func TestMove_ArrastreEntreCamionetas(t *testing.T) {
	users := testUsers()
	users[0].AssignedWarehouseID = wid(1)
	dir := &fakeDirectory{users: users}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	require.NoError(t, engine.Move(context.Background(), "u1", 1, 2, true))

	board := engine.Board()
	assert.NotContains(t, assignedIDs(boardWarehouse(t, board, 1)), "u1")
	assert.Equal(t, []string{"u1"}, assignedIDs(boardWarehouse(t, board, 2)))

	writes := dir.writesFor("u1")
	require.Len(t, writes, 1, "exactamente una escritura remota por movimiento")
	assert.Equal(t, int64(2), *writes[0].warehouseID)
}

func TestMove_RespetaCupoDelDestino(t *testing.T) {
	users := testUsers()
	users[0].AssignedWarehouseID = wid(1)
	users[1].AssignedWarehouseID = wid(2)
	users[2].AssignedWarehouseID = wid(2)
	users[3].AssignedWarehouseID = wid(2)
	dir := &fakeDirectory{users: users}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	err := engine.Move(context.Background(), "u1", 1, 2, true)
	assert.ErrorIs(t, err, domain.ErrCapacityFull)
	assert.Equal(t, []string{"u1"}, assignedIDs(boardWarehouse(t, engine.Board(), 1)),
		"el origen no cambia si el destino está lleno")
	assert.Zero(t, dir.writeCount())
}

func TestMove_DesdeDisponiblesNoRequiereConfirmacion(t *testing.T) {
	dir := &fakeDirectory{users: testUsers()}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	require.NoError(t, engine.Move(context.Background(), "u1", 0, 1, false))
	assert.Equal(t, []string{"u1"}, assignedIDs(boardWarehouse(t, engine.Board(), 1)))
}

func TestMove_ReasignacionRequiereConfirmacion(t *testing.T) {
	users := testUsers()
	users[0].AssignedWarehouseID = wid(1)
	dir := &fakeDirectory{users: users}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	err := engine.Move(context.Background(), "u1", 1, 2, false)
	assert.ErrorIs(t, err, domain.ErrConfirmationRequired)
	assert.Zero(t, dir.writeCount())
}

// ──────────────────────────────────────────────────────────────────────────────
// Exclusión
// ──────────────────────────────────────────────────────────────────────────────

// Escenario D + P3: excluir una camioneta ocupada evacúa primero a todos.
func TestToggleExclusion_EvacuaYExcluye(t *testing.T) {
	users := testUsers()
	users[0].AssignedWarehouseID = wid(3)
	users[1].AssignedWarehouseID = wid(3)
	dir := &fakeDirectory{users: users}
	store := &fakeExclusionStore{found: true}
	engine := newTestEngine(t, dir, store)

	require.NoError(t, engine.ToggleExclusion(context.Background(), 3, true))

	board := engine.Board()
	item := boardWarehouse(t, board, 3)
	assert.True(t, item.Excluded)
	assert.Empty(t, item.Users, "una camioneta excluida siempre tiene cero asignados")
	assert.Contains(t, availableIDs(board), "u1")
	assert.Contains(t, availableIDs(board), "u2")

	// Una escritura null por evacuado y luego la persistencia del registro.
	require.Len(t, dir.writesFor("u1"), 1)
	require.Len(t, dir.writesFor("u2"), 1)
	assert.Nil(t, dir.writesFor("u1")[0].warehouseID)
	require.NotEmpty(t, store.replaced)
	assert.Equal(t, []int64{3}, store.replaced[len(store.replaced)-1])

	// Y las asignaciones posteriores al destino excluido se rechazan.
	err := engine.Assign(context.Background(), "u3", 3, false)
	assert.ErrorIs(t, err, domain.ErrWarehouseExcluded)
}

// Escenario C: volver a incluir deja la camioneta asignable con lista vacía.
func TestToggleExclusion_VolverAIncluir(t *testing.T) {
	dir := &fakeDirectory{users: testUsers()}
	store := &fakeExclusionStore{found: true, ids: []int64{2}}
	engine := newTestEngine(t, dir, store)

	require.NoError(t, engine.ToggleExclusion(context.Background(), 2, true))
	assert.False(t, engine.IsExcluded(2))
	assert.Equal(t, []int64{}, store.replaced[len(store.replaced)-1])

	require.NoError(t, engine.Assign(context.Background(), "u1", 2, false))
	assert.Equal(t, []string{"u1"}, assignedIDs(boardWarehouse(t, engine.Board(), 2)))
}

func TestToggleExclusion_RequiereConfirmacionEnAmbasDirecciones(t *testing.T) {
	dir := &fakeDirectory{users: testUsers()}
	store := &fakeExclusionStore{found: true, ids: []int64{2}}
	engine := newTestEngine(t, dir, store)

	assert.ErrorIs(t, engine.ToggleExclusion(context.Background(), 1, false),
		domain.ErrConfirmationRequired, "excluir requiere confirmación")
	assert.ErrorIs(t, engine.ToggleExclusion(context.Background(), 2, false),
		domain.ErrConfirmationRequired, "incluir también requiere confirmación")
	assert.False(t, engine.IsExcluded(1))
	assert.True(t, engine.IsExcluded(2))
}

func TestToggleExclusion_RevierteSiFallaLaPersistencia(t *testing.T) {
	dir := &fakeDirectory{users: testUsers()}
	store := &fakeExclusionStore{found: true, err: errors.New("config no disponible")}
	engine := newTestEngine(t, dir, store)

	err := engine.ToggleExclusion(context.Background(), 1, true)
	assert.ErrorIs(t, err, domain.ErrRemoteWrite)
	assert.False(t, engine.IsExcluded(1), "el registro local no debe quedar excluido")
}

// ──────────────────────────────────────────────────────────────────────────────
// ResetAll
// ──────────────────────────────────────────────────────────────────────────────

// P4: el reinicio es idempotente y no duplica disponibles.
func TestResetAll_EvacuaTodoYEsIdempotente(t *testing.T) {
	users := testUsers()
	users[0].AssignedWarehouseID = wid(1)
	users[1].AssignedWarehouseID = wid(2)
	users[2].AssignedWarehouseID = wid(2)
	dir := &fakeDirectory{users: users}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	require.NoError(t, engine.ResetAll(context.Background(), assignment.ResetConfirmationPhrase))

	board := engine.Board()
	for _, w := range board.Warehouses {
		assert.Empty(t, w.Users, "ninguna camioneta debe quedar con asignados")
	}
	assert.ElementsMatch(t, []string{"u1", "u2", "u3", "u4"}, availableIDs(board),
		"todos los usuarios deben quedar disponibles exactamente una vez")
	writesAfterFirst := dir.writeCount()
	assert.Equal(t, 3, writesAfterFirst, "una escritura null por usuario asignado")

	// Segunda llamada: mismo estado final, cero escrituras nuevas.
	require.NoError(t, engine.ResetAll(context.Background(), assignment.ResetConfirmationPhrase))
	assert.Equal(t, writesAfterFirst, dir.writeCount())
	assert.ElementsMatch(t, []string{"u1", "u2", "u3", "u4"}, availableIDs(engine.Board()))
}

func TestResetAll_FraseIncorrecta(t *testing.T) {
	users := testUsers()
	users[0].AssignedWarehouseID = wid(1)
	dir := &fakeDirectory{users: users}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	err := engine.ResetAll(context.Background(), "reiniciar asignaciones")
	assert.ErrorIs(t, err, domain.ErrConfirmationRequired,
		"la frase debe coincidir exactamente, incluidas mayúsculas")
	assert.Equal(t, []string{"u1"}, assignedIDs(boardWarehouse(t, engine.Board(), 1)))
	assert.Zero(t, dir.writeCount())
}

// ──────────────────────────────────────────────────────────────────────────────
// Reconciliación
// ──────────────────────────────────────────────────────────────────────────────

// Una referencia a camioneta inexistente baja a disponibles y se limpia en remoto.
func TestReconcile_ReferenciaObsoletaPasaADisponible(t *testing.T) {
	users := testUsers()
	users[0].AssignedWarehouseID = wid(99) // camioneta eliminada del catálogo
	dir := &fakeDirectory{users: users}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	board := engine.Board()
	assert.Contains(t, availableIDs(board), "u1")

	writes := dir.writesFor("u1")
	require.Len(t, writes, 1, "la referencia obsoleta debe limpiarse en el directorio")
	assert.Nil(t, writes[0].warehouseID)
}

func TestReconcile_AsignadoACamionetaExcluidaQuedaDisponible(t *testing.T) {
	users := testUsers()
	users[0].AssignedWarehouseID = wid(2)
	dir := &fakeDirectory{users: users}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true, ids: []int64{2}})

	board := engine.Board()
	assert.Empty(t, boardWarehouse(t, board, 2).Users)
	assert.Contains(t, availableIDs(board), "u1")
	require.Len(t, dir.writesFor("u1"), 1)
}

// Un snapshot remoto con sobrecupo conserva los tres primeros (por nombre) y
// evacúa al resto.
func TestReconcile_SobrecupoRemotoSeRecorta(t *testing.T) {
	users := testUsers() // Ana, Bruno, Carla, Diego
	for _, u := range users {
		u.AssignedWarehouseID = wid(1)
	}
	dir := &fakeDirectory{users: users}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	board := engine.Board()
	assert.Equal(t, []string{"u1", "u2", "u3"}, assignedIDs(boardWarehouse(t, board, 1)))
	assert.Equal(t, []string{"u4"}, availableIDs(board))
	require.Len(t, dir.writesFor("u4"), 1)
	assert.Nil(t, dir.writesFor("u4")[0].warehouseID)
}

// I4: el snapshot remoto es autoritativo y pisa el optimismo local.
func TestReconcile_SnapshotRemotoPisaOptimismoLocal(t *testing.T) {
	dir := &fakeDirectory{users: testUsers()}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	require.NoError(t, engine.Assign(context.Background(), "u1", 1, false))
	assert.Equal(t, []string{"u1"}, assignedIDs(boardWarehouse(t, engine.Board(), 1)))

	// Llega un snapshot previo a la mutación (la escritura aún no dio la vuelta).
	engine.Reconcile(context.Background(), testUsers())
	assert.Empty(t, boardWarehouse(t, engine.Board(), 1).Users,
		"el snapshot remoto sobrescribe la mutación optimista hasta que la escritura propia regrese")
}

// P2: todo usuario aparece exactamente una vez en el tablero.
func TestBoard_ParticionDeUsuarios(t *testing.T) {
	users := testUsers()
	users[0].AssignedWarehouseID = wid(1)
	users[1].AssignedWarehouseID = wid(99) // obsoleta → disponible
	dir := &fakeDirectory{users: users}
	engine := newTestEngine(t, dir, &fakeExclusionStore{found: true})

	board := engine.Board()
	seen := map[string]int{}
	for _, w := range board.Warehouses {
		for _, u := range w.Users {
			seen[u.ID]++
		}
	}
	for _, u := range board.Available {
		seen[u.ID]++
	}
	for _, u := range users {
		assert.Equal(t, 1, seen[u.ID], "el usuario %s debe aparecer exactamente una vez", u.ID)
	}
}
