package assignment

import (
	"sort"

	"github.com/jhoicas/flota-api/internal/application/dto"
	"github.com/jhoicas/flota-api/internal/domain/entity"
)

// Board arma las dos colecciones listas para la vista: camionetas con sus
// asignados (en orden del catálogo) y usuarios disponibles (por nombre).
// Un usuario cuya camioneta persistida es desconocida o está excluida cuenta
// como disponible.
func (e *Engine) Board() *dto.BoardResponse {
	e.mu.Lock()
	defer e.mu.Unlock()

	warehouses := make([]dto.WarehouseBoardItem, 0, e.catalog.Len())
	for _, w := range e.catalog.All() {
		item := dto.WarehouseBoardItem{
			ID:         w.ID,
			Name:       w.Name,
			StockTotal: w.StockTotal,
			Capacity:   entity.WarehouseCapacity,
			Excluded:   e.registry.IsExcluded(w.ID),
			Users:      make([]dto.UserItem, 0, entity.WarehouseCapacity),
		}
		for _, uid := range e.byWarehouse[w.ID] {
			if u, ok := e.users[uid]; ok {
				item.Users = append(item.Users, toUserItem(u))
			}
		}
		warehouses = append(warehouses, item)
	}

	available := make([]dto.UserItem, 0, len(e.users))
	for _, u := range e.users {
		if _, assigned := e.assignedTo[u.ID]; assigned {
			continue
		}
		available = append(available, toUserItem(u))
	}
	sort.Slice(available, func(i, j int) bool {
		if available[i].Name != available[j].Name {
			return available[i].Name < available[j].Name
		}
		return available[i].ID < available[j].ID
	})

	return &dto.BoardResponse{Warehouses: warehouses, Available: available}
}

func toUserItem(u *entity.User) dto.UserItem {
	return dto.UserItem{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
}
