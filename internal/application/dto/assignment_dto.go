package dto

// UserItem usuario en las colecciones de la vista.
type UserItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// WarehouseBoardItem camioneta con sus usuarios asignados (en orden de asignación).
type WarehouseBoardItem struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	StockTotal int        `json:"stock_total"`
	Capacity   int        `json:"capacity"`
	Excluded   bool       `json:"excluded"`
	Users      []UserItem `json:"users"`
}

// BoardResponse las dos colecciones que consume el tablero del operador:
// camionetas con asignados y usuarios disponibles.
type BoardResponse struct {
	Warehouses []WarehouseBoardItem `json:"warehouses"`
	Available  []UserItem           `json:"available"`
}

// AssignRequest asignación directa (click de asignación rápida).
type AssignRequest struct {
	UserID      string `json:"user_id"`
	WarehouseID int64  `json:"warehouse_id"`
	// Confirm consentimiento explícito cuando el usuario ya tiene otra camioneta.
	Confirm bool `json:"confirm"`
}

// UnassignRequest retiro de la camioneta actual.
type UnassignRequest struct {
	UserID string `json:"user_id"`
}

// MoveRequest movimiento disparado por el fin de un arrastre en el tablero.
type MoveRequest struct {
	UserID          string `json:"user_id"`
	FromWarehouseID int64  `json:"from_warehouse_id"`
	ToWarehouseID   int64  `json:"to_warehouse_id"`
	Confirm         bool   `json:"confirm"`
}

// ExclusionRequest alterna la exclusión de una camioneta.
type ExclusionRequest struct {
	Confirm bool `json:"confirm"`
}

// ResetRequest reinicio masivo de asignaciones; Phrase debe coincidir
// exactamente con la frase de confirmación.
type ResetRequest struct {
	Phrase string `json:"phrase"`
}
