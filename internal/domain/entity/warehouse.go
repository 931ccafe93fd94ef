package entity

// WarehouseCapacity cupo fijo de operarios por camioneta.
// El modelo actual no lo hace configurable por unidad.
const WarehouseCapacity = 3

// Warehouse representa una camioneta: unidad móvil de stock usada como
// vehículo de reparto y destino de asignación de operarios.
// El catálogo de inventario es la fuente de identidad y stock; este
// subsistema nunca crea ni elimina camionetas.
type Warehouse struct {
	ID         int64
	Name       string
	StockTotal int // informativo, no participa en invariantes
}
