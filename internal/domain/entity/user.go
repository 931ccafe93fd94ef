package entity

// User representa un operario de campo asignable a lo sumo a una camioneta.
// El directorio de usuarios es la fuente de los datos de contacto; este
// subsistema solo muta AssignedWarehouseID.
type User struct {
	ID    string // clave del documento en el directorio
	Name  string
	Email string
	Phone string
	// AssignedWarehouseID camioneta asignada; nil = disponible.
	AssignedWarehouseID *int64
}

// Assigned indica si el usuario tiene una camioneta asignada persistida.
func (u *User) Assigned() bool {
	return u.AssignedWarehouseID != nil
}
