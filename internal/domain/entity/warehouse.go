package entity

import "time"

// Warehouse representa una bodega donde se almacena inventario.
// Capacity y OccupiedCapacity están en unidades de huella (footprint) que
// define el registro; el libro solo compara ocupado+delta contra capacidad,
// nunca calcula la conversión de huella por su cuenta.
type Warehouse struct {
	ID               string
	Code             string
	Name             string
	Address          string
	Capacity         int64 // 0 = sin límite declarado
	OccupiedCapacity int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasCapacityLimit indica si la bodega declara un límite de capacidad.
func (w *Warehouse) HasCapacityLimit() bool {
	return w.Capacity > 0
}
