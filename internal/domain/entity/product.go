package entity

import "time"

// Product representa un producto o SKU del registro (multi-bodega).
// UnitFootprint es la huella de espacio por unidad que provee el registro
// para la aritmética de capacidad: deltaUnidades = cantidad * UnitFootprint.
// Con UnitFootprint = 0 el producto no consume espacio rastreado.
type Product struct {
	ID            string
	SKU           string // código único
	Name          string
	Description   string
	UnitMeasure   string
	UnitFootprint int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
