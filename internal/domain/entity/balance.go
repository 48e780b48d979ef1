package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// WarehouseBalance es el saldo derivado de un producto en una bodega
// (una fila por producto×bodega). Se crea con el primer movimiento y nunca
// se borra: puede quedar en cero pero la fila persiste para auditoría.
//
// Invariante: QuantityOnHand >= 0 en todo momento. Para cada producto, la
// suma de QuantityOnHand entre bodegas debe igualar la suma con signo de
// todos los movimientos aplicados (verificable por replay completo).
type WarehouseBalance struct {
	ProductID           string
	WarehouseID         string
	QuantityOnHand      int64
	WeightedAverageCost decimal.Decimal // por unidad; recalculado en entradas valoradas
	LastMovementID      int64           // puntero al movimiento que actualizó la fila
	UpdatedAt           time.Time
}

// Valuation devuelve QuantityOnHand * WeightedAverageCost.
func (b *WarehouseBalance) Valuation() decimal.Decimal {
	return decimal.NewFromInt(b.QuantityOnHand).Mul(b.WeightedAverageCost)
}
