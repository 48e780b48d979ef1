// Package ledger contiene los servicios de dominio del libro de inventario.
package ledger

import "github.com/shopspring/decimal"

// WeightedAverageCost implementa la lógica de costo promedio ponderado.
// NuevoCosto = ((StockActual * CostoActual) + (CantEntrada * CostoEntrada)) / (StockActual + CantEntrada)
// Las salidas y traslados consumen al promedio vigente y no lo alteran.
func WeightedAverageCost(onHand int64, currentCost decimal.Decimal, inQty int64, inCost decimal.Decimal) decimal.Decimal {
	sum := onHand + inQty
	if sum <= 0 {
		return decimal.Zero
	}
	num := decimal.NewFromInt(onHand).Mul(currentCost).
		Add(decimal.NewFromInt(inQty).Mul(inCost))
	return num.Div(decimal.NewFromInt(sum))
}
