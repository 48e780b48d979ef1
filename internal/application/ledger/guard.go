package ledger

import (
	"fmt"

	"github.com/invorya/stock-ledger/internal/domain"
	"github.com/invorya/stock-ledger/internal/domain/entity"
)

// CheckCapacity verifica que ocupado + delta no supere la capacidad declarada
// de la bodega. Solo se evalúa para movimientos que aumentan stock; delta
// viene en unidades de huella del registro (cantidad * huella por unidad del
// producto), el libro no calcula la conversión por su cuenta.
//
// Un rechazo aquí bloquea el movimiento sin corromper estado: no hay
// aplicación parcial.
func CheckCapacity(warehouse *entity.Warehouse, productID string, delta int64) error {
	if delta <= 0 || !warehouse.HasCapacityLimit() {
		return nil
	}
	prospective := warehouse.OccupiedCapacity + delta
	if prospective > warehouse.Capacity {
		return domain.NewRejection(domain.ErrCapacityExceeded, "capacity", productID, warehouse.ID,
			fmt.Sprintf("ocupado %d + delta %d supera capacidad %d", warehouse.OccupiedCapacity, delta, warehouse.Capacity))
	}
	return nil
}
