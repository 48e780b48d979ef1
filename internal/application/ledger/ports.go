package ledger

import (
	"context"

	"github.com/invorya/stock-ledger/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción del almacén,
// pasando repositorios atados a esa transacción. Garantiza atomicidad para
// el motor del libro: o se aplican todas las mitades de un movimiento o
// ninguna queda visible.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		movRepo repository.MovementRepository,
		balanceRepo repository.BalanceRepository,
		warehouseRepo repository.WarehouseRepository,
	) error) error
}
