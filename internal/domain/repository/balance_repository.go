package repository

import (
	"context"

	"github.com/invorya/stock-ledger/internal/domain/entity"
)

// BalanceRepository define el puerto de persistencia para los saldos
// derivados por producto×bodega (DIP).
type BalanceRepository interface {
	// Get obtiene el saldo actual; nil si la fila nunca fue creada.
	Get(ctx context.Context, productID, warehouseID string) (*entity.WarehouseBalance, error)
	// GetForUpdate obtiene el saldo y bloquea la fila para la transacción en
	// curso. Si la fila no existe devuelve un saldo en cero listo para el
	// primer movimiento del par producto×bodega.
	GetForUpdate(ctx context.Context, productID, warehouseID string) (*entity.WarehouseBalance, error)
	// Upsert inserta o actualiza la fila de saldo.
	Upsert(ctx context.Context, balance *entity.WarehouseBalance) error
	// ListByProduct lista los saldos de un producto en todas las bodegas.
	ListByProduct(ctx context.Context, productID string) ([]*entity.WarehouseBalance, error)
	// ListByWarehouse lista los saldos de una bodega con paginación.
	ListByWarehouse(ctx context.Context, warehouseID string, limit, offset int) ([]*entity.WarehouseBalance, error)
}
