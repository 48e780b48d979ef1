package repository

import (
	"context"
	"time"

	"github.com/invorya/stock-ledger/internal/domain/entity"
)

// MovementFilter filtra el historial de movimientos. La paginación es por
// cursor de ID ascendente (AfterID), estable frente a inserciones nuevas.
type MovementFilter struct {
	ProductID   string
	WarehouseID string
	From        *time.Time
	To          *time.Time
	AfterID     int64
	Limit       int
}

// MovementRepository define el puerto de persistencia del libro de
// movimientos (DIP). El libro es estrictamente append-only: no hay Update
// ni Delete.
type MovementRepository interface {
	// Append persiste el registro y asigna movement.ID (monotónico respecto
	// al orden de append). Una vez retornado sin error, el registro es
	// durable.
	Append(ctx context.Context, movement *entity.MovementRecord) error
	// GetByID obtiene un movimiento por ID; nil si no existe.
	GetByID(ctx context.Context, id int64) (*entity.MovementRecord, error)
	// List devuelve movimientos en orden de ID ascendente según el filtro.
	List(ctx context.Context, filter MovementFilter) ([]*entity.MovementRecord, error)
}
