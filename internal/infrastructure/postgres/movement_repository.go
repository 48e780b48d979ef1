package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/invorya/stock-ledger/internal/domain/entity"
	"github.com/invorya/stock-ledger/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo implementación del libro de movimientos sobre PostgreSQL
// (usable con pool o tx). La tabla es estrictamente append-only; el ID
// monotónico lo asigna la secuencia BIGSERIAL, que serializa el orden de
// append independiente de los locks de saldo.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

const movementColumns = `id, transaction_id, product_id, unit, warehouse_id,
	from_warehouse_id, to_warehouse_id, movement_type, reference_type,
	reference_number, quantity, cost_per_unit, occurred_at, actor, notes, created_at`

// Append persiste el registro y asigna su ID desde la secuencia.
func (r *MovementRepo) Append(ctx context.Context, m *entity.MovementRecord) error {
	query := `
		INSERT INTO ledger_movements (transaction_id, product_id, unit, warehouse_id,
			from_warehouse_id, to_warehouse_id, movement_type, reference_type,
			reference_number, quantity, cost_per_unit, occurred_at, actor, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`
	err := r.q.QueryRow(ctx, query,
		m.TransactionID, m.ProductID, m.Unit, m.WarehouseID,
		nullable(m.FromWarehouseID), nullable(m.ToWarehouseID),
		m.MovementType, m.ReferenceType, nullable(m.ReferenceNumber),
		m.Quantity, m.CostPerUnit, m.OccurredAt, nullable(m.Actor), nullable(m.Notes), m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return storageErr("append movement", err)
	}
	return nil
}

// GetByID obtiene un movimiento por ID; nil si no existe.
func (r *MovementRepo) GetByID(ctx context.Context, id int64) (*entity.MovementRecord, error) {
	query := `SELECT ` + movementColumns + ` FROM ledger_movements WHERE id = $1`
	m, err := scanMovement(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("get movement", err)
	}
	return m, nil
}

// List devuelve movimientos en orden de ID ascendente según el filtro
// (cursor AfterID, producto, bodega, rango de fechas sobre occurred_at).
func (r *MovementRepo) List(ctx context.Context, f repository.MovementFilter) ([]*entity.MovementRecord, error) {
	query := `SELECT ` + movementColumns + ` FROM ledger_movements WHERE id > $1`
	args := []any{f.AfterID}
	pos := 2
	if f.ProductID != "" {
		query += fmt.Sprintf(" AND product_id = $%d", pos)
		args = append(args, f.ProductID)
		pos++
	}
	if f.WarehouseID != "" {
		query += fmt.Sprintf(" AND warehouse_id = $%d", pos)
		args = append(args, f.WarehouseID)
		pos++
	}
	if f.From != nil {
		query += fmt.Sprintf(" AND occurred_at >= $%d", pos)
		args = append(args, *f.From)
		pos++
	}
	if f.To != nil {
		query += fmt.Sprintf(" AND occurred_at <= $%d", pos)
		args = append(args, *f.To)
		pos++
	}
	query += fmt.Sprintf(" ORDER BY id ASC LIMIT $%d", pos)
	args = append(args, f.Limit)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list movements", err)
	}
	defer rows.Close()
	var list []*entity.MovementRecord
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, storageErr("scan movement", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func scanMovement(row pgx.Row) (*entity.MovementRecord, error) {
	var m entity.MovementRecord
	var fromWh, toWh, refNum, actor, notes *string
	err := row.Scan(
		&m.ID, &m.TransactionID, &m.ProductID, &m.Unit, &m.WarehouseID,
		&fromWh, &toWh, &m.MovementType, &m.ReferenceType,
		&refNum, &m.Quantity, &m.CostPerUnit, &m.OccurredAt, &actor, &notes, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.FromWarehouseID = deref(fromWh)
	m.ToWarehouseID = deref(toWh)
	m.ReferenceNumber = deref(refNum)
	m.Actor = deref(actor)
	m.Notes = deref(notes)
	return &m, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
