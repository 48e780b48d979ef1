package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/invorya/stock-ledger/internal/domain"
)

// Querier abstrae pool y tx: los repositorios funcionan igual atados a una
// transacción (TxRunner) o al pool (lecturas).
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return strings.Contains(err.Error(), "23505")
}

// storageErr clasifica un fallo de I/O del almacén en la categoría
// StorageUnavailable de la taxonomía: el append o quedó commiteado o no,
// verificable por ID, así que es la única clase elegible para reintento
// transparente. Los deadlines del contexto se dejan pasar para que el caso
// de uso los traduzca a Timeout.
func storageErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrStorageUnavailable, err))
}
