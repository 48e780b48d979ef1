package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/invorya/stock-ledger/internal/domain"
	"github.com/invorya/stock-ledger/internal/domain/entity"
	"github.com/invorya/stock-ledger/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL
// (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos.
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

const productColumns = `id, sku, name, description, unit_measure, unit_footprint, created_at, updated_at`

// Create persiste un nuevo producto.
func (r *ProductRepo) Create(ctx context.Context, p *entity.Product) error {
	query := `
		INSERT INTO products (id, sku, name, description, unit_measure, unit_footprint, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.SKU, p.Name, p.Description, p.UnitMeasure, p.UnitFootprint, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return storageErr("insert product", err)
	}
	return nil
}

// GetByID obtiene un producto por ID; nil si no existe.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetBySKU obtiene un producto por SKU; nil si no existe.
func (r *ProductRepo) GetBySKU(ctx context.Context, sku string) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE sku = $1`
	return r.getOne(ctx, query, sku)
}

func (r *ProductRepo) getOne(ctx context.Context, query, arg string) (*entity.Product, error) {
	var p entity.Product
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.SKU, &p.Name, &p.Description, &p.UnitMeasure, &p.UnitFootprint, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("get product", err)
	}
	return &p, nil
}

// Update actualiza atributos del producto.
func (r *ProductRepo) Update(ctx context.Context, p *entity.Product) error {
	query := `
		UPDATE products SET name = $2, description = $3, unit_measure = $4, unit_footprint = $5, updated_at = $6
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query, p.ID, p.Name, p.Description, p.UnitMeasure, p.UnitFootprint, p.UpdatedAt)
	if err != nil {
		return storageErr("update product", err)
	}
	return nil
}

// List lista productos con paginación.
func (r *ProductRepo) List(ctx context.Context, limit, offset int) ([]*entity.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, storageErr("list products", err)
	}
	defer rows.Close()
	var list []*entity.Product
	for rows.Next() {
		var p entity.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.UnitMeasure,
			&p.UnitFootprint, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, storageErr("scan product", err)
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}

// Delete elimina un producto por ID.
func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return storageErr("delete product", err)
	}
	return nil
}
