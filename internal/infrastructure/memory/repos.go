package memory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/invorya/stock-ledger/internal/domain"
	"github.com/invorya/stock-ledger/internal/domain/entity"
	"github.com/invorya/stock-ledger/internal/domain/repository"
)

// Adaptadores directos (equivalente al pool en el backend PostgreSQL):
// lecturas sobre estado commiteado y escrituras del registro fuera del motor
// del libro. Los movimientos transaccionales pasan por Store.Run.

var (
	_ repository.MovementRepository  = (*movementRepo)(nil)
	_ repository.BalanceRepository   = (*balanceRepo)(nil)
	_ repository.WarehouseRepository = (*warehouseRepo)(nil)
	_ repository.ProductRepository   = (*productRepo)(nil)
)

// Movements devuelve la vista de repositorio del libro de movimientos.
func (s *Store) Movements() repository.MovementRepository { return &movementRepo{s} }

// Balances devuelve la vista de repositorio de saldos.
func (s *Store) Balances() repository.BalanceRepository { return &balanceRepo{s} }

// Warehouses devuelve la vista de repositorio de bodegas.
func (s *Store) Warehouses() repository.WarehouseRepository { return &warehouseRepo{s} }

// Products devuelve la vista de repositorio de productos.
func (s *Store) Products() repository.ProductRepository { return &productRepo{s} }

type movementRepo struct{ s *Store }

// Append fuera de una transacción: asigna ID y commitea de inmediato.
func (r *movementRepo) Append(ctx context.Context, m *entity.MovementRecord) error {
	m.ID = r.s.allocateID()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.insertMovement(cloneMovement(m))
	return nil
}

func (r *movementRepo) GetByID(ctx context.Context, id int64) (*entity.MovementRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	i := sort.Search(len(r.s.movements), func(i int) bool { return r.s.movements[i].ID >= id })
	if i < len(r.s.movements) && r.s.movements[i].ID == id {
		return cloneMovement(r.s.movements[i]), nil
	}
	return nil, nil
}

func (r *movementRepo) List(ctx context.Context, f repository.MovementFilter) ([]*entity.MovementRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []*entity.MovementRecord
	for _, m := range r.s.movements {
		if m.ID <= f.AfterID {
			continue
		}
		if f.ProductID != "" && m.ProductID != f.ProductID {
			continue
		}
		if f.WarehouseID != "" && m.WarehouseID != f.WarehouseID {
			continue
		}
		if f.From != nil && m.OccurredAt.Before(*f.From) {
			continue
		}
		if f.To != nil && m.OccurredAt.After(*f.To) {
			continue
		}
		list = append(list, cloneMovement(m))
		if f.Limit > 0 && len(list) >= f.Limit {
			break
		}
	}
	return list, nil
}

type balanceRepo struct{ s *Store }

func (r *balanceRepo) Get(ctx context.Context, productID, warehouseID string) (*entity.WarehouseBalance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if b, ok := r.s.balances[rowKey{productID, warehouseID}]; ok {
		return cloneBalance(b), nil
	}
	return nil, nil
}

// GetForUpdate fuera de una transacción no toma locks: devuelve el saldo
// commiteado o uno en cero. El motor del libro siempre entra por Store.Run.
func (r *balanceRepo) GetForUpdate(ctx context.Context, productID, warehouseID string) (*entity.WarehouseBalance, error) {
	b, err := r.Get(ctx, productID, warehouseID)
	if err != nil || b != nil {
		return b, err
	}
	return &entity.WarehouseBalance{
		ProductID:           productID,
		WarehouseID:         warehouseID,
		WeightedAverageCost: decimal.Zero,
	}, nil
}

func (r *balanceRepo) Upsert(ctx context.Context, b *entity.WarehouseBalance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.balances[rowKey{b.ProductID, b.WarehouseID}] = cloneBalance(b)
	return nil
}

func (r *balanceRepo) ListByProduct(ctx context.Context, productID string) ([]*entity.WarehouseBalance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []*entity.WarehouseBalance
	for k, b := range r.s.balances {
		if k.productID == productID {
			list = append(list, cloneBalance(b))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].WarehouseID < list[j].WarehouseID })
	return list, nil
}

func (r *balanceRepo) ListByWarehouse(ctx context.Context, warehouseID string, limit, offset int) ([]*entity.WarehouseBalance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []*entity.WarehouseBalance
	for k, b := range r.s.balances {
		if k.warehouseID == warehouseID {
			list = append(list, cloneBalance(b))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ProductID < list[j].ProductID })
	if offset >= len(list) {
		return nil, nil
	}
	list = list[offset:]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

type warehouseRepo struct{ s *Store }

func (r *warehouseRepo) Create(ctx context.Context, w *entity.Warehouse) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.warehouses[w.ID]; ok {
		return domain.ErrDuplicate
	}
	r.s.warehouses[w.ID] = cloneWarehouse(w)
	return nil
}

func (r *warehouseRepo) GetByID(ctx context.Context, id string) (*entity.Warehouse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if w, ok := r.s.warehouses[id]; ok {
		return cloneWarehouse(w), nil
	}
	return nil, nil
}

func (r *warehouseRepo) GetForUpdate(ctx context.Context, id string) (*entity.Warehouse, error) {
	return r.GetByID(ctx, id)
}

func (r *warehouseRepo) Update(ctx context.Context, w *entity.Warehouse) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.warehouses[w.ID]
	if !ok {
		return domain.ErrNotFound
	}
	c := cloneWarehouse(w)
	c.OccupiedCapacity = existing.OccupiedCapacity // ocupado lo actualiza solo el libro
	r.s.warehouses[w.ID] = c
	return nil
}

func (r *warehouseRepo) UpdateOccupied(ctx context.Context, id string, delta int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if w, ok := r.s.warehouses[id]; ok {
		w.OccupiedCapacity += delta
	}
	return nil
}

func (r *warehouseRepo) List(ctx context.Context, limit, offset int) ([]*entity.Warehouse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []*entity.Warehouse
	for _, w := range r.s.warehouses {
		list = append(list, cloneWarehouse(w))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	if offset >= len(list) {
		return nil, nil
	}
	list = list[offset:]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r *warehouseRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.warehouses, id)
	return nil
}

type productRepo struct{ s *Store }

func (r *productRepo) Create(ctx context.Context, p *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[p.ID]; ok {
		return domain.ErrDuplicate
	}
	r.s.products[p.ID] = cloneProduct(p)
	return nil
}

func (r *productRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if p, ok := r.s.products[id]; ok {
		return cloneProduct(p), nil
	}
	return nil, nil
}

func (r *productRepo) GetBySKU(ctx context.Context, sku string) (*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.products {
		if p.SKU == sku {
			return cloneProduct(p), nil
		}
	}
	return nil, nil
}

func (r *productRepo) Update(ctx context.Context, p *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[p.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.products[p.ID] = cloneProduct(p)
	return nil
}

func (r *productRepo) List(ctx context.Context, limit, offset int) ([]*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []*entity.Product
	for _, p := range r.s.products {
		list = append(list, cloneProduct(p))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	if offset >= len(list) {
		return nil, nil
	}
	list = list[offset:]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r *productRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.products, id)
	return nil
}
