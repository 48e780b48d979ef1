// Package memory implementa el almacén del libro en memoria: mismo contrato
// que el backend PostgreSQL (puertos de repository + ledger.TxRunner), con
// locks por fila producto×bodega y un allocator de IDs monotónico. Se usa en
// modo desarrollo (sin DATABASE_URL) y en los tests del motor.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/invorya/stock-ledger/internal/domain/entity"
	"github.com/invorya/stock-ledger/internal/domain/repository"
)

type rowKey struct {
	productID   string
	warehouseID string
}

// rowLock es un lock de fila adquirible con contexto: si el deadline vence
// mientras se espera, la operación se abandona sin tocar estado.
type rowLock struct {
	ch chan struct{}
}

func newRowLock() *rowLock { return &rowLock{ch: make(chan struct{}, 1)} }

func (l *rowLock) acquire(ctx context.Context) error {
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *rowLock) release() { <-l.ch }

// Store es el estado compartido: libro de movimientos (append-only, orden
// por ID), saldos derivados, y las tablas del registro (bodegas, productos).
type Store struct {
	mu         sync.RWMutex // protege los mapas; el commit de una tx es atómico bajo este lock
	movements  []*entity.MovementRecord
	balances   map[rowKey]*entity.WarehouseBalance
	warehouses map[string]*entity.Warehouse
	products   map[string]*entity.Product

	idMu   sync.Mutex // allocator monotónico, independiente de los locks de fila
	nextID int64

	lockMu        sync.Mutex // protege los mapas de locks (creación perezosa)
	balanceLocks  map[rowKey]*rowLock
	warehouseLock map[string]*rowLock
}

// NewStore construye un almacén vacío.
func NewStore() *Store {
	return &Store{
		balances:      make(map[rowKey]*entity.WarehouseBalance),
		warehouses:    make(map[string]*entity.Warehouse),
		products:      make(map[string]*entity.Product),
		balanceLocks:  make(map[rowKey]*rowLock),
		warehouseLock: make(map[string]*rowLock),
	}
}

// allocateID asigna el siguiente ID bajo el mutex del allocator: el orden de
// append es total aunque los saldos se actualicen por fila.
func (s *Store) allocateID() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	s.nextID++
	return s.nextID
}

func (s *Store) balanceLock(k rowKey) *rowLock {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.balanceLocks[k]
	if !ok {
		l = newRowLock()
		s.balanceLocks[k] = l
	}
	return l
}

func (s *Store) warehouseRowLock(id string) *rowLock {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.warehouseLock[id]
	if !ok {
		l = newRowLock()
		s.warehouseLock[id] = l
	}
	return l
}

// insertMovement inserta manteniendo el orden por ID (commits concurrentes
// pueden llegar fuera de orden de asignación).
func (s *Store) insertMovement(m *entity.MovementRecord) {
	i := sort.Search(len(s.movements), func(i int) bool { return s.movements[i].ID >= m.ID })
	s.movements = append(s.movements, nil)
	copy(s.movements[i+1:], s.movements[i:])
	s.movements[i] = m
}

func cloneMovement(m *entity.MovementRecord) *entity.MovementRecord {
	c := *m
	if m.CostPerUnit != nil {
		v := *m.CostPerUnit
		c.CostPerUnit = &v
	}
	return &c
}

func cloneBalance(b *entity.WarehouseBalance) *entity.WarehouseBalance {
	c := *b
	return &c
}

func cloneWarehouse(w *entity.Warehouse) *entity.Warehouse {
	c := *w
	return &c
}

func cloneProduct(p *entity.Product) *entity.Product {
	c := *p
	return &c
}

// ──────────────────────────────────────────────────────────────────────────
// Transacción
// ──────────────────────────────────────────────────────────────────────────

// Tx acumula cambios staged; nada es visible para lectores hasta el commit,
// que aplica todo bajo el lock de escritura del Store (un traslado a medias
// jamás se observa).
type Tx struct {
	store          *Store
	heldBalances   []*rowLock
	heldWarehouses []*rowLock
	movements      []*entity.MovementRecord
	balances       map[rowKey]*entity.WarehouseBalance
	occupiedDeltas map[string]int64
}

func newTx(s *Store) *Tx {
	return &Tx{
		store:          s,
		balances:       make(map[rowKey]*entity.WarehouseBalance),
		occupiedDeltas: make(map[string]int64),
	}
}

func (t *Tx) commit() {
	s := t.store
	s.mu.Lock()
	for _, m := range t.movements {
		s.insertMovement(m)
	}
	for k, b := range t.balances {
		s.balances[k] = b
	}
	for id, delta := range t.occupiedDeltas {
		if w, ok := s.warehouses[id]; ok {
			w.OccupiedCapacity += delta
			w.UpdatedAt = time.Now()
		}
	}
	s.mu.Unlock()
	t.releaseLocks()
}

func (t *Tx) rollback() {
	// Lo staged se descarta; los IDs asignados quedan como huecos en la
	// secuencia, igual que una secuencia SQL.
	t.releaseLocks()
}

func (t *Tx) releaseLocks() {
	for _, l := range t.heldWarehouses {
		l.release()
	}
	for _, l := range t.heldBalances {
		l.release()
	}
	t.heldBalances = nil
	t.heldWarehouses = nil
}

// Run implementa ledger.TxRunner: ejecuta fn con repos atados a la tx y
// hace commit, o descarta todo si fn falla.
func (s *Store) Run(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	balanceRepo repository.BalanceRepository,
	warehouseRepo repository.WarehouseRepository,
) error) error {
	tx := newTx(s)
	err := fn(&txMovementRepo{tx}, &txBalanceRepo{tx}, &txWarehouseRepo{tx})
	if err != nil {
		tx.rollback()
		return err
	}
	tx.commit()
	return nil
}

type txMovementRepo struct{ tx *Tx }

// Append asigna el ID monotónico y stagea el registro para el commit.
func (r *txMovementRepo) Append(ctx context.Context, m *entity.MovementRecord) error {
	m.ID = r.tx.store.allocateID()
	r.tx.movements = append(r.tx.movements, cloneMovement(m))
	return nil
}

func (r *txMovementRepo) GetByID(ctx context.Context, id int64) (*entity.MovementRecord, error) {
	return r.tx.store.Movements().GetByID(ctx, id)
}

func (r *txMovementRepo) List(ctx context.Context, f repository.MovementFilter) ([]*entity.MovementRecord, error) {
	return r.tx.store.Movements().List(ctx, f)
}

type txBalanceRepo struct{ tx *Tx }

func (r *txBalanceRepo) Get(ctx context.Context, productID, warehouseID string) (*entity.WarehouseBalance, error) {
	k := rowKey{productID, warehouseID}
	if staged, ok := r.tx.balances[k]; ok {
		return cloneBalance(staged), nil
	}
	return r.tx.store.Balances().Get(ctx, productID, warehouseID)
}

// GetForUpdate adquiere el lock de la fila (con deadline del contexto) y
// devuelve el saldo commiteado, o uno en cero si el par nunca tuvo
// movimientos. El lock se mantiene hasta el commit/rollback de la tx.
func (r *txBalanceRepo) GetForUpdate(ctx context.Context, productID, warehouseID string) (*entity.WarehouseBalance, error) {
	k := rowKey{productID, warehouseID}
	l := r.tx.store.balanceLock(k)
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	r.tx.heldBalances = append(r.tx.heldBalances, l)

	r.tx.store.mu.RLock()
	defer r.tx.store.mu.RUnlock()
	if b, ok := r.tx.store.balances[k]; ok {
		return cloneBalance(b), nil
	}
	return &entity.WarehouseBalance{
		ProductID:           productID,
		WarehouseID:         warehouseID,
		WeightedAverageCost: decimal.Zero,
		UpdatedAt:           time.Now(),
	}, nil
}

func (r *txBalanceRepo) Upsert(ctx context.Context, b *entity.WarehouseBalance) error {
	r.tx.balances[rowKey{b.ProductID, b.WarehouseID}] = cloneBalance(b)
	return nil
}

func (r *txBalanceRepo) ListByProduct(ctx context.Context, productID string) ([]*entity.WarehouseBalance, error) {
	return r.tx.store.Balances().ListByProduct(ctx, productID)
}

func (r *txBalanceRepo) ListByWarehouse(ctx context.Context, warehouseID string, limit, offset int) ([]*entity.WarehouseBalance, error) {
	return r.tx.store.Balances().ListByWarehouse(ctx, warehouseID, limit, offset)
}

type txWarehouseRepo struct{ tx *Tx }

func (r *txWarehouseRepo) Create(ctx context.Context, w *entity.Warehouse) error {
	return r.tx.store.Warehouses().Create(ctx, w)
}

func (r *txWarehouseRepo) GetByID(ctx context.Context, id string) (*entity.Warehouse, error) {
	return r.tx.store.Warehouses().GetByID(ctx, id)
}

// GetForUpdate adquiere el lock de la bodega para chequear capacidad y
// actualizar ocupado sin carreras. El delta staged se refleja en la copia
// devuelta para que relecturas dentro de la misma tx sean coherentes.
func (r *txWarehouseRepo) GetForUpdate(ctx context.Context, id string) (*entity.Warehouse, error) {
	l := r.tx.store.warehouseRowLock(id)
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	r.tx.heldWarehouses = append(r.tx.heldWarehouses, l)

	w, err := r.tx.store.Warehouses().GetByID(ctx, id)
	if err != nil || w == nil {
		return w, err
	}
	w.OccupiedCapacity += r.tx.occupiedDeltas[id]
	return w, nil
}

func (r *txWarehouseRepo) Update(ctx context.Context, w *entity.Warehouse) error {
	return r.tx.store.Warehouses().Update(ctx, w)
}

func (r *txWarehouseRepo) UpdateOccupied(ctx context.Context, id string, delta int64) error {
	r.tx.occupiedDeltas[id] += delta
	return nil
}

func (r *txWarehouseRepo) List(ctx context.Context, limit, offset int) ([]*entity.Warehouse, error) {
	return r.tx.store.Warehouses().List(ctx, limit, offset)
}

func (r *txWarehouseRepo) Delete(ctx context.Context, id string) error {
	return r.tx.store.Warehouses().Delete(ctx, id)
}
