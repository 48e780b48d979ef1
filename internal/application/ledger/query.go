package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/invorya/stock-ledger/internal/domain"
	"github.com/invorya/stock-ledger/internal/domain/entity"
	"github.com/invorya/stock-ledger/internal/domain/repository"
)

// BalanceReader lee saldos, posiblemente a través de una cache.
type BalanceReader interface {
	Get(ctx context.Context, productID, warehouseID string) (*entity.WarehouseBalance, error)
}

// QueryService responde consultas de saldo, valorización e historial para
// colaboradores externos (UI, reportes). Solo lectura: nunca muta el libro
// ni los saldos, y solo refleja movimientos completamente aplicados: jamás
// un traslado a medias (el límite de atomicidad es el commit de ambas
// mitades).
type QueryService struct {
	movRepo     repository.MovementRepository
	balanceRepo repository.BalanceRepository
	reader      BalanceReader // por defecto el repo; reemplazable por cache
}

// NewQueryService construye el servicio de consultas.
func NewQueryService(movRepo repository.MovementRepository, balanceRepo repository.BalanceRepository) *QueryService {
	return &QueryService{movRepo: movRepo, balanceRepo: balanceRepo, reader: repoReader{balanceRepo}}
}

// WithBalanceReader reemplaza el lector de saldos (cache read-through).
func (s *QueryService) WithBalanceReader(r BalanceReader) *QueryService {
	s.reader = r
	return s
}

type repoReader struct{ repo repository.BalanceRepository }

func (r repoReader) Get(ctx context.Context, productID, warehouseID string) (*entity.WarehouseBalance, error) {
	return r.repo.Get(ctx, productID, warehouseID)
}

// GetBalance obtiene el saldo de un producto en una bodega.
func (s *QueryService) GetBalance(ctx context.Context, productID, warehouseID string) (*entity.WarehouseBalance, error) {
	bal, err := s.reader.Get(ctx, productID, warehouseID)
	if err != nil {
		return nil, mapTimeout(err)
	}
	if bal == nil {
		return nil, domain.NewRejection(domain.ErrNotFound, "balance_exists", productID, warehouseID, "sin movimientos para el par producto×bodega")
	}
	return bal, nil
}

// GetHistory devuelve una página de movimientos en orden de ID ascendente.
// Paginación por cursor: repetir con AfterID = ID del último registro.
// Limit se acota a [1, 500]; sin valor se usan 100 registros.
func (s *QueryService) GetHistory(ctx context.Context, filter repository.MovementFilter) ([]*entity.MovementRecord, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	} else if filter.Limit > 500 {
		filter.Limit = 500
	}
	list, err := s.movRepo.List(ctx, filter)
	if err != nil {
		return nil, mapTimeout(err)
	}
	return list, nil
}

// Valuation es la valorización total de un producto entre bodegas.
type Valuation struct {
	ProductID     string
	TotalQuantity int64
	TotalValue    decimal.Decimal // sum(cantidad * costo promedio) por bodega
}

// GetValuation calcula cantidad y valor total de un producto sumando sus
// saldos en todas las bodegas.
func (s *QueryService) GetValuation(ctx context.Context, productID string) (*Valuation, error) {
	balances, err := s.balanceRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, mapTimeout(err)
	}
	v := &Valuation{ProductID: productID, TotalValue: decimal.Zero}
	for _, b := range balances {
		v.TotalQuantity += b.QuantityOnHand
		v.TotalValue = v.TotalValue.Add(b.Valuation())
	}
	return v, nil
}

// ListBalances lista los saldos de una bodega (vista de solo lectura para
// dashboards; ninguna lógica del libro se duplica aquí).
func (s *QueryService) ListBalances(ctx context.Context, warehouseID string, limit, offset int) ([]*entity.WarehouseBalance, error) {
	if limit <= 0 {
		limit = 100
	} else if limit > 500 {
		limit = 500
	}
	list, err := s.balanceRepo.ListByWarehouse(ctx, warehouseID, limit, offset)
	if err != nil {
		return nil, mapTimeout(err)
	}
	return list, nil
}

// Replay recorre el libro completo en orden de append (opcionalmente
// filtrado por producto) invocando fn por registro. La secuencia es perezosa
// y reanudable: avanza por cursor de ID en páginas acotadas, así que una
// auditoría puede retomarse desde el último ID visto. Uso: auditorías y
// verificación del invariante de conservación.
func (s *QueryService) Replay(ctx context.Context, productID string, fn func(*entity.MovementRecord) error) error {
	const pageSize = 500
	cursor := int64(0)
	for {
		page, err := s.movRepo.List(ctx, repository.MovementFilter{
			ProductID: productID,
			AfterID:   cursor,
			Limit:     pageSize,
		})
		if err != nil {
			return mapTimeout(err)
		}
		for _, m := range page {
			if err := fn(m); err != nil {
				return err
			}
			cursor = m.ID
		}
		if len(page) < pageSize {
			return nil
		}
	}
}
