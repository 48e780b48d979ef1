package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/invorya/stock-ledger/internal/domain"
	"github.com/invorya/stock-ledger/internal/domain/entity"
	ledgerdomain "github.com/invorya/stock-ledger/internal/domain/ledger"
	"github.com/invorya/stock-ledger/internal/domain/repository"
)

// BalanceInvalidator invalida lecturas cacheadas de un saldo tras aplicar
// un movimiento. Implementación opcional (cache Redis).
type BalanceInvalidator interface {
	Invalidate(ctx context.Context, productID, warehouseID string)
}

// SubmitMovementUseCase ejecuta el ciclo de vida completo de un movimiento:
// Proposed -> Validated -> CapacityChecked -> Applied, o Rejected en
// cualquier compuerta. Ningún estado intermedio es observable: el caller ve
// solo el resultado terminal.
type SubmitMovementUseCase struct {
	txRunner      TxRunner
	productRepo   repository.ProductRepository
	warehouseRepo repository.WarehouseRepository
	balanceRepo   repository.BalanceRepository
	invalidator   BalanceInvalidator
}

// NewSubmitMovementUseCase construye el caso de uso.
func NewSubmitMovementUseCase(
	txRunner TxRunner,
	productRepo repository.ProductRepository,
	warehouseRepo repository.WarehouseRepository,
	balanceRepo repository.BalanceRepository,
) *SubmitMovementUseCase {
	return &SubmitMovementUseCase{
		txRunner:      txRunner,
		productRepo:   productRepo,
		warehouseRepo: warehouseRepo,
		balanceRepo:   balanceRepo,
	}
}

// WithInvalidator registra el invalidador de cache de saldos.
func (uc *SubmitMovementUseCase) WithInvalidator(inv BalanceInvalidator) *SubmitMovementUseCase {
	uc.invalidator = inv
	return uc
}

// MovementResult es el resultado terminal de un movimiento aplicado: los
// registros inmutables creados (dos para TRANSFER) y los saldos resultantes.
type MovementResult struct {
	TransactionID string
	Records       []*entity.MovementRecord
	Balances      []*entity.WarehouseBalance
}

// half es una mitad de movimiento: el efecto con signo sobre una bodega.
type half struct {
	warehouseID string
	quantity    int64 // con signo
}

// SubmitMovement valida el intent, hace los prechequeos advisory fuera del
// lock, y dentro de la transacción bloquea las filas de saldo en orden
// global fijo (warehouseID ascendente, luego productID; evita deadlocks
// entre traslados opuestos concurrentes), repite los chequeos autoritativos,
// hace append de los registros y proyecta los saldos. Commit o Rollback:
// ninguna mitad queda visible sin la otra.
func (uc *SubmitMovementUseCase) SubmitMovement(ctx context.Context, intent MovementIntent) (*MovementResult, error) {
	now := time.Now()
	vm, err := Validate(intent, now)
	if err != nil {
		return nil, err
	}

	product, err := uc.productRepo.GetByID(ctx, intent.ProductID)
	if err != nil {
		return nil, mapTimeout(err)
	}
	if product == nil {
		return nil, domain.NewRejection(domain.ErrNotFound, "product_exists", intent.ProductID, "", "producto desconocido")
	}

	halves := movementHalves(vm.Intent)
	for _, h := range halves {
		wh, err := uc.warehouseRepo.GetByID(ctx, h.warehouseID)
		if err != nil {
			return nil, mapTimeout(err)
		}
		if wh == nil {
			return nil, domain.NewRejection(domain.ErrNotFound, "warehouse_exists", intent.ProductID, h.warehouseID, "bodega desconocida")
		}
		// Prechequeos advisory (sin lock): capacidad en el lado que aumenta,
		// stock en el lado que disminuye. La compuerta autoritativa se repite
		// bajo el lock de fila dentro de la transacción.
		if h.quantity > 0 {
			if err := CheckCapacity(wh, intent.ProductID, footprintDelta(product, h.quantity)); err != nil {
				return nil, err
			}
		} else {
			bal, err := uc.balanceRepo.Get(ctx, intent.ProductID, h.warehouseID)
			if err != nil {
				return nil, mapTimeout(err)
			}
			if bal == nil || bal.QuantityOnHand < -h.quantity {
				return nil, insufficientStock(intent.ProductID, h.warehouseID, bal)
			}
		}
	}

	txID := uuid.New().String()
	var result *MovementResult
	err = uc.runWithRetry(ctx, func() error {
		result = nil
		return uc.txRunner.Run(ctx, func(
			movRepo repository.MovementRepository,
			balanceRepo repository.BalanceRepository,
			warehouseRepo repository.WarehouseRepository,
		) error {
			res, err := uc.apply(ctx, movRepo, balanceRepo, warehouseRepo, vm, product, txID, halves)
			if err != nil {
				return err
			}
			result = res
			return nil
		})
	})
	if err != nil {
		return nil, mapTimeout(err)
	}

	if uc.invalidator != nil {
		for _, b := range result.Balances {
			uc.invalidator.Invalidate(ctx, b.ProductID, b.WarehouseID)
		}
	}
	return result, nil
}

// apply corre dentro de la transacción: locks en orden fijo, compuertas
// autoritativas, append y proyección.
func (uc *SubmitMovementUseCase) apply(
	ctx context.Context,
	movRepo repository.MovementRepository,
	balanceRepo repository.BalanceRepository,
	warehouseRepo repository.WarehouseRepository,
	vm *ValidatedMovement,
	product *entity.Product,
	txID string,
	halves []half,
) (*MovementResult, error) {
	intent := vm.Intent

	// Orden global de adquisición: warehouseID ascendente (productID fijo por
	// movimiento). Dos traslados en direcciones opuestas bloquean las mismas
	// filas en el mismo orden, así que no hay deadlock.
	locked := make([]half, len(halves))
	copy(locked, halves)
	sort.Slice(locked, func(i, j int) bool { return locked[i].warehouseID < locked[j].warehouseID })

	balances := make(map[string]*entity.WarehouseBalance, len(locked))
	warehouses := make(map[string]*entity.Warehouse, len(locked))
	for _, h := range locked {
		bal, err := balanceRepo.GetForUpdate(ctx, intent.ProductID, h.warehouseID)
		if err != nil {
			return nil, err
		}
		balances[h.warehouseID] = bal
	}
	for _, h := range locked {
		wh, err := warehouseRepo.GetForUpdate(ctx, h.warehouseID)
		if err != nil {
			return nil, err
		}
		if wh == nil {
			return nil, domain.NewRejection(domain.ErrNotFound, "warehouse_exists", intent.ProductID, h.warehouseID, "bodega desconocida")
		}
		warehouses[h.warehouseID] = wh
	}

	// Compuertas autoritativas bajo lock: stock no-negativo y capacidad.
	for _, h := range halves {
		if h.quantity < 0 {
			bal := balances[h.warehouseID]
			if bal.QuantityOnHand < -h.quantity {
				return nil, insufficientStock(intent.ProductID, h.warehouseID, bal)
			}
		} else {
			if err := CheckCapacity(warehouses[h.warehouseID], intent.ProductID, footprintDelta(product, h.quantity)); err != nil {
				return nil, err
			}
		}
	}

	// Costo aplicado: entradas valoradas traen su costo; traslados heredan el
	// promedio vigente del origen (el valor viaja con la unidad, no se
	// reprecia en destino); salidas y entradas sin costo usan el promedio
	// vigente de su bodega.
	var sourceAvg decimal.Decimal
	if intent.MovementType == entity.MovementTypeTRANSFER {
		sourceAvg = balances[intent.FromWarehouseID].WeightedAverageCost
	}

	result := &MovementResult{TransactionID: txID}
	for _, h := range halves {
		bal := balances[h.warehouseID]
		appliedCost := bal.WeightedAverageCost
		reprice := false
		switch {
		case intent.MovementType == entity.MovementTypeTRANSFER:
			appliedCost = sourceAvg
			reprice = h.quantity > 0
		case h.quantity > 0 && intent.CostPerUnit != nil:
			appliedCost = *intent.CostPerUnit
			reprice = true
		}

		record := &entity.MovementRecord{
			TransactionID:   txID,
			ProductID:       intent.ProductID,
			Unit:            intent.Unit,
			WarehouseID:     h.warehouseID,
			FromWarehouseID: intent.FromWarehouseID,
			ToWarehouseID:   intent.ToWarehouseID,
			MovementType:    intent.MovementType,
			ReferenceType:   intent.ReferenceType,
			ReferenceNumber: intent.ReferenceNumber,
			Quantity:        h.quantity,
			CostPerUnit:     &appliedCost,
			OccurredAt:      vm.OccurredAt,
			Actor:           intent.Actor,
			Notes:           intent.Notes,
			CreatedAt:       time.Now(),
		}
		if err := movRepo.Append(ctx, record); err != nil {
			return nil, err
		}

		if reprice {
			bal.WeightedAverageCost = ledgerdomain.WeightedAverageCost(
				bal.QuantityOnHand, bal.WeightedAverageCost, h.quantity, appliedCost)
		}
		bal.QuantityOnHand += h.quantity
		bal.LastMovementID = record.ID
		bal.UpdatedAt = record.CreatedAt
		if err := balanceRepo.Upsert(ctx, bal); err != nil {
			return nil, err
		}

		if delta := footprintDelta(product, h.quantity); delta != 0 {
			if err := warehouseRepo.UpdateOccupied(ctx, h.warehouseID, delta); err != nil {
				return nil, err
			}
		}

		result.Records = append(result.Records, record)
		result.Balances = append(result.Balances, bal)
	}
	return result, nil
}

// movementHalves descompone el intent en sus efectos por bodega. Las mitades
// de un TRANSFER se emiten salida-primero (orden de los registros en el
// libro); la adquisición de locks se reordena aparte.
func movementHalves(intent MovementIntent) []half {
	switch intent.MovementType {
	case entity.MovementTypeIN:
		return []half{{warehouseID: intent.ToWarehouseID, quantity: intent.Quantity}}
	case entity.MovementTypeOUT:
		return []half{{warehouseID: intent.FromWarehouseID, quantity: intent.Quantity}}
	case entity.MovementTypeTRANSFER:
		return []half{
			{warehouseID: intent.FromWarehouseID, quantity: -intent.Quantity},
			{warehouseID: intent.ToWarehouseID, quantity: intent.Quantity},
		}
	case entity.MovementTypeADJUSTMENT:
		if intent.Quantity > 0 {
			return []half{{warehouseID: intent.ToWarehouseID, quantity: intent.Quantity}}
		}
		return []half{{warehouseID: intent.FromWarehouseID, quantity: intent.Quantity}}
	}
	return nil
}

// footprintDelta convierte una cantidad con signo a unidades de huella con
// la huella por unidad que provee el registro. Nunca una constante fija.
func footprintDelta(product *entity.Product, quantity int64) int64 {
	return quantity * product.UnitFootprint
}

func insufficientStock(productID, warehouseID string, bal *entity.WarehouseBalance) error {
	onHand := int64(0)
	if bal != nil {
		onHand = bal.QuantityOnHand
	}
	return domain.NewRejection(domain.ErrInsufficientStock, "stock_nonnegative", productID, warehouseID,
		fmt.Sprintf("disponible %d", onHand))
}

// runWithRetry reintenta solo fallos de almacenamiento (ErrStorageUnavailable):
// la transacción fallida no dejó estado ambiguo, así que el reintento es
// transparente para el caller. Los rechazos de negocio nunca se reintentan.
func (uc *SubmitMovementUseCase) runWithRetry(ctx context.Context, fn func() error) error {
	backoff := 50 * time.Millisecond
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = fn(); err == nil || !errors.Is(err, domain.ErrStorageUnavailable) {
			return err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return err
}

// mapTimeout traduce deadlines vencidos del contexto a la categoría Timeout
// de la taxonomía: la operación se abandonó sin cambiar estado.
func mapTimeout(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewRejection(domain.ErrTimeout, "deadline", "", "", err.Error())
	}
	return err
}
