package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invorya/stock-ledger/internal/application/ledger"
	"github.com/invorya/stock-ledger/internal/domain"
	"github.com/invorya/stock-ledger/internal/domain/entity"
	"github.com/invorya/stock-ledger/internal/domain/repository"
	"github.com/invorya/stock-ledger/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixture: motor del libro sobre el backend en memoria
// ──────────────────────────────────────────────────────────────────────────────

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	store  *memory.Store
	submit *ledger.SubmitMovementUseCase
	query  *ledger.QueryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	return &fixture{
		store:  store,
		submit: ledger.NewSubmitMovementUseCase(store, store.Products(), store.Warehouses(), store.Balances()),
		query:  ledger.NewQueryService(store.Movements(), store.Balances()),
	}
}

func (f *fixture) seedProduct(t *testing.T, id string, footprint int64) {
	t.Helper()
	err := f.store.Products().Create(context.Background(), &entity.Product{
		ID: id, SKU: "sku-" + id, Name: id, UnitMeasure: "unidad", UnitFootprint: footprint,
	})
	require.NoError(t, err)
}

func (f *fixture) seedWarehouse(t *testing.T, id string, capacity int64) {
	t.Helper()
	err := f.store.Warehouses().Create(context.Background(), &entity.Warehouse{
		ID: id, Code: "c-" + id, Name: id, Capacity: capacity,
	})
	require.NoError(t, err)
}

func (f *fixture) mustSubmit(t *testing.T, intent ledger.MovementIntent) *ledger.MovementResult {
	t.Helper()
	res, err := f.submit.SubmitMovement(context.Background(), intent)
	require.NoError(t, err)
	return res
}

func (f *fixture) balance(t *testing.T, productID, warehouseID string) *entity.WarehouseBalance {
	t.Helper()
	b, err := f.store.Balances().Get(context.Background(), productID, warehouseID)
	require.NoError(t, err)
	return b
}

func inIntent(productID, warehouseID string, qty int64, cost string) ledger.MovementIntent {
	intent := ledger.MovementIntent{
		ProductID:     productID,
		Unit:          "unidad",
		MovementType:  entity.MovementTypeIN,
		ReferenceType: entity.ReferenceTypePURCHASE,
		Quantity:      qty,
		ToWarehouseID: warehouseID,
	}
	if cost != "" {
		c := dec(cost)
		intent.CostPerUnit = &c
	}
	return intent
}

func outIntent(productID, warehouseID string, qty int64) ledger.MovementIntent {
	return ledger.MovementIntent{
		ProductID:       productID,
		Unit:            "unidad",
		MovementType:    entity.MovementTypeOUT,
		ReferenceType:   entity.ReferenceTypeSALE,
		Quantity:        -qty,
		FromWarehouseID: warehouseID,
	}
}

func transferIntent(productID, from, to string, qty int64) ledger.MovementIntent {
	return ledger.MovementIntent{
		ProductID:       productID,
		Unit:            "unidad",
		MovementType:    entity.MovementTypeTRANSFER,
		ReferenceType:   entity.ReferenceTypeTRANSFER,
		Quantity:        qty,
		FromWarehouseID: from,
		ToWarehouseID:   to,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Costo promedio ponderado y proyección de saldos
// ──────────────────────────────────────────────────────────────────────────────

func TestSubmitMovement_EntradasReprecianPromedio(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod-1", 1)
	f.seedWarehouse(t, "wh-1", 0)

	f.mustSubmit(t, inIntent("prod-1", "wh-1", 10, "100"))
	f.mustSubmit(t, inIntent("prod-1", "wh-1", 5, "160"))

	b := f.balance(t, "prod-1", "wh-1")
	require.NotNil(t, b)
	assert.Equal(t, int64(15), b.QuantityOnHand)
	assert.True(t, b.WeightedAverageCost.Equal(dec("120")), "promedio esperado 120, obtuve %s", b.WeightedAverageCost)
}

func TestSubmitMovement_SalidaConsumeAlPromedioVigente(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod-1", 1)
	f.seedWarehouse(t, "wh-1", 0)

	f.mustSubmit(t, inIntent("prod-1", "wh-1", 10, "100"))
	res := f.mustSubmit(t, outIntent("prod-1", "wh-1", 4))

	require.Len(t, res.Records, 1)
	assert.True(t, res.Records[0].CostPerUnit.Equal(dec("100")), "la salida se valora al promedio vigente")

	b := f.balance(t, "prod-1", "wh-1")
	assert.Equal(t, int64(6), b.QuantityOnHand)
	assert.True(t, b.WeightedAverageCost.Equal(dec("100")), "la salida no altera el promedio")
}

// Entrada sin costo (recuento de stock encontrado): el promedio queda intacto.
func TestSubmitMovement_EntradaSinCostoNoReprecia(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod-1", 1)
	f.seedWarehouse(t, "wh-1", 0)

	f.mustSubmit(t, inIntent("prod-1", "wh-1", 10, "100"))
	f.mustSubmit(t, inIntent("prod-1", "wh-1", 2, ""))

	b := f.balance(t, "prod-1", "wh-1")
	assert.Equal(t, int64(12), b.QuantityOnHand)
	assert.True(t, b.WeightedAverageCost.Equal(dec("100")))
}

// El valor viaja con la unidad: el traslado entra al destino con el promedio
// del origen y reprecia el promedio del destino.
func TestSubmitMovement_TransferHeredaCostoDelOrigen(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod-1", 1)
	f.seedWarehouse(t, "wh-a", 0)
	f.seedWarehouse(t, "wh-b", 0)

	f.mustSubmit(t, inIntent("prod-1", "wh-a", 10, "100"))
	f.mustSubmit(t, inIntent("prod-1", "wh-b", 6, "50"))
	res := f.mustSubmit(t, transferIntent("prod-1", "wh-a", "wh-b", 4))

	require.Len(t, res.Records, 2, "un traslado produce dos mitades")
	assert.Equal(t, res.Records[0].TransactionID, res.Records[1].TransactionID)
	assert.Equal(t, int64(-4), res.Records[0].Quantity, "la mitad de salida va primera en el libro")
	assert.Equal(t, int64(4), res.Records[1].Quantity)

	a := f.balance(t, "prod-1", "wh-a")
	assert.Equal(t, int64(6), a.QuantityOnHand)
	assert.True(t, a.WeightedAverageCost.Equal(dec("100")))

	// (6*50 + 4*100) / 10 = 70
	b := f.balance(t, "prod-1", "wh-b")
	assert.Equal(t, int64(10), b.QuantityOnHand)
	assert.True(t, b.WeightedAverageCost.Equal(dec("70")), "promedio destino esperado 70, obtuve %s", b.WeightedAverageCost)
}

// ──────────────────────────────────────────────────────────────────────────────
// Compuertas: stock no-negativo y capacidad
// ──────────────────────────────────────────────────────────────────────────────

func TestSubmitMovement_StockInsuficiente(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod-1", 1)
	f.seedWarehouse(t, "wh-1", 0)

	f.mustSubmit(t, inIntent("prod-1", "wh-1", 20, "10"))
	f.mustSubmit(t, outIntent("prod-1", "wh-1", 20)) // vaciar exacto es válido

	_, err := f.submit.SubmitMovement(context.Background(), outIntent("prod-1", "wh-1", 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))

	b := f.balance(t, "prod-1", "wh-1")
	assert.Equal(t, int64(0), b.QuantityOnHand, "el rechazo no toca el saldo")
}

func TestSubmitMovement_CapacidadExcedida(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod-1", 1)
	f.seedWarehouse(t, "wh-1", 100)

	f.mustSubmit(t, inIntent("prod-1", "wh-1", 95, "10"))

	_, err := f.submit.SubmitMovement(context.Background(), inIntent("prod-1", "wh-1", 6, "10"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCapacityExceeded))
	var rej *domain.Rejection
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "capacity", rej.Rule)
	assert.Equal(t, "wh-1", rej.WarehouseID)

	// Llenar hasta el límite exacto es válido
	f.mustSubmit(t, inIntent("prod-1", "wh-1", 5, "10"))
	wh, err := f.store.Warehouses().GetByID(context.Background(), "wh-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), wh.OccupiedCapacity)
}

// La huella por unidad la provee el registro: 3 unidades de huella 5 ocupan 15.
func TestSubmitMovement_CapacidadUsaHuellaDelProducto(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "voluminoso", 5)
	f.seedWarehouse(t, "wh-1", 20)

	f.mustSubmit(t, inIntent("voluminoso", "wh-1", 3, "10"))
	wh, err := f.store.Warehouses().GetByID(context.Background(), "wh-1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), wh.OccupiedCapacity)

	_, err = f.submit.SubmitMovement(context.Background(), inIntent("voluminoso", "wh-1", 2, "10"))
	assert.True(t, errors.Is(err, domain.ErrCapacityExceeded), "15 + 10 > 20")
}

func TestSubmitMovement_ReferenciasDesconocidas(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod-1", 1)
	f.seedWarehouse(t, "wh-1", 0)

	_, err := f.submit.SubmitMovement(context.Background(), inIntent("fantasma", "wh-1", 1, ""))
	assert.True(t, errors.Is(err, domain.ErrNotFound), "producto desconocido")

	_, err = f.submit.SubmitMovement(context.Background(), inIntent("prod-1", "wh-99", 1, ""))
	assert.True(t, errors.Is(err, domain.ErrNotFound), "bodega desconocida")
}

// ──────────────────────────────────────────────────────────────────────────────
// Atomicidad del traslado (inyección de fallo en la segunda mitad)
// ──────────────────────────────────────────────────────────────────────────────

// failingTxRunner envuelve el runner real y hace fallar el N-ésimo Append
// dentro de la transacción.
type failingTxRunner struct {
	inner   ledger.TxRunner
	failOn  int
	appends int
}

func (r *failingTxRunner) Run(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	balanceRepo repository.BalanceRepository,
	warehouseRepo repository.WarehouseRepository,
) error) error {
	return r.inner.Run(ctx, func(
		movRepo repository.MovementRepository,
		balanceRepo repository.BalanceRepository,
		warehouseRepo repository.WarehouseRepository,
	) error {
		return fn(&failingMovRepo{MovementRepository: movRepo, runner: r}, balanceRepo, warehouseRepo)
	})
}

type failingMovRepo struct {
	repository.MovementRepository
	runner *failingTxRunner
}

func (r *failingMovRepo) Append(ctx context.Context, m *entity.MovementRecord) error {
	r.runner.appends++
	if r.runner.appends == r.runner.failOn {
		return fmt.Errorf("disco lleno")
	}
	return r.MovementRepository.Append(ctx, m)
}

func TestSubmitMovement_TransferNuncaQuedaAMedias(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod-1", 1)
	f.seedWarehouse(t, "wh-a", 0)
	f.seedWarehouse(t, "wh-b", 0)
	f.mustSubmit(t, inIntent("prod-1", "wh-a", 10, "100"))

	runner := &failingTxRunner{inner: f.store, failOn: 2}
	submit := ledger.NewSubmitMovementUseCase(runner, f.store.Products(), f.store.Warehouses(), f.store.Balances())

	_, err := submit.SubmitMovement(context.Background(), transferIntent("prod-1", "wh-a", "wh-b", 4))
	require.Error(t, err)

	// La primera mitad se descartó con el rollback: ni registros ni saldos
	// parciales son observables.
	a := f.balance(t, "prod-1", "wh-a")
	assert.Equal(t, int64(10), a.QuantityOnHand)
	assert.Nil(t, f.balance(t, "prod-1", "wh-b"))

	list, err := f.store.Movements().List(context.Background(), repository.MovementFilter{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, list, 1, "solo la entrada inicial quedó en el libro")
}

// ──────────────────────────────────────────────────────────────────────────────
// Reintentos de fallos de almacenamiento
// ──────────────────────────────────────────────────────────────────────────────

// flakyTxRunner falla los primeros intentos con error de almacenamiento y
// luego delega en el runner real.
type flakyTxRunner struct {
	inner    ledger.TxRunner
	failures int
	attempts int
}

func (r *flakyTxRunner) Run(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	balanceRepo repository.BalanceRepository,
	warehouseRepo repository.WarehouseRepository,
) error) error {
	r.attempts++
	if r.attempts <= r.failures {
		return fmt.Errorf("conexión caída: %w", domain.ErrStorageUnavailable)
	}
	return r.inner.Run(ctx, fn)
}

func TestSubmitMovement_ReintentaSoloFallosDeAlmacenamiento(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod-1", 1)
	f.seedWarehouse(t, "wh-1", 0)

	runner := &flakyTxRunner{inner: f.store, failures: 2}
	submit := ledger.NewSubmitMovementUseCase(runner, f.store.Products(), f.store.Warehouses(), f.store.Balances())

	res, err := submit.SubmitMovement(context.Background(), inIntent("prod-1", "wh-1", 5, "10"))
	require.NoError(t, err, "el tercer intento commitea")
	assert.Equal(t, 3, runner.attempts)
	require.Len(t, res.Records, 1)

	list, err := f.store.Movements().List(context.Background(), repository.MovementFilter{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, list, 1, "exactamente un registro pese a los reintentos")
}

func TestSubmitMovement_AgotaReintentos(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod-1", 1)
	f.seedWarehouse(t, "wh-1", 0)

	runner := &flakyTxRunner{inner: f.store, failures: 10}
	submit := ledger.NewSubmitMovementUseCase(runner, f.store.Products(), f.store.Warehouses(), f.store.Balances())

	_, err := submit.SubmitMovement(context.Background(), inIntent("prod-1", "wh-1", 5, "10"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStorageUnavailable))
	assert.Equal(t, 3, runner.attempts, "los reintentos son acotados")
}

// ──────────────────────────────────────────────────────────────────────────────
// Concurrencia
// ──────────────────────────────────────────────────────────────────────────────

// Salidas concurrentes contra el mismo saldo: el stock jamás queda negativo y
// cada éxito descuenta exactamente una unidad.
func TestSubmitMovement_SalidasConcurrentesNuncaNegativo(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod-1", 1)
	f.seedWarehouse(t, "wh-1", 0)
	f.mustSubmit(t, inIntent("prod-1", "wh-1", 10, "10"))

	const workers = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.submit.SubmitMovement(context.Background(), outIntent("prod-1", "wh-1", 1))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("error inesperado: %v", err)
			}
		}()
	}
	wg.Wait()

	b := f.balance(t, "prod-1", "wh-1")
	assert.Equal(t, int64(10-successes), b.QuantityOnHand)
	assert.GreaterOrEqual(t, b.QuantityOnHand, int64(0))
	assert.LessOrEqual(t, successes, 10)
}

// Traslados en direcciones opuestas entre el mismo par de bodegas: el orden
// global de adquisición evita el deadlock y la conservación se mantiene.
func TestSubmitMovement_TrasladosOpuestosConcurrentes(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod-1", 1)
	f.seedWarehouse(t, "wh-a", 0)
	f.seedWarehouse(t, "wh-b", 0)
	f.mustSubmit(t, inIntent("prod-1", "wh-a", 50, "10"))
	f.mustSubmit(t, inIntent("prod-1", "wh-b", 50, "10"))

	const rounds = 20
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.submit.SubmitMovement(context.Background(), transferIntent("prod-1", "wh-a", "wh-b", 1))
			if err != nil && !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("traslado a->b: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			_, err := f.submit.SubmitMovement(context.Background(), transferIntent("prod-1", "wh-b", "wh-a", 1))
			if err != nil && !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("traslado b->a: %v", err)
			}
		}()
	}
	wg.Wait()

	a := f.balance(t, "prod-1", "wh-a")
	b := f.balance(t, "prod-1", "wh-b")
	assert.Equal(t, int64(100), a.QuantityOnHand+b.QuantityOnHand, "los traslados conservan el total")
	assert.GreaterOrEqual(t, a.QuantityOnHand, int64(0))
	assert.GreaterOrEqual(t, b.QuantityOnHand, int64(0))
}

// Dos intents idénticos son dos movimientos: el libro no deduplica, la
// correlación es responsabilidad del caller vía reference_number.
func TestSubmitMovement_IntentsIdenticosSonDosMovimientos(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod-1", 1)
	f.seedWarehouse(t, "wh-1", 0)

	intent := inIntent("prod-1", "wh-1", 5, "10")
	intent.ReferenceNumber = "FAC-001"
	r1 := f.mustSubmit(t, intent)
	r2 := f.mustSubmit(t, intent)

	assert.NotEqual(t, r1.Records[0].ID, r2.Records[0].ID)
	assert.NotEqual(t, r1.TransactionID, r2.TransactionID)

	b := f.balance(t, "prod-1", "wh-1")
	assert.Equal(t, int64(10), b.QuantityOnHand)
}

// ──────────────────────────────────────────────────────────────────────────────
// Deadline bajo contención de lock
// ──────────────────────────────────────────────────────────────────────────────

func TestSubmitMovement_TimeoutEsperandoLock(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod-1", 1)
	f.seedWarehouse(t, "wh-1", 0)
	f.mustSubmit(t, inIntent("prod-1", "wh-1", 10, "10"))

	// Una transacción rival retiene el lock de la fila de saldo hasta que
	// cerremos release.
	release := make(chan struct{})
	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.store.Run(context.Background(), func(
			movRepo repository.MovementRepository,
			balanceRepo repository.BalanceRepository,
			warehouseRepo repository.WarehouseRepository,
		) error {
			_, err := balanceRepo.GetForUpdate(context.Background(), "prod-1", "wh-1")
			if err != nil {
				return err
			}
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := f.submit.SubmitMovement(ctx, outIntent("prod-1", "wh-1", 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTimeout), "deadline vencido esperando el lock: %v", err)

	close(release)
	<-done

	b := f.balance(t, "prod-1", "wh-1")
	assert.Equal(t, int64(10), b.QuantityOnHand, "el abandono no cambió estado")
}

// ──────────────────────────────────────────────────────────────────────────────
// Conservación: replay del libro reproduce los saldos
// ──────────────────────────────────────────────────────────────────────────────

func TestReplay_ReproduceLosSaldos(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod-1", 1)
	f.seedWarehouse(t, "wh-a", 0)
	f.seedWarehouse(t, "wh-b", 0)

	f.mustSubmit(t, inIntent("prod-1", "wh-a", 30, "100"))
	f.mustSubmit(t, inIntent("prod-1", "wh-b", 10, "80"))
	f.mustSubmit(t, transferIntent("prod-1", "wh-a", "wh-b", 12))
	f.mustSubmit(t, outIntent("prod-1", "wh-b", 5))
	f.mustSubmit(t, ledger.MovementIntent{
		ProductID:     "prod-1",
		Unit:          "unidad",
		MovementType:  entity.MovementTypeADJUSTMENT,
		ReferenceType: entity.ReferenceTypeADJUSTMENT,
		Quantity:      3,
		ToWarehouseID: "wh-a",
	})

	replayed := map[string]int64{}
	lastID := int64(0)
	err := f.query.Replay(context.Background(), "prod-1", func(m *entity.MovementRecord) error {
		require.Greater(t, m.ID, lastID, "el replay avanza en orden de append")
		lastID = m.ID
		replayed[m.WarehouseID] += m.Quantity
		return nil
	})
	require.NoError(t, err)

	a := f.balance(t, "prod-1", "wh-a")
	b := f.balance(t, "prod-1", "wh-b")
	assert.Equal(t, a.QuantityOnHand, replayed["wh-a"])
	assert.Equal(t, b.QuantityOnHand, replayed["wh-b"])
	assert.Equal(t, int64(38), replayed["wh-a"]+replayed["wh-b"], "30 + 10 - 5 + 3, el traslado no crea ni destruye")
}
