package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invorya/stock-ledger/internal/application/dto"
	"github.com/invorya/stock-ledger/internal/application/ledger"
	"github.com/invorya/stock-ledger/internal/application/usecase"
	"github.com/invorya/stock-ledger/internal/infrastructure/memory"
	apphttp "github.com/invorya/stock-ledger/internal/interfaces/http"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

// buildTestApp levanta la API completa sobre el backend en memoria.
func buildTestApp(t *testing.T) *fiber.App {
	t.Helper()
	store := memory.NewStore()
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		WarehouseUC: usecase.NewWarehouseUseCase(store.Warehouses()),
		ProductUC:   usecase.NewProductUseCase(store.Products()),
		Submit:      ledger.NewSubmitMovementUseCase(store, store.Products(), store.Warehouses(), store.Balances()),
		Query:       ledger.NewQueryService(store.Movements(), store.Balances()),
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func movementBody(productID, warehouseID string, qty int64) map[string]any {
	return map[string]any{
		"product_id":      productID,
		"unit":            "unidad",
		"movement_type":   "IN",
		"reference_type":  "PURCHASE",
		"quantity":        qty,
		"to_warehouse_id": warehouseID,
		"cost_per_unit":   "100",
	}
}

// createVia registra producto y bodega por la propia API y devuelve sus IDs.
func createVia(t *testing.T, app *fiber.App) (productID, warehouseID string) {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/products", map[string]any{
		"sku": "SKU-001", "name": "Tornillo", "unit_measure": "unidad", "unit_footprint": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	p := decode[dto.ProductResponse](t, resp)

	resp = doJSON(t, app, http.MethodPost, "/api/warehouses", map[string]any{
		"code": "BOD-01", "name": "Bodega central", "capacity": 100,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	w := decode[dto.WarehouseResponse](t, resp)
	return p.ID, w.ID
}

// ──────────────────────────────────────────────────────────────────────────────
// POST /api/ledger/movements
// ──────────────────────────────────────────────────────────────────────────────

func TestSubmitMovementEndpoint_Creado(t *testing.T) {
	app := buildTestApp(t)
	productID, warehouseID := createVia(t, app)

	resp := doJSON(t, app, http.MethodPost, "/api/ledger/movements", movementBody(productID, warehouseID, 10))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	out := decode[dto.MovementResultResponse](t, resp)
	assert.NotEmpty(t, out.TransactionID)
	require.Len(t, out.Records, 1)
	assert.Equal(t, int64(10), out.Records[0].Quantity)
	require.Len(t, out.Balances, 1)
	assert.Equal(t, int64(10), out.Balances[0].QuantityOnHand)
}

func TestSubmitMovementEndpoint_ValidacionEs400(t *testing.T) {
	app := buildTestApp(t)
	productID, warehouseID := createVia(t, app)

	body := movementBody(productID, warehouseID, 10)
	body["movement_type"] = "TELEPORT"
	resp := doJSON(t, app, http.MethodPost, "/api/ledger/movements", body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, "VALIDATION", out.Code)
	assert.Equal(t, "movement_type", out.Rule)
}

func TestSubmitMovementEndpoint_ProductoDesconocidoEs404(t *testing.T) {
	app := buildTestApp(t)
	_, warehouseID := createVia(t, app)

	resp := doJSON(t, app, http.MethodPost, "/api/ledger/movements", movementBody("fantasma", warehouseID, 10))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	out := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, "NOT_FOUND", out.Code)
}

func TestSubmitMovementEndpoint_StockInsuficienteEs409(t *testing.T) {
	app := buildTestApp(t)
	productID, warehouseID := createVia(t, app)

	resp := doJSON(t, app, http.MethodPost, "/api/ledger/movements", map[string]any{
		"product_id":        productID,
		"movement_type":     "OUT",
		"reference_type":    "SALE",
		"quantity":          -5,
		"from_warehouse_id": warehouseID,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	out := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, "INSUFFICIENT_STOCK", out.Code)
	assert.Equal(t, warehouseID, out.WarehouseID)
}

func TestSubmitMovementEndpoint_CapacidadExcedidaEs409(t *testing.T) {
	app := buildTestApp(t)
	productID, warehouseID := createVia(t, app) // capacidad 100

	resp := doJSON(t, app, http.MethodPost, "/api/ledger/movements", movementBody(productID, warehouseID, 101))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	out := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, "CAPACITY_EXCEEDED", out.Code)
	assert.Equal(t, "capacity", out.Rule)
}

// ──────────────────────────────────────────────────────────────────────────────
// Consultas
// ──────────────────────────────────────────────────────────────────────────────

func TestGetBalanceEndpoint(t *testing.T) {
	app := buildTestApp(t)
	productID, warehouseID := createVia(t, app)
	doJSON(t, app, http.MethodPost, "/api/ledger/movements", movementBody(productID, warehouseID, 7))

	resp := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/ledger/balances/%s/%s", productID, warehouseID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[dto.BalanceResponse](t, resp)
	assert.Equal(t, int64(7), out.QuantityOnHand)

	resp = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/ledger/balances/%s/%s", productID, "wh-inexistente"), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetHistoryEndpoint_CursorEnLaRespuesta(t *testing.T) {
	app := buildTestApp(t)
	productID, warehouseID := createVia(t, app)
	for i := 0; i < 3; i++ {
		doJSON(t, app, http.MethodPost, "/api/ledger/movements", movementBody(productID, warehouseID, 1))
	}

	resp := doJSON(t, app, http.MethodGet, "/api/ledger/movements?product_id="+productID+"&limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[dto.HistoryResponse](t, resp)
	require.Len(t, page.Items, 2)
	require.Positive(t, page.NextAfterID)

	resp = doJSON(t, app, http.MethodGet,
		fmt.Sprintf("/api/ledger/movements?product_id=%s&limit=2&after_id=%d", productID, page.NextAfterID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rest := decode[dto.HistoryResponse](t, resp)
	require.Len(t, rest.Items, 1)
	assert.Greater(t, rest.Items[0].ID, page.Items[1].ID)
}

func TestGetHistoryEndpoint_FechaInvalidaEs400(t *testing.T) {
	app := buildTestApp(t)
	resp := doJSON(t, app, http.MethodGet, "/api/ledger/movements?from=ayer", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetValuationEndpoint(t *testing.T) {
	app := buildTestApp(t)
	productID, warehouseID := createVia(t, app)
	doJSON(t, app, http.MethodPost, "/api/ledger/movements", movementBody(productID, warehouseID, 10))

	resp := doJSON(t, app, http.MethodGet, "/api/ledger/valuation/"+productID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[dto.ValuationResponse](t, resp)
	assert.Equal(t, int64(10), out.TotalQuantity)
	assert.Equal(t, "1000", out.TotalValue.String())
}

func TestListBalancesEndpoint_RequiereBodega(t *testing.T) {
	app := buildTestApp(t)
	resp := doJSON(t, app, http.MethodGet, "/api/ledger/balances", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// Registro
// ──────────────────────────────────────────────────────────────────────────────

func TestProductEndpoint_SKUDuplicadoEs409(t *testing.T) {
	app := buildTestApp(t)
	body := map[string]any{"sku": "SKU-DUP", "name": "Uno", "unit_measure": "unidad", "unit_footprint": 1}
	resp := doJSON(t, app, http.MethodPost, "/api/products", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/products", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestWarehouseEndpoint_NoExisteEs404(t *testing.T) {
	app := buildTestApp(t)
	resp := doJSON(t, app, http.MethodGet, "/api/warehouses/no-existe", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
