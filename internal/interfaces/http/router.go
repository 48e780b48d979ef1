package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/invorya/stock-ledger/internal/application/ledger"
	"github.com/invorya/stock-ledger/internal/application/usecase"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	WarehouseUC *usecase.WarehouseUseCase
	ProductUC   *usecase.ProductUseCase
	Submit      *ledger.SubmitMovementUseCase
	Query       *ledger.QueryService
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Registro: bodegas
	warehouses := api.Group("/warehouses")
	warehouseHandler := NewWarehouseHandler(deps.WarehouseUC)
	warehouses.Post("/", warehouseHandler.Create)
	warehouses.Get("/", warehouseHandler.List)
	warehouses.Get("/:id", warehouseHandler.GetByID)
	warehouses.Put("/:id", warehouseHandler.Update)
	warehouses.Delete("/:id", warehouseHandler.Delete)

	// Registro: productos
	products := api.Group("/products")
	productHandler := NewProductHandler(deps.ProductUC)
	products.Post("/", productHandler.Create)
	products.Get("/", productHandler.List)
	products.Get("/:id", productHandler.GetByID)
	products.Put("/:id", productHandler.Update)
	products.Delete("/:id", productHandler.Delete)

	// Libro de inventario
	ledgerGroup := api.Group("/ledger")
	ledgerHandler := NewLedgerHandler(deps.Submit, deps.Query)
	ledgerGroup.Post("/movements", ledgerHandler.SubmitMovement)
	ledgerGroup.Get("/movements", ledgerHandler.GetHistory)
	ledgerGroup.Get("/balances", ledgerHandler.ListBalances)
	ledgerGroup.Get("/balances/:productId/:warehouseId", ledgerHandler.GetBalance)
	ledgerGroup.Get("/valuation/:productId", ledgerHandler.GetValuation)
}
