package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	appledger "github.com/invorya/stock-ledger/internal/application/ledger"
	"github.com/invorya/stock-ledger/internal/application/usecase"
	"github.com/invorya/stock-ledger/internal/domain/repository"
	"github.com/invorya/stock-ledger/internal/infrastructure/cache"
	"github.com/invorya/stock-ledger/internal/infrastructure/memory"
	"github.com/invorya/stock-ledger/internal/infrastructure/postgres"
	httpRouter "github.com/invorya/stock-ledger/internal/interfaces/http"
	"github.com/invorya/stock-ledger/pkg/config"
	"github.com/invorya/stock-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("backend", cfg.Ledger.Backend).
		Msg("iniciando aplicación")

	ctx := context.Background()

	// Backend del libro: PostgreSQL en producción; memoria para desarrollo
	// local y tests de integración sin base de datos.
	var (
		txRunner      appledger.TxRunner
		movementRepo  repository.MovementRepository
		balanceRepo   repository.BalanceRepository
		warehouseRepo repository.WarehouseRepository
		productRepo   repository.ProductRepository
	)
	switch cfg.Ledger.Backend {
	case config.BackendMemory:
		store := memory.NewStore()
		txRunner = store
		movementRepo = store.Movements()
		balanceRepo = store.Balances()
		warehouseRepo = store.Warehouses()
		productRepo = store.Products()
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		txRunner = postgres.NewTxRunner(pool)
		movementRepo = postgres.NewMovementRepository(pool)
		balanceRepo = postgres.NewBalanceRepository(pool)
		warehouseRepo = postgres.NewWarehouseRepository(pool)
		productRepo = postgres.NewProductRepository(pool)
	}

	warehouseUC := usecase.NewWarehouseUseCase(warehouseRepo)
	productUC := usecase.NewProductUseCase(productRepo)
	submitUC := appledger.NewSubmitMovementUseCase(txRunner, productRepo, warehouseRepo, balanceRepo)
	queryService := appledger.NewQueryService(movementRepo, balanceRepo)

	// Cache de saldos (opcional): read-through sobre Redis, invalidada por
	// el caso de uso al aplicar cada movimiento.
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis no disponible, continuando sin cache de saldos")
		} else {
			balanceCache := cache.NewBalanceCache(balanceRepo, rdb, time.Duration(cfg.Redis.TTLSecs)*time.Second, log)
			submitUC.WithInvalidator(balanceCache)
			queryService.WithBalanceReader(balanceCache)
			log.Info().Str("addr", cfg.Redis.Addr).Msg("cache de saldos habilitada")
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Stock Ledger API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		WarehouseUC: warehouseUC,
		ProductUC:   productUC,
		Submit:      submitUC,
		Query:       queryService,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
