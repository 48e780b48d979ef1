// Package cache implementa una cache read-through de saldos sobre Redis.
// Las lecturas de saldo nunca bloquean a los escritores: sirven estado
// commiteado, y el caso de uso invalida la clave al aplicar un movimiento.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/invorya/stock-ledger/internal/domain/entity"
	"github.com/invorya/stock-ledger/internal/domain/repository"
	"github.com/invorya/stock-ledger/pkg/logger"
)

// BalanceCache envuelve el repositorio de saldos con Redis. Si Redis falla,
// degrada a leer directo del repositorio (la cache nunca es autoritativa).
type BalanceCache struct {
	repo   repository.BalanceRepository
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewBalanceCache construye la cache.
func NewBalanceCache(repo repository.BalanceRepository, client *redis.Client, ttl time.Duration, log *logger.Logger) *BalanceCache {
	return &BalanceCache{repo: repo, client: client, ttl: ttl, log: log}
}

func balanceKey(productID, warehouseID string) string {
	return fmt.Sprintf("balance:%s:%s", productID, warehouseID)
}

// Get busca primero en Redis y cae al repositorio en miss o error.
func (c *BalanceCache) Get(ctx context.Context, productID, warehouseID string) (*entity.WarehouseBalance, error) {
	key := balanceKey(productID, warehouseID)
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var b entity.WarehouseBalance
		if jsonErr := json.Unmarshal([]byte(raw), &b); jsonErr == nil {
			return &b, nil
		}
		// Payload corrupto: borrar y releer del repositorio
		c.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn().Err(err).Str("key", key).Msg("redis get falló; leyendo del repositorio")
	}

	b, err := c.repo.Get(ctx, productID, warehouseID)
	if err != nil || b == nil {
		return b, err
	}
	// Carrera conocida: un Set con lectura previa al commit de un movimiento
	// puede aterrizar después del Invalidate de ese movimiento y dejar un
	// saldo desactualizado. La ventana está acotada por el TTL y la cache
	// nunca es autoritativa; las decisiones del libro leen siempre del
	// repositorio bajo lock.
	if payload, jsonErr := json.Marshal(b); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.log.Warn().Err(setErr).Str("key", key).Msg("redis set falló")
		}
	}
	return b, nil
}

// Invalidate borra la clave del saldo tras aplicar un movimiento.
func (c *BalanceCache) Invalidate(ctx context.Context, productID, warehouseID string) {
	if err := c.client.Del(ctx, balanceKey(productID, warehouseID)).Err(); err != nil {
		c.log.Warn().Err(err).Str("product_id", productID).Str("warehouse_id", warehouseID).
			Msg("invalidación de cache falló; la clave expira por TTL")
	}
}
