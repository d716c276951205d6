package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/config"
)

// Client envoltorio de Redis.
// Usos: lista de revocación de tokens, rate limit de escrituras y backend
// opcional de la cola offline del cliente.
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient crea la conexión y verifica con Ping
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("no se pudo conectar a Redis: %w", err)
	}

	logger.Info("Redis conectado", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── lista de revocación ──

const revokedPrefix = "token:revoked:"

// IsRevoked indica si el JTI está en la lista de revocación
func (c *Client) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, revokedPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ── rate limit ──

// CheckRateLimit ventana deslizante sobre un sorted set.
// Devuelve true si la petición actual entra en el límite.
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window).UnixNano()

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	card := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, goredis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString(),
	})
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return card.Val() < int64(limit), nil
}

// ── cola offline ──

// número de reintentos cuando otra terminal modifica la cola durante un WATCH
const queueTxRetries = 10

// ErrQueueContention la cola cambió en cada reintento de la transacción
var ErrQueueContention = errors.New("la cola offline en Redis cambió durante la actualización, intente de nuevo")

// LoadQueue lee el arreglo JSON guardado bajo key; nil si no existe
func (c *Client) LoadQueue(ctx context.Context, key string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	return data, err
}

// UpdateQueue lee, transforma y reescribe key de forma atómica (WATCH/MULTI).
// fn puede ejecutarse más de una vez si otra terminal escribe en medio.
func (c *Client) UpdateQueue(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	txf := func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for i := 0; i < queueTxRetries; i++ {
		err := c.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			return err
		}
		c.logger.Debug("cola offline modificada por otra terminal, reintentando", zap.String("key", key), zap.Int("attempt", i+1))
	}
	return ErrQueueContention
}

// MoveQueueAside renombra key a aside (valor ilegible que no debe sobrescribirse)
func (c *Client) MoveQueueAside(ctx context.Context, key, aside string) error {
	return c.rdb.Rename(ctx, key, aside).Err()
}

// Close cierra la conexión
func (c *Client) Close() error {
	return c.rdb.Close()
}
