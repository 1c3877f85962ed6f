package paylock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hrm8/walletcore/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var ErrPaymentInProgress = errors.New("payment_in_progress")

// Locker guards payment orchestration against concurrent duplicates for
// the same job or subscription reference. A nil Locker (redis not
// configured) degrades to no guarding; the ledger's row locks still
// keep balances correct.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewClient(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// Acquire takes the lock or fails with ErrPaymentInProgress when another
// request holds it. Returns a release func safe to defer.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	if key == "" {
		return nil, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPaymentInProgress
	}
	release := func() {
		_ = l.script.Run(context.Background(), l.client, []string{key}, token).Err()
	}
	return release, nil
}
