// db/redis.go
package db

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	logger "github.com/verdictd/verdict/logging"
	"github.com/verdictd/verdict/model"
)

var (
	RedisClient   *redis.Client
	encryptionKey []byte
)

func InitRedis() error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:         viper.GetString("redis.addr"),
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt("redis.db"),
		DialTimeout:  viper.GetDuration("redis.dialTimeout"),
		ReadTimeout:  viper.GetDuration("redis.readTimeout"),
		WriteTimeout: viper.GetDuration("redis.writeTimeout"),
		PoolSize:     viper.GetInt("redis.poolSize"),
		PoolTimeout:  viper.GetDuration("redis.poolTimeout"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	encryptionKey = []byte(viper.GetString("redis.encryptionKey"))
	if len(encryptionKey) != 32 {
		return fmt.Errorf("invalid encryption key length: must be 32 bytes")
	}

	logger.Info("Successfully connected to Redis")
	return nil
}

func CloseRedis() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		}
	}
}

func encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// SnapshotCache is the redis-backed snapshot cache. It exists so services
// can take the cache as an interface; all methods operate on the shared
// client initialized by InitRedis.
type SnapshotCache struct{}

func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{}
}

func (sc *SnapshotCache) CacheSnapshot(ctx context.Context, snapshot *model.PolicySnapshot) error {
	return CacheSnapshot(ctx, snapshot)
}

func (sc *SnapshotCache) GetCachedSnapshot(ctx context.Context, storeID string) (*model.PolicySnapshot, error) {
	return GetCachedSnapshot(ctx, storeID)
}

func (sc *SnapshotCache) DeleteCachedSnapshot(ctx context.Context, storeID string) error {
	return DeleteCachedSnapshot(ctx, storeID)
}

// CacheSnapshot stores an encrypted serialized policy-store snapshot so a
// restarted instance can warm its store manager without hitting Neo4j.
func CacheSnapshot(ctx context.Context, snapshot *model.PolicySnapshot) error {
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	encryptedSnapshot, err := encrypt(snapshotJSON)
	if err != nil {
		return fmt.Errorf("failed to encrypt snapshot: %w", err)
	}

	key := fmt.Sprintf("policystore:%s", snapshot.StoreID)
	defaultTTL := viper.GetDuration("redis.defaultCacheTTL")
	err = RedisClient.Set(ctx, key, base64.StdEncoding.EncodeToString(encryptedSnapshot), defaultTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}

	logger.Debug("Snapshot cached successfully",
		zap.String("storeID", snapshot.StoreID),
		zap.String("version", snapshot.Version))
	return nil
}

func GetCachedSnapshot(ctx context.Context, storeID string) (*model.PolicySnapshot, error) {
	key := fmt.Sprintf("policystore:%s", storeID)
	encryptedSnapshotStr, err := RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		logger.Debug("Snapshot not found in cache", zap.String("storeID", storeID))
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get snapshot from cache: %w", err)
	}

	encryptedSnapshot, err := base64.StdEncoding.DecodeString(encryptedSnapshotStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	snapshotJSON, err := decrypt(encryptedSnapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt snapshot: %w", err)
	}

	var snapshot model.PolicySnapshot
	err = json.Unmarshal(snapshotJSON, &snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	logger.Debug("Snapshot retrieved from cache", zap.String("storeID", storeID))
	return &snapshot, nil
}

func DeleteCachedSnapshot(ctx context.Context, storeID string) error {
	key := fmt.Sprintf("policystore:%s", storeID)
	err := RedisClient.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("failed to delete snapshot from cache: %w", err)
	}
	logger.Debug("Snapshot deleted from cache", zap.String("storeID", storeID))
	return nil
}

func RateLimit(ctx context.Context, key string, limit int, per time.Duration) (bool, error) {
	pipe := RedisClient.Pipeline()
	now := time.Now().UnixNano()
	key = fmt.Sprintf("ratelimit:%s", key)

	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now-(per.Nanoseconds())))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, per)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to execute rate limit commands: %w", err)
	}

	count := cmds[2].(*redis.IntCmd).Val()
	allowed := count <= int64(limit)
	logger.Debug("Rate limit check",
		zap.String("key", key),
		zap.Int64("count", count),
		zap.Int("limit", limit),
		zap.Bool("allowed", allowed))
	return allowed, nil
}
