// Package cache хранит последние записи и оценки пульса в Redis
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"ppg-service/internal/models"
)

const (
	// LatestRecordsKey список последних записей, новые в голове
	LatestRecordsKey = "records:latest"
	// LatestBPMKey последняя свежая оценка пульса
	LatestBPMKey = "bpm:latest"
	// EstimatesKey счетчик свежих оценок
	EstimatesKey = "estimates:total"
	// MaxRecords сколько записей держим в списке
	MaxRecords = 1000
	// BPMTTL время жизни последней оценки
	BPMTTL = 1 * time.Minute
)

// RedisCache реализует кэширование в Redis
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache создает новое подключение к Redis
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Name имя приемника записей
func (r *RedisCache) Name() string {
	return "redis"
}

// Publish принимает запись от диспетчера
func (r *RedisCache) Publish(ctx context.Context, rec models.Record) error {
	return r.CacheRecord(ctx, rec)
}

// CacheRecord сохраняет запись одним пайплайном.
// Свежая оценка дополнительно обновляет bpm:latest и счетчик.
func (r *RedisCache) CacheRecord(ctx context.Context, rec models.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.LPush(ctx, LatestRecordsKey, data)
	pipe.LTrim(ctx, LatestRecordsKey, 0, MaxRecords-1)
	if rec.Fresh {
		pipe.Set(ctx, LatestBPMKey, rec.BPM, BPMTTL)
		pipe.Incr(ctx, EstimatesKey)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache record: %w", err)
	}
	return nil
}

// LatestRecords возвращает последние count записей, новые первыми
func (r *RedisCache) LatestRecords(ctx context.Context, count int64) ([]models.Record, error) {
	if count <= 0 {
		return []models.Record{}, nil
	}
	data, err := r.client.LRange(ctx, LatestRecordsKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get latest records: %w", err)
	}

	records := make([]models.Record, 0, len(data))
	for _, d := range data {
		var rec models.Record
		if err := json.Unmarshal([]byte(d), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// LatestBPM возвращает последнюю оценку; false если она истекла или отсутствует
func (r *RedisCache) LatestBPM(ctx context.Context) (uint8, bool, error) {
	val, err := r.client.Get(ctx, LatestBPMKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	bpm, err := strconv.ParseUint(val, 10, 8)
	if err != nil {
		return 0, false, fmt.Errorf("malformed %s value %q: %w", LatestBPMKey, val, err)
	}
	return uint8(bpm), true, nil
}

// Estimates возвращает значение счетчика свежих оценок
func (r *RedisCache) Estimates(ctx context.Context) (int64, error) {
	val, err := r.client.Get(ctx, EstimatesKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

// Ping проверяет соединение с Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// FlushDB очищает базу (только для тестов)
func (r *RedisCache) FlushDB(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}
