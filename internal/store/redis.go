package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trackme/realtime/internal/config"
	"trackme/realtime/internal/domain"
)

type RedisStore struct {
	client   *redis.Client
	stateTTL time.Duration
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client:   client,
		stateTTL: time.Duration(cfg.StateTTLSeconds) * time.Second,
	}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// MirrorPosition keeps the live dashboard view of a user current: a state
// hash with TTL, a geo set entry, and a pub/sub notification, all in one
// pipeline round trip.
func (r *RedisStore) MirrorPosition(ctx context.Context, upd domain.LocationUpdate, coords [2]float64) error {
	stateData := map[string]interface{}{
		"user_id":      upd.UserID,
		"lat":          upd.Lat.String(),
		"long":         upd.Long.String(),
		"speed":        float64(upd.Speed),
		"vehicle_type": upd.Type,
		"updated_at":   time.Now().Unix(),
	}

	pubPayload, err := json.Marshal(stateData)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	stateKey := fmt.Sprintf("user:%s:state", upd.UserID)
	pubChannel := fmt.Sprintf("user:%s:telemetry", upd.UserID)

	pipe := r.client.Pipeline()

	pipe.HSet(ctx, stateKey, stateData)
	pipe.Expire(ctx, stateKey, r.stateTTL)
	pipe.GeoAdd(ctx, "users:geo", &redis.GeoLocation{
		Name:      upd.UserID,
		Longitude: coords[0],
		Latitude:  coords[1],
	})
	pipe.Publish(ctx, pubChannel, pubPayload)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}

	return nil
}

// PublishOverSpeed fans the violation out to dashboard subscribers. The
// room emit to the user's own devices happens separately.
func (r *RedisStore) PublishOverSpeed(ctx context.Context, rec *domain.ViolationRecord) error {
	payload, err := json.Marshal(map[string]interface{}{
		"user_id":        rec.UserID,
		"speed":          rec.Speed,
		"speed_limit":    rec.SpeedLimit,
		"speed_limit_id": rec.SpeedLimitID,
		"vehicle_type":   rec.VehicleType,
		"lane_type":      rec.LaneType,
		"latitude":       rec.Latitude,
		"longitude":      rec.Longitude,
		"created_at":     rec.CreatedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	channel := fmt.Sprintf("user:%s:alerts", rec.UserID)
	return r.client.Publish(ctx, channel, payload).Err()
}

// PublishSOS records the SOS on the monitoring channel. SOS has no room
// emit and no database row; this publish plus the audit log is the whole
// durable trace.
func (r *RedisStore) PublishSOS(ctx context.Context, upd domain.LocationUpdate) error {
	payload, err := json.Marshal(map[string]interface{}{
		"user_id":      upd.UserID,
		"lat":          upd.Lat.String(),
		"long":         upd.Long.String(),
		"speed":        float64(upd.Speed),
		"vehicle_type": upd.Type,
		"received_at":  time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sos: %w", err)
	}
	return r.client.Publish(ctx, "sos:events", payload).Err()
}

func (r *RedisStore) GetAPIKey(ctx context.Context, apiKey string) (string, error) {
	key := fmt.Sprintf("client:auth:%s", apiKey)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get api key failed: %w", err)
	}
	return val, nil
}
