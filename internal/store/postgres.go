package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"trackme/realtime/internal/config"
	"trackme/realtime/internal/domain"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg *config.Config) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UpdatePosition writes through the user's last known position. Returns
// false when no user row matches — the caller must not acknowledge an
// update for an unknown user.
func (s *PostgresStore) UpdatePosition(ctx context.Context, userID, lat, long string, coords [2]float64) (bool, error) {
	query := `
		UPDATE users
		SET latitude = $2, longitude = $3, coordinates = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`
	var id string
	err := s.pool.QueryRow(ctx, query, userID, lat, long, coords[:]).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("position update failed for user %s: %w", userID, err)
	}
	return true, nil
}

// Resolve returns the active speed limit for the given vehicle/lane pair,
// or the default context when both filters are empty. Soft-deleted rows are
// never resolvable. A miss is (nil, nil), not an error.
func (s *PostgresStore) Resolve(ctx context.Context, vehicleType, laneType string) (*domain.SpeedLimitContext, error) {
	if vehicleType == "" && laneType == "" {
		vehicleType = domain.DefaultVehicleType
		laneType = domain.DefaultLaneType
	}

	query := `
		SELECT id, speed_limit, vehicle_type, lane_type
		FROM speed_limits
		WHERE is_deleted = false AND vehicle_type = $1 AND lane_type = $2
		ORDER BY id
		LIMIT 1
	`
	var sc domain.SpeedLimitContext
	err := s.pool.QueryRow(ctx, query, vehicleType, laneType).
		Scan(&sc.SpeedLimitID, &sc.SpeedLimit, &sc.VehicleType, &sc.LaneType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("speed limit resolve failed for (%s, %s): %w", vehicleType, laneType, err)
	}
	return &sc, nil
}

// AppendViolation persists one over-speed event. Fills in the generated id
// and created_at on the record.
func (s *PostgresStore) AppendViolation(ctx context.Context, rec *domain.ViolationRecord) (int64, error) {
	query := `
		INSERT INTO overspeed_events
			(user_id, speed, vehicle_type, lane_type, coordinates,
			 latitude, longitude, speed_limit, speed_limit_id, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id, created_at
	`
	err := s.pool.QueryRow(ctx, query,
		rec.UserID,
		rec.Speed,
		rec.VehicleType,
		rec.LaneType,
		rec.Coordinates[:],
		rec.Latitude,
		rec.Longitude,
		rec.SpeedLimit,
		rec.SpeedLimitID,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("violation insert failed for user %s: %w", rec.UserID, err)
	}
	return rec.ID, nil
}

// AppendAccident persists one accident report and returns the stored record
// with its generated id and timestamp, for the accidentReport ack.
func (s *PostgresStore) AppendAccident(ctx context.Context, rec *domain.AccidentReport) (*domain.AccidentReport, error) {
	query := `
		INSERT INTO accident_reports
			(user_id, speed, vehicle_type, lane_type, coordinates,
			 latitude, longitude, created_at)
		VALUES
			($1, $2, $3, NULLIF($4, ''), $5, $6, $7, NOW())
		RETURNING id, created_at
	`
	err := s.pool.QueryRow(ctx, query,
		rec.UserID,
		rec.Speed,
		rec.VehicleType,
		rec.LaneType,
		rec.Coordinates[:],
		rec.Latitude,
		rec.Longitude,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("accident insert failed for user %s: %w", rec.UserID, err)
	}
	return rec, nil
}
