package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "trackme_user"),
		dbGetEnv("DB_PASSWORD", "trackme_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "trackme"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to PostgreSQL...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure PostgreSQL is running:\n  docker-compose up -d postgres", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	// Run all steps in order
	step1_users_table(ctx, conn)
	step2_speed_limits_table(ctx, conn)
	step3_event_tables(ctx, conn)
	step4_indexes(ctx, conn)
	step5_default_speed_limit(ctx, conn)
	step6_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run scripts/seed_redis/seed_redis.go")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — users table
// ─────────────────────────────────────────────────────────────
func step1_users_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: users table ─────────────────────────")

	// Only the position columns the realtime subsystem touches live here.
	// Profile fields belong to the user directory service.
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS users (

			-- Routing key: the caller-supplied identity
			id           TEXT               PRIMARY KEY,

			-- Last known position, kept as the client sent it for display
			latitude     TEXT               NOT NULL DEFAULT '',
			longitude    TEXT               NOT NULL DEFAULT '',

			-- [longitude, latitude] — GeoJSON order
			coordinates  DOUBLE PRECISION[] NOT NULL DEFAULT '{}',

			updated_at   TIMESTAMPTZ        NOT NULL DEFAULT NOW()
		);
	`, "users table created")
}

// ─────────────────────────────────────────────────────────────
// Step 2 — speed_limits table
// ─────────────────────────────────────────────────────────────
func step2_speed_limits_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: speed_limits table ──────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS speed_limits (

			id            BIGSERIAL        PRIMARY KEY,

			-- Limit in kmph
			speed_limit   DOUBLE PRECISION NOT NULL,

			vehicle_type  TEXT             NOT NULL,
			lane_type     TEXT             NOT NULL,

			is_active     BOOLEAN          NOT NULL DEFAULT true,

			-- Soft delete: deleted rows must never resolve
			is_deleted    BOOLEAN          NOT NULL DEFAULT false,

			created_at    TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);
	`, "speed_limits table created")

	// One active limit per (vehicle_type, lane_type) — enforced at the
	// write side, exactly where the resolver expects it.
	execOrFatal(ctx, conn, `
		CREATE UNIQUE INDEX IF NOT EXISTS uq_speed_limits_active
		ON speed_limits (vehicle_type, lane_type)
		WHERE is_deleted = false;
	`, "unique active (vehicle_type, lane_type) enforced")
}

// ─────────────────────────────────────────────────────────────
// Step 3 — append-only event tables
// ─────────────────────────────────────────────────────────────
func step3_event_tables(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: event tables ────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS overspeed_events (

			id              BIGSERIAL          PRIMARY KEY,

			user_id         TEXT               NOT NULL,

			-- Full telemetry snapshot at the moment of the violation
			speed           DOUBLE PRECISION   NOT NULL,
			vehicle_type    TEXT               NOT NULL,
			lane_type       TEXT               NOT NULL,
			coordinates     DOUBLE PRECISION[] NOT NULL DEFAULT '{}',
			latitude        TEXT               NOT NULL DEFAULT '',
			longitude       TEXT               NOT NULL DEFAULT '',

			-- The resolved context the speed was judged against
			speed_limit     DOUBLE PRECISION   NOT NULL,
			speed_limit_id  BIGINT             REFERENCES speed_limits(id),

			created_at      TIMESTAMPTZ        NOT NULL DEFAULT NOW()
		);
	`, "overspeed_events table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS accident_reports (

			id            BIGSERIAL          PRIMARY KEY,

			user_id       TEXT               NOT NULL,
			speed         DOUBLE PRECISION   NOT NULL,
			vehicle_type  TEXT               NOT NULL,
			lane_type     TEXT,
			coordinates   DOUBLE PRECISION[] NOT NULL DEFAULT '{}',
			latitude      TEXT               NOT NULL DEFAULT '',
			longitude     TEXT               NOT NULL DEFAULT '',

			created_at    TIMESTAMPTZ        NOT NULL DEFAULT NOW()
		);
	`, "accident_reports table created")
}

// ─────────────────────────────────────────────────────────────
// Step 4 — Indexes
// ─────────────────────────────────────────────────────────────
func step4_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_overspeed_user_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_overspeed_user_time
				  ON overspeed_events (user_id, created_at DESC);`,
			why: "query: violation history for one user",
		},
		{
			name: "idx_accidents_user_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_accidents_user_time
				  ON accident_reports (user_id, created_at DESC);`,
			why: "query: accident history for one user",
		},
		{
			name: "idx_speed_limits_lookup",
			sql: `CREATE INDEX IF NOT EXISTS idx_speed_limits_lookup
				  ON speed_limits (vehicle_type, lane_type)
				  WHERE is_deleted = false;`,
			why: "query: per-update limit resolution",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-40s ← %s", idx.name, idx.why),
		)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 5 — Default speed-limit context
// ─────────────────────────────────────────────────────────────
func step5_default_speed_limit(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: default speed limit ─────────────────")

	// Every location update without a lane/vehicle filter resolves this
	// row. Values must match domain.DefaultLaneType/DefaultVehicleType.
	execOrFatal(ctx, conn, `
		INSERT INTO speed_limits (speed_limit, vehicle_type, lane_type)
		VALUES (120, 'M1 category vehicles', 'Expressway with Access Control')
		ON CONFLICT DO NOTHING;
	`, "default context seeded (120 kmph, M1 / Expressway with Access Control)")
}

// ─────────────────────────────────────────────────────────────
// Step 6 — Verify everything was created
// ─────────────────────────────────────────────────────────────
func step6_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 6: Verification ────────────────────────")

	tables := []string{"users", "speed_limits", "overspeed_events", "accident_reports"}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	var defaultLimit float64
	err := conn.QueryRow(ctx, `
		SELECT speed_limit FROM speed_limits
		WHERE vehicle_type = 'M1 category vehicles'
		  AND lane_type = 'Expressway with Access Control'
		  AND is_deleted = false
	`).Scan(&defaultLimit)
	if err != nil {
		log.Fatalf("Default speed limit missing: %v", err)
	}
	fmt.Printf("  ✓ default speed limit: %.0f kmph\n", defaultLimit)
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
