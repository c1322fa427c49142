package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/baely/tab/internal/common/errors"
	"github.com/baely/tab/internal/ledger"
)

// snapshotRow is the only row the table ever holds
const snapshotRow = 1

// saveTimeout bounds an upsert once it no longer follows the caller's context
const saveTimeout = 10 * time.Second

const (
	qCreateTable = `CREATE TABLE IF NOT EXISTS tab_snapshot (
	id       SMALLINT PRIMARY KEY,
	payload  JSONB NOT NULL,
	saved_at TIMESTAMPTZ NOT NULL
)`
	qLoadSnapshot = `SELECT payload FROM tab_snapshot WHERE id = $1`
	qSaveSnapshot = `INSERT INTO tab_snapshot (id, payload, saved_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at`
)

// PostgresStore keeps the snapshot in one row. Save is a single upsert, so
// the previous snapshot stays in place unless the new one is fully written.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// PostgresConfig contains configuration for the PostgresStore
type PostgresConfig struct {
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	Logger     *slog.Logger
}

// DefaultPostgresConfig returns the connection settings from the environment
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBName:     os.Getenv("DB_NAME"),
		Logger:     slog.Default(),
	}
}

// Enabled reports whether a database host is configured
func (c *PostgresConfig) Enabled() bool {
	return c.DBHost != ""
}

func (c *PostgresConfig) connString() string {
	port := c.DBPort
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, port, c.DBName)
}

// NewPostgresStore connects and makes sure the snapshot table exists
func NewPostgresStore(ctx context.Context, cfg *PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.connString())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres")
	}
	s := NewPostgresStoreWithDB(db, cfg.Logger)
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreWithDB wraps an existing connection pool
func NewPostgresStoreWithDB(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger, now: time.Now}
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, qCreateTable); err != nil {
		s.logger.Error("Failed to create snapshot table", "error", err)
		return errors.Wrap(err, "failed to create snapshot table")
	}
	return nil
}

// Load reads the snapshot row. No row is an empty ledger.
func (s *PostgresStore) Load(ctx context.Context) ([]ledger.AccountView, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, qLoadSnapshot, snapshotRow).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("No snapshot row found, starting fresh")
			return nil, nil
		}
		s.logger.Error("Failed to load snapshot", "error", err)
		return nil, errors.Wrap(err, "failed to load snapshot")
	}

	accounts, err := Decode(payload)
	if err != nil {
		s.logger.Error("Failed to decode snapshot row", "error", err)
		return nil, err
	}
	s.logger.Info("Snapshot loaded from postgres", "accounts", len(accounts))
	return accounts, nil
}

// Save upserts the snapshot row. The upsert ignores cancellation of ctx so a
// request that goes away cannot leave the row committed but reported failed.
func (s *PostgresStore) Save(ctx context.Context, accounts []ledger.AccountView) error {
	savedAt := s.now()
	payload, err := Encode(accounts, savedAt)
	if err != nil {
		return errors.Wrap(err, "failed to encode snapshot")
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, qSaveSnapshot, snapshotRow, string(payload), savedAt.UTC()); err != nil {
		s.logger.Error("Failed to save snapshot", "error", err)
		return errors.Wrap(err, "failed to save snapshot")
	}
	return nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
