package store

import (
	"context"
	"encoding/json"

	"hq-entitlements/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Schema creates the table used by the postgres backend.
const Schema = `
	CREATE TABLE IF NOT EXISTS entitlement_orders (
		order_id      TEXT PRIMARY KEY,
		download_code TEXT NOT NULL UNIQUE,
		document      JSONB NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`

// postgresStore keeps one row per order but still saves the whole
// collection in a single transaction, so it honours the same document
// contract as the other backends.
type postgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool, logger zerolog.Logger) Store {
	return &postgresStore{
		pool:   pool,
		logger: logger.With().Str("store", BackendPostgres).Logger(),
	}
}

// EnsureSchema creates the orders table if it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fail(OpSave, BackendPostgres, err, "create schema")
	}
	return nil
}

func (s *postgresStore) Backend() string {
	return BackendPostgres
}

// LoadAll retrieves every order document, oldest first.
func (s *postgresStore) LoadAll(ctx context.Context) ([]model.Order, error) {
	query := `
		SELECT document
		FROM entitlement_orders
		ORDER BY created_at, order_id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fail(OpLoad, BackendPostgres, err, "query orders")
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fail(OpLoad, BackendPostgres, err, "scan order row")
		}

		var order model.Order
		if err := json.Unmarshal(doc, &order); err != nil {
			return nil, fail(OpLoad, BackendPostgres, err, "parse order document")
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fail(OpLoad, BackendPostgres, err, "iterate order rows")
	}

	s.logger.Debug().Int("order_count", len(orders)).Msg("orders loaded")
	return orders, nil
}

// SaveAll upserts every order inside one transaction. Orders are never
// deleted by this subsystem, so rows absent from orders are left alone.
func (s *postgresStore) SaveAll(ctx context.Context, orders []model.Order) (err error) {
	if len(orders) == 0 {
		return nil
	}

	query := `
		INSERT INTO entitlement_orders (order_id, download_code, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (order_id) DO UPDATE
		SET download_code = EXCLUDED.download_code,
		    document = EXCLUDED.document,
		    updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, order := range orders {
		doc, marshalErr := json.Marshal(order)
		if marshalErr != nil {
			return fail(OpSave, BackendPostgres, marshalErr, "marshal order "+order.OrderID)
		}
		batch.Queue(query, order.OrderID, order.DownloadCode, doc, order.CreatedAt)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fail(OpSave, BackendPostgres, err, "begin transaction")
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < len(orders); i++ {
		if _, execErr := results.Exec(); execErr != nil {
			results.Close()
			err = fail(OpSave, BackendPostgres, execErr, "upsert order "+orders[i].OrderID)
			return err
		}
	}
	if closeErr := results.Close(); closeErr != nil {
		err = fail(OpSave, BackendPostgres, closeErr, "close batch")
		return err
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		err = fail(OpSave, BackendPostgres, commitErr, "commit transaction")
		return err
	}

	s.logger.Debug().Int("order_count", len(orders)).Msg("orders saved")
	return nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
