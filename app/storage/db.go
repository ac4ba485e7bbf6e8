package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	e "nuclight.org/tg-scraper/pkg/entities"
)

// DB persists both the per-chat cursor and the message payloads in one
// relational database. The address selects the driver: a postgres:// or
// postgresql:// DSN uses pgx, anything else is treated as a sqlite file
// path. Both dialects use the same ON CONFLICT upserts, so the observable
// behavior is identical.
type DB struct {
	db *sql.DB
	pg bool
}

//go:embed init_sqlite.sql
var initSQLite string

//go:embed init_postgres.sql
var initPostgres string

func OpenDB(ctx context.Context, addr string) (*DB, error) {
	pg := strings.HasPrefix(addr, "postgres://") || strings.HasPrefix(addr, "postgresql://")

	driver := "sqlite3"
	if pg {
		driver = "pgx"
	}

	db, err := sql.Open(driver, addr)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}

	client := &DB{
		db: db,
		pg: pg,
	}

	err = client.init(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing %s database: %w", driver, err)
	}

	return client, nil
}

func (c *DB) Close() error {
	return c.db.Close()
}

// LastID returns the stored cursor for the chat, 0 if none was saved yet.
func (c *DB) LastID(ctx context.Context, peerID int64) (int64, error) {
	var id int64
	err := c.db.QueryRowContext(
		ctx,
		c.rebind("SELECT last_message_id FROM scraper_state WHERE chat_peer_id = ?"),
		peerID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}

		return 0, err
	}

	return id, nil
}

func (c *DB) SaveLastID(ctx context.Context, peerID, id int64) error {
	_, err := c.db.ExecContext(
		ctx,
		c.rebind(`INSERT INTO scraper_state (chat_peer_id, last_message_id, last_run_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (chat_peer_id) DO UPDATE
			    SET last_message_id = EXCLUDED.last_message_id, last_run_at = CURRENT_TIMESTAMP`),
		peerID, id,
	)
	return err
}

// Write upserts one record keyed by (chat, message id). Re-delivery of an
// already stored message replaces the payload and bumps updated_at.
func (c *DB) Write(ctx context.Context, peerID int64, rec e.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record %d: %w", rec.ID, err)
	}

	_, err = c.db.ExecContext(
		ctx,
		c.rebind(`INSERT INTO messages (chat_peer_id, message_id, date, data, updated_at)
			VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (chat_peer_id, message_id) DO UPDATE
			    SET data = EXCLUDED.data, updated_at = CURRENT_TIMESTAMP`),
		peerID, rec.ID, rec.Date, string(data),
	)
	if err != nil {
		return fmt.Errorf("inserting message %d: %w", rec.ID, err)
	}

	return nil
}

// rebind rewrites ? placeholders into the $n form pgx expects.
func (c *DB) rebind(query string) string {
	if !c.pg {
		return query
	}

	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}

	return sb.String()
}

func (c *DB) init(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	schema := initSQLite
	if c.pg {
		schema = initPostgres
	}

	_, err := c.db.ExecContext(ctx, schema)
	return err
}
