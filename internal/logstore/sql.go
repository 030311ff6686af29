package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/kotobachat/kotoba/internal/chat"
	"github.com/kotobachat/kotoba/internal/dbx"
	"github.com/kotobachat/kotoba/internal/logstore/migrations"
)

// metaSavedAt marks that a log has been persisted at least once. It is what
// distinguishes "cleared log" from "never saved": without it, an empty
// messages table would send hydration to a possibly stale remote backup.
const metaSavedAt = "saved_at"

// SQLStore persists the log in a relational database. Each save rewrites
// the whole table inside one transaction, matching the wholesale-record
// semantics of the file store.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an existing database handle whose schema is already in
// place. Used directly by tests; production code goes through OpenPostgres.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// OpenPostgres connects via the pgx stdlib driver and applies the embedded
// goose migrations.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Load(ctx context.Context) ([]chat.Message, error) {
	var saved string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM log_meta WHERE key = $1`, metaSavedAt).Scan(&saved)
	if err == sql.ErrNoRows {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("read log meta: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, color, avatar, text, created_at FROM messages ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer rows.Close()

	log := []chat.Message{}
	for rows.Next() {
		var m chat.Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Name, &m.Color, &m.Avatar, &m.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		log = append(log, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return log, nil
}

func (s *SQLStore) Save(ctx context.Context, log []chat.Message) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
			return fmt.Errorf("truncate log: %w", err)
		}
		for i, m := range log {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO messages (position, id, name, color, avatar, text, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				i, m.ID, m.Name, m.Color, m.Avatar, m.Text, m.CreatedAt.Format(time.RFC3339Nano))
			if err != nil {
				return fmt.Errorf("insert message: %w", err)
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO log_meta (key, value) VALUES ($1, $2)
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
			metaSavedAt, time.Now().UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("update log meta: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
