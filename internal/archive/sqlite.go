// Package archive persists engaged exchanges for operators. It is an audit
// trail, not conversation state: the pipeline's context window lives in
// convo.Store and is rebuilt from scratch on restart.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"cyanbot/internal/domain"
)

// SQLiteArchive records exchanges in a local SQLite database.
type SQLiteArchive struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLite(dbPath string, logger *slog.Logger) (*SQLiteArchive, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	a := &SQLiteArchive{db: db, logger: logger}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return a, nil
}

func (a *SQLiteArchive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exchanges (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		guild_id    TEXT NOT NULL,
		channel_id  TEXT NOT NULL,
		sender_id   TEXT,
		user_text   TEXT,
		reply_text  TEXT,
		model       TEXT,
		latency_ms  INTEGER DEFAULT 0,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_chan ON exchanges(channel_id, created_at);
	`
	_, err := a.db.Exec(schema)
	return err
}

// Record inserts one exchange.
func (a *SQLiteArchive) Record(ctx context.Context, ex domain.Exchange) error {
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO exchanges (guild_id, channel_id, sender_id, user_text, reply_text, model, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.GuildID, ex.ChannelID, ex.SenderID, ex.UserText, ex.ReplyText, ex.Model, ex.LatencyMs, ex.CreatedAt,
	)
	return err
}

// Recent returns the last limit exchanges for a channel, oldest first.
func (a *SQLiteArchive) Recent(ctx context.Context, channelID string, limit int) ([]domain.Exchange, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, guild_id, channel_id, sender_id, user_text, reply_text, model, latency_ms, created_at
		 FROM exchanges WHERE channel_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, channelID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exs []domain.Exchange
	for rows.Next() {
		var ex domain.Exchange
		if err := rows.Scan(&ex.ID, &ex.GuildID, &ex.ChannelID, &ex.SenderID,
			&ex.UserText, &ex.ReplyText, &ex.Model, &ex.LatencyMs, &ex.CreatedAt); err != nil {
			return nil, err
		}
		exs = append(exs, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	for i, j := 0, len(exs)-1; i < j; i, j = i+1, j-1 {
		exs[i], exs[j] = exs[j], exs[i]
	}
	return exs, nil
}

// Count returns the total number of recorded exchanges.
func (a *SQLiteArchive) Count(ctx context.Context) (int64, error) {
	var n int64
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exchanges`).Scan(&n)
	return n, err
}

func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
