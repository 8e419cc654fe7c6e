package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hildam/harvey-go/entity/model"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore 基于 sqlite 的会话状态存储
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite 打开数据库文件并建表
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore 使用已有连接创建存储
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			conversation_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			org_id TEXT NOT NULL,
			title TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			state_gz BLOB NOT NULL,
			byte_size INTEGER NOT NULL,
			message_count INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_checkpoints_owner
			ON checkpoints(org_id, user_id, updated_at DESC);

		CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_history_conversation
			ON history(conversation_id, id);
	`)
	return err
}

// Load 读取会话状态
func (s *SQLiteStore) Load(ctx context.Context, conversationID string) (*model.State, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state_gz FROM checkpoints WHERE conversation_id = ?`, conversationID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query checkpoint: %w", err)
	}
	state, err := Decode(data)
	if err != nil {
		return nil, false, err
	}
	return state, true, nil
}

// Save 整体替换会话状态
func (s *SQLiteStore) Save(ctx context.Context, conversationID string, state *model.State) error {
	data, err := Encode(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (conversation_id, user_id, org_id, title, updated_at, state_gz, byte_size, message_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			user_id = excluded.user_id,
			org_id = excluded.org_id,
			title = excluded.title,
			updated_at = excluded.updated_at,
			state_gz = excluded.state_gz,
			byte_size = excluded.byte_size,
			message_count = excluded.message_count
	`, conversationID, state.Meta.UserID, state.Meta.OrgID, state.Meta.Title,
		time.Now().UTC().Format(time.RFC3339Nano), data, len(data), len(state.Messages))
	if err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}

// AppendHistory 在一个事务内追加转录
func (s *SQLiteStore) AppendHistory(ctx context.Context, conversationID string, entries ...model.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO history (conversation_id, sender, text, created_at) VALUES (?, ?, ?, ?)`,
			conversationID, e.Sender, e.Text, e.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}
	return tx.Commit()
}

// History 读取最近 limit 条转录，按时间正序
func (s *SQLiteStore) History(ctx context.Context, conversationID string, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT sender, text, created_at FROM (
			SELECT id, sender, text, created_at FROM history
			WHERE conversation_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		var createdAt string
		if err := rows.Scan(&e.Sender, &e.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close 关闭数据库
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
