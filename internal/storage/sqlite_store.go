// internal/storage/sqlite_store.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps every collection in one table, documents stored as JSON text.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path. ":memory:" is accepted.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// 单连接，避免 :memory: 每个连接各自一个库
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// Get 按ID读取文档
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := validateKey(collection, id); err != nil {
		return Document{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id)
	doc, err := scanDocument(collection, row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return doc, err
}

// GetMany 批量读取，保持ids顺序
func (s *SQLiteStore) GetMany(ctx context.Context, collection string, ids []string) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = ? AND id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	found, err := scanDocuments(collection, rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Document, len(found))
	for _, d := range found {
		byID[d.ID] = d
	}
	docs := make([]Document, 0, len(found))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

// Query 按字段相等查询
func (s *SQLiteStore) Query(ctx context.Context, collection, field string, value interface{}) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents
		 WHERE collection = ? AND json_extract(data, ?) = ?
		 ORDER BY id`,
		collection, jsonPath(field), sqlValue(value))
	if err != nil {
		return nil, fmt.Errorf("query %s.%s: %w", collection, field, err)
	}
	return scanDocuments(collection, rows)
}

// QueryOrdered 按字段相等查询并按数值字段排序
func (s *SQLiteStore) QueryOrdered(ctx context.Context, collection, field string, value interface{}, orderField string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents
		 WHERE collection = ? AND json_extract(data, ?) = ?
		 ORDER BY CAST(COALESCE(json_extract(data, ?), 0) AS REAL), id`,
		collection, jsonPath(field), sqlValue(value), jsonPath(orderField))
	if err != nil {
		return nil, fmt.Errorf("query %s.%s: %w", collection, field, err)
	}
	return scanDocuments(collection, rows)
}

// Commit 在一个事务中执行整个批量
func (s *SQLiteStore) Commit(ctx context.Context, b *Batch) error {
	if b == nil || b.Len() == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC().Format(time.RFC3339Nano)
	for _, op := range b.Ops() {
		switch op.Kind {
		case OpSet:
			data, err := json.Marshal(op.Data)
			if err != nil {
				return fmt.Errorf("encode %s/%s: %w", op.Collection, op.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO documents (collection, id, data, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
				op.Collection, op.ID, string(data), now, now); err != nil {
				return fmt.Errorf("write %s/%s: %w", op.Collection, op.ID, err)
			}
		case OpDelete:
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM documents WHERE collection = ? AND id = ?`, op.Collection, op.ID); err != nil {
				return fmt.Errorf("delete %s/%s: %w", op.Collection, op.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close 关闭数据库
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(collection string, row rowScanner) (Document, error) {
	var id, data, created, updated string
	if err := row.Scan(&id, &data, &created, &updated); err != nil {
		return Document{}, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return Document{}, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return Document{
		ID:         id,
		Collection: collection,
		Data:       m,
		CreatedAt:  parseTime(created),
		UpdatedAt:  parseTime(updated),
	}, nil
}

func scanDocuments(collection string, rows *sql.Rows) ([]Document, error) {
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		d, err := scanDocument(collection, rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, ``) + `"`
}

// sqlValue json_extract 返回 SQL 标量，布尔值为 0/1
func sqlValue(v interface{}) interface{} {
	switch b := v.(type) {
	case bool:
		if b {
			return 1
		}
		return 0
	}
	return v
}
