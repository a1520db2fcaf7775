// internal/storage/postgres_store.go
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// documentRow 所有集合共用一张表
type documentRow struct {
	Collection string         `gorm:"primaryKey;size:64"`
	ID         string         `gorm:"primaryKey;size:128"`
	Data       datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time      `gorm:"autoCreateTime:false"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime:false"`
}

func (documentRow) TableName() string { return "scribe_documents" }

// PostgresStore 基于 gorm + jsonb 的文档存储
type PostgresStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPostgresStore 连接数据库并迁移表结构
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres存储需要STORE_DSN")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return NewPostgresStoreFromDB(db)
}

// NewPostgresStoreFromDB 使用已有连接
func NewPostgresStoreFromDB(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("迁移表结构失败: %w", err)
	}
	return &PostgresStore{db: db, now: time.Now}, nil
}

// Get 按ID读取文档
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := validateKey(collection, id); err != nil {
		return Document{}, err
	}
	var row documentRow
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return Document{}, err
	}
	return row.document()
}

// GetMany 批量读取，保持ids顺序
func (s *PostgresStore) GetMany(ctx context.Context, collection string, ids []string) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []documentRow
	if err := s.db.WithContext(ctx).
		Where("collection = ? AND id IN ?", collection, ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]documentRow, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	docs := make([]Document, 0, len(rows))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			continue
		}
		d, err := r.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// Query 按字段相等查询
func (s *PostgresStore) Query(ctx context.Context, collection, field string, value interface{}) ([]Document, error) {
	docs, err := s.query(ctx, collection, field, value)
	if err != nil {
		return nil, err
	}
	sortByID(docs)
	return docs, nil
}

// QueryOrdered 按字段相等查询并按数值字段排序
func (s *PostgresStore) QueryOrdered(ctx context.Context, collection, field string, value interface{}, orderField string) ([]Document, error) {
	docs, err := s.query(ctx, collection, field, value)
	if err != nil {
		return nil, err
	}
	sortByNumber(docs, orderField)
	return docs, nil
}

func (s *PostgresStore) query(ctx context.Context, collection, field string, value interface{}) ([]Document, error) {
	var rows []documentRow
	if err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Where(datatypes.JSONQuery("data").Equals(value, field)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query %s.%s: %w", collection, field, err)
	}

	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		d, err := r.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	// jsonb 比较按文本进行，内存里再按JSON值精确过滤一次
	return filterDocuments(docs, field, value), nil
}

// Commit 在一个事务中执行整个批量
func (s *PostgresStore) Commit(ctx context.Context, b *Batch) error {
	if b == nil || b.Len() == 0 {
		return nil
	}
	now := s.now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range b.Ops() {
			switch op.Kind {
			case OpSet:
				data, err := json.Marshal(op.Data)
				if err != nil {
					return fmt.Errorf("encode %s/%s: %w", op.Collection, op.ID, err)
				}
				row := documentRow{
					Collection: op.Collection,
					ID:         op.ID,
					Data:       datatypes.JSON(data),
					CreatedAt:  now,
					UpdatedAt:  now,
				}
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
					DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
				}).Create(&row).Error; err != nil {
					return fmt.Errorf("write %s/%s: %w", op.Collection, op.ID, err)
				}
			case OpDelete:
				if err := tx.
					Where("collection = ? AND id = ?", op.Collection, op.ID).
					Delete(&documentRow{}).Error; err != nil {
					return fmt.Errorf("delete %s/%s: %w", op.Collection, op.ID, err)
				}
			}
		}
		return nil
	})
}

// Close 关闭连接池
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r documentRow) document() (Document, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(r.Data, &m); err != nil {
		return Document{}, fmt.Errorf("decode %s/%s: %w", r.Collection, r.ID, err)
	}
	return Document{
		ID:         r.ID,
		Collection: r.Collection,
		Data:       m,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}
