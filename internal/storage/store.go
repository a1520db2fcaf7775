// internal/storage/store.go
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrNotFound 文档不存在
var ErrNotFound = errors.New("document not found")

// 服务端写入的保留字段
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// Document 集合中的一个文档
type Document struct {
	ID         string
	Collection string
	Data       map[string]interface{}
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Raw 返回包含 id 与时间戳的 JSON
func (d Document) Raw() ([]byte, error) {
	out := make(map[string]interface{}, len(d.Data)+3)
	for k, v := range d.Data {
		out[k] = v
	}
	out[FieldID] = d.ID
	if !d.CreatedAt.IsZero() {
		out[FieldCreatedAt] = d.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if !d.UpdatedAt.IsZero() {
		out[FieldUpdatedAt] = d.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

// Decode 将文档解码到模型结构体
func (d Document) Decode(v interface{}) error {
	raw, err := d.Raw()
	if err != nil {
		return fmt.Errorf("编码文档失败 %s/%s: %w", d.Collection, d.ID, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("解码文档失败 %s/%s: %w", d.Collection, d.ID, err)
	}
	return nil
}

// Store is the document store the services depend on.
// Writes only happen through Commit; timestamps are assigned by the store.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	// GetMany returns the documents that exist, in the order of ids.
	GetMany(ctx context.Context, collection string, ids []string) ([]Document, error)
	Query(ctx context.Context, collection, field string, value interface{}) ([]Document, error)
	// QueryOrdered sorts ascending by a numeric field, ties broken by id.
	QueryOrdered(ctx context.Context, collection, field string, value interface{}, orderField string) ([]Document, error)
	Commit(ctx context.Context, b *Batch) error
	Close() error
}

// OpKind 批量操作类型
type OpKind int

const (
	OpSet OpKind = iota
	OpDelete
)

// Op 批量中的一个写操作
type Op struct {
	Kind       OpKind
	Collection string
	ID         string
	Data       map[string]interface{}
}

// Batch 原子批量写入
type Batch struct {
	ops []Op
}

// NewBatch 创建空批量
func NewBatch() *Batch {
	return &Batch{}
}

// Set 写入（新建或覆盖）一个文档，v 可以是结构体或 map
func (b *Batch) Set(collection, id string, v interface{}) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	data, err := toMap(v)
	if err != nil {
		return fmt.Errorf("序列化文档失败 %s/%s: %w", collection, id, err)
	}
	b.ops = append(b.ops, Op{Kind: OpSet, Collection: collection, ID: id, Data: data})
	return nil
}

// Delete 删除文档
func (b *Batch) Delete(collection, id string) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	b.ops = append(b.ops, Op{Kind: OpDelete, Collection: collection, ID: id})
	return nil
}

// Ops 批量中的操作
func (b *Batch) Ops() []Op {
	return b.ops
}

// Len 操作个数
func (b *Batch) Len() int {
	return len(b.ops)
}

func validateKey(collection, id string) error {
	if collection == "" || id == "" {
		return fmt.Errorf("集合名和文档ID不能为空")
	}
	for _, s := range []string{collection, id} {
		if strings.ContainsAny(s, `/\`) || s == "." || s == ".." {
			return fmt.Errorf("非法的键: %q", s)
		}
	}
	return nil
}

// toMap 结构体 -> map，去掉保留字段
func toMap(v interface{}) (map[string]interface{}, error) {
	var data map[string]interface{}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("文档必须是JSON对象")
	}
	delete(data, FieldID)
	delete(data, FieldCreatedAt)
	delete(data, FieldUpdatedAt)
	return data, nil
}

// valuesEqual compares a stored JSON value with a query value by their JSON encoding.
func valuesEqual(stored, want interface{}) bool {
	a, err1 := json.Marshal(stored)
	b, err2 := json.Marshal(want)
	if err1 != nil || err2 != nil {
		return false
	}
	return bytes.Equal(a, b)
}

func numericField(d Document, field string) float64 {
	switch n := d.Data[field].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}

// filterDocuments 内存过滤，文件存储和Postgres存储共用
func filterDocuments(docs []Document, field string, value interface{}) []Document {
	var out []Document
	for _, d := range docs {
		if valuesEqual(d.Data[field], value) {
			out = append(out, d)
		}
	}
	return out
}

func sortByNumber(docs []Document, orderField string) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := numericField(docs[i], orderField), numericField(docs[j], orderField)
		if a != b {
			return a < b
		}
		return docs[i].ID < docs[j].ID
	})
}

func sortByID(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}
