// internal/storage/file_store.go
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// FileStore 基于JSON文件的文档存储，每个集合一个目录，每个文档一个文件
type FileStore struct {
	BaseDir string

	// 并发控制
	fileLocks sync.Map // path -> *sync.RWMutex
	commitMu  sync.Mutex

	// 读缓存，写入时失效
	cache *cache.Cache

	now func() time.Time
}

// NewFileStore 创建文件存储
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}

	return &FileStore{
		BaseDir: baseDir,
		cache:   cache.New(5*time.Minute, 2*time.Minute),
		now:     time.Now,
	}, nil
}

// 获取文件锁
func (fs *FileStore) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

func (fs *FileStore) docPath(collection, id string) string {
	return filepath.Join(fs.BaseDir, collection, id+".json")
}

// readFile 读取文件内容，优先走缓存
func (fs *FileStore) readFile(fullPath string) ([]byte, error) {
	if v, ok := fs.cache.Get(fullPath); ok {
		return v.([]byte), nil
	}

	lock := fs.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, err
	}
	fs.cache.Set(fullPath, content, cache.DefaultExpiration)
	return content, nil
}

// Get 按ID读取文档
func (fs *FileStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := validateKey(collection, id); err != nil {
		return Document{}, err
	}
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	content, err := fs.readFile(fs.docPath(collection, id))
	if os.IsNotExist(err) {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("读取文件失败: %w", err)
	}
	return parseDocument(collection, content)
}

// GetMany 批量读取，不存在的ID被跳过
func (fs *FileStore) GetMany(ctx context.Context, collection string, ids []string) ([]Document, error) {
	docs := make([]Document, 0, len(ids))
	for _, id := range ids {
		doc, err := fs.Get(ctx, collection, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Query 按字段相等查询
func (fs *FileStore) Query(ctx context.Context, collection, field string, value interface{}) ([]Document, error) {
	all, err := fs.list(ctx, collection)
	if err != nil {
		return nil, err
	}
	docs := filterDocuments(all, field, value)
	sortByID(docs)
	return docs, nil
}

// QueryOrdered 按字段相等查询并按数值字段排序
func (fs *FileStore) QueryOrdered(ctx context.Context, collection, field string, value interface{}, orderField string) ([]Document, error) {
	all, err := fs.list(ctx, collection)
	if err != nil {
		return nil, err
	}
	docs := filterDocuments(all, field, value)
	sortByNumber(docs, orderField)
	return docs, nil
}

func (fs *FileStore) list(ctx context.Context, collection string) ([]Document, error) {
	if collection == "" || strings.ContainsAny(collection, `/\`) {
		return nil, fmt.Errorf("非法的集合名: %q", collection)
	}

	entries, err := os.ReadDir(filepath.Join(fs.BaseDir, collection))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取目录失败: %w", err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := fs.readFile(filepath.Join(fs.BaseDir, collection, entry.Name()))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("读取文件失败: %w", err)
		}
		doc, err := parseDocument(collection, content)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

type stagedOp struct {
	op      Op
	path    string
	tmp     string
	prev    []byte
	existed bool
	applied bool
}

// Commit applies every operation of the batch or none of them.
// New contents are staged into temp files first, then renamed into place;
// a failed rename restores the previous contents of already applied files.
func (fs *FileStore) Commit(ctx context.Context, b *Batch) error {
	if b == nil || b.Len() == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fs.commitMu.Lock()
	defer fs.commitMu.Unlock()

	now := fs.now().UTC()
	staged := make([]*stagedOp, 0, b.Len())

	cleanupTemps := func() {
		for _, s := range staged {
			if s.tmp != "" && !s.applied {
				os.Remove(s.tmp)
			}
		}
	}

	// 阶段一：写临时文件
	for i, op := range b.Ops() {
		s := &stagedOp{op: op, path: fs.docPath(op.Collection, op.ID)}
		prev, err := os.ReadFile(s.path)
		switch {
		case err == nil:
			s.prev, s.existed = prev, true
		case !os.IsNotExist(err):
			cleanupTemps()
			return fmt.Errorf("读取文件失败: %w", err)
		}

		if op.Kind == OpSet {
			created := now
			if s.existed {
				if old, err := parseDocument(op.Collection, prev); err == nil && !old.CreatedAt.IsZero() {
					created = old.CreatedAt
				}
			}
			doc := Document{ID: op.ID, Collection: op.Collection, Data: op.Data, CreatedAt: created, UpdatedAt: now}
			raw, err := doc.Raw()
			if err != nil {
				cleanupTemps()
				return fmt.Errorf("序列化JSON失败: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
				cleanupTemps()
				return fmt.Errorf("创建目录失败: %w", err)
			}
			s.tmp = fmt.Sprintf("%s.%d.tmp", s.path, i)
			if err := os.WriteFile(s.tmp, raw, 0644); err != nil {
				staged = append(staged, s)
				cleanupTemps()
				return fmt.Errorf("保存临时文件失败: %w", err)
			}
		}
		staged = append(staged, s)
	}

	// 阶段二：落盘
	for i, s := range staged {
		if err := fs.apply(s); err != nil {
			fs.rollback(staged[:i])
			cleanupTemps()
			fs.invalidate(staged)
			return fmt.Errorf("提交批量写入失败: %w", err)
		}
	}

	fs.invalidate(staged)
	return nil
}

func (fs *FileStore) apply(s *stagedOp) error {
	lock := fs.getFileLock(s.path)
	lock.Lock()
	defer lock.Unlock()

	switch s.op.Kind {
	case OpSet:
		if err := os.Rename(s.tmp, s.path); err != nil {
			return err
		}
	case OpDelete:
		if s.existed {
			if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	s.applied = true
	return nil
}

// rollback 逆序恢复已落盘的操作
func (fs *FileStore) rollback(applied []*stagedOp) {
	for i := len(applied) - 1; i >= 0; i-- {
		s := applied[i]
		lock := fs.getFileLock(s.path)
		lock.Lock()
		if s.existed {
			if err := os.WriteFile(s.path, s.prev, 0644); err != nil {
				fmt.Printf("Warning: failed to restore %s during rollback: %v\n", s.path, err)
			}
		} else {
			os.Remove(s.path)
		}
		lock.Unlock()
	}
}

func (fs *FileStore) invalidate(staged []*stagedOp) {
	for _, s := range staged {
		fs.cache.Delete(s.path)
	}
}

// Close 文件存储无需释放资源
func (fs *FileStore) Close() error {
	fs.cache.Flush()
	return nil
}

// parseDocument 解析磁盘上的文档，提取保留字段
func parseDocument(collection string, content []byte) (Document, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(content, &data); err != nil {
		return Document{}, fmt.Errorf("解析JSON失败: %w", err)
	}

	doc := Document{Collection: collection, Data: data}
	if id, ok := data[FieldID].(string); ok {
		doc.ID = id
	}
	doc.CreatedAt = parseTime(data[FieldCreatedAt])
	doc.UpdatedAt = parseTime(data[FieldUpdatedAt])

	delete(data, FieldID)
	delete(data, FieldCreatedAt)
	delete(data, FieldUpdatedAt)
	return doc, nil
}

func parseTime(v interface{}) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}
