// internal/storage/factory.go
package storage

import (
	"fmt"
	"path/filepath"
)

// Open 根据后端名称打开存储
func Open(backend, dataDir, dsn string) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileStore(filepath.Join(dataDir, "documents"))
	case "sqlite":
		if dsn == "" {
			dsn = filepath.Join(dataDir, "scribe.db")
		}
		return NewSQLiteStore(dsn)
	case "postgres":
		return NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("不支持的存储后端: %s", backend)
	}
}
