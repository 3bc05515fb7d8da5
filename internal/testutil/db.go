// Package testutil 提供测试共用的基础设施。
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSQLiteDB 在 t.TempDir() 下打开一个独立的 SQLite 数据库，测试结束时自动关闭。
// 每个测试拿到的都是空库，调用方负责建表。
func NewSQLiteDB(t *testing.T, cfg *gorm.Config) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "offers.db")
	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=off"), cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// SQLite 同一时刻只允许一个写者
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
