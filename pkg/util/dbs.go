package util

import (
	"fmt"
	"sync/atomic"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var memDBSeq atomic.Int64

// OpenDatabase 按驱动名打开数据库连接（mysql / pg / 默认 sqlite）
func OpenDatabase(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}
	return createDatabaseInstance(cfg, driver, dsn)
}

// OpenMemoryDatabase 打开内存 sqlite，主要用于测试。
// 每次调用使用独立的共享缓存库名，连接池内各连接看到同一份数据，
// 不同调用之间互不干扰。
func OpenMemoryDatabase() (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	dsn := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", memDBSeq.Add(1))
	return createDatabaseInstance(cfg, "", dsn)
}
