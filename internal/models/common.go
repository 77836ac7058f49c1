package models

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgerrors "TourGuard/pkg/errors"

	"gorm.io/gorm"
)

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Tourist{},
		&Device{},
		&Alert{},
		&DigitalIDCard{},
	)
}

// wrapStoreErr 存储层错误归类：超时/取消归为依赖不可用，
// 已分类错误原样透传，其余包装
func wrapStoreErr(err error, entity string) error {
	if err == nil {
		return nil
	}
	var coded *tgerrors.Error
	if errors.As(err, &coded) && coded.Code != 0 {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return tgerrors.DependencyUnavailable("store", err)
	}
	return tgerrors.Wrapf(err, "store failure on %s", entity)
}

// isDuplicateKeyErr 识别唯一索引冲突，覆盖 sqlite/mysql/pg 的报错文案。
// 预检查无法挡住并发插入同一候选号，最终以插入结果为准
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
