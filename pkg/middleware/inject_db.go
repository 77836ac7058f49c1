package middleware

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const DBField = "db"

// InjectDB 将全局数据库句柄注入请求上下文
func InjectDB(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(DBField, db)
		c.Next()
	}
}

// GetDB 从请求上下文取数据库句柄
func GetDB(c *gin.Context) *gorm.DB {
	if v, ok := c.Get(DBField); ok {
		if db, ok := v.(*gorm.DB); ok {
			return db
		}
	}
	return nil
}
