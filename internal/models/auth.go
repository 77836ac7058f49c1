package models

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 角色。认证由网关完成，这里只做角色/归属校验
const (
	RoleTourist   = "tourist"
	RoleResponder = "responder"
	RoleAdmin     = "admin"
)

const (
	ActorIDField   = "actor_id"
	ActorRoleField = "actor_role"
)

// Actor 已认证主体（网关注入）
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// IsPrivileged 是否具备处置告警/管理实体的权限
func (a Actor) IsPrivileged() bool {
	return a.Role == RoleResponder || a.Role == RoleAdmin
}

// SystemActor 升级扫描等后台任务使用的主体
func SystemActor() Actor {
	return Actor{ID: "system", Role: RoleAdmin}
}

// AuthRequired 从网关注入的请求头提取主体，缺失则拒绝
func AuthRequired(c *gin.Context) {
	actorID := c.GetHeader("X-Actor-ID")
	role := c.GetHeader("X-Actor-Role")
	if actorID == "" || role == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	switch role {
	case RoleTourist, RoleResponder, RoleAdmin:
	default:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown role"})
		return
	}
	c.Set(ActorIDField, actorID)
	c.Set(ActorRoleField, role)
	c.Next()
}

// CurrentActor 获取当前请求的主体
func CurrentActor(c *gin.Context) Actor {
	return Actor{
		ID:   c.GetString(ActorIDField),
		Role: c.GetString(ActorRoleField),
	}
}
