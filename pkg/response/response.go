package response

import (
	"net/http"

	"TourGuard/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Body 统一响应结构
type Body struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Body{Success: true, Message: message, Data: data})
}

// Fail 失败响应（400）
func Fail(c *gin.Context, message string, data any) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Message: message, Data: data})
}

// Created 创建成功响应
func Created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, Body{Success: true, Message: message, Data: data})
}

// Error 按错误码映射 HTTP 状态返回
func Error(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.CodeInvalid:
		status = http.StatusBadRequest
	case errors.CodeForbidden:
		status = http.StatusForbidden
	case errors.CodeNotFound:
		status = http.StatusNotFound
	case errors.CodeInvalidTransition:
		status = http.StatusConflict
	case errors.CodeDuplicateKey:
		status = http.StatusUnprocessableEntity
	case errors.CodeDependencyUnavailable:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, Body{Success: false, Message: errors.GetMessage(err)})
}
