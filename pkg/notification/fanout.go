package notification

import (
	"context"
	"fmt"
	"time"

	"TourGuard/pkg/logger"
	"TourGuard/pkg/websocket"

	"go.uber.org/zap"
)

// 房间：每位游客一个房间，另有员工共享房间
const (
	RoomStaff = "staff"
)

// RoomTourist 游客房间名
func RoomTourist(touristID uint) string {
	return fmt.Sprintf("tourist:%d", touristID)
}

// 事件名
const (
	EventAlertCreated      = "alert.created"
	EventAlertAcknowledged = "alert.acknowledged"
	EventAlertResolved     = "alert.resolved"
	EventAlertEscalated    = "alert.escalated"
	EventVitalsBreach      = "device.vitals.breach"
	EventDigitalIDIssued   = "digitalid.issued"
)

// Fanout 推送通道。尽力投递：失败只记日志，绝不回滚或中断状态变更
type Fanout interface {
	Publish(ctx context.Context, room, event string, payload any)
}

// HubFanout 基于WebSocket Hub的推送实现
type HubFanout struct {
	hub     *websocket.Hub
	timeout time.Duration
}

// NewHubFanout 创建推送通道，timeout 限制单次投递等待
func NewHubFanout(hub *websocket.Hub, timeout time.Duration) *HubFanout {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HubFanout{hub: hub, timeout: timeout}
}

// Publish 投递事件到房间。队列满或超时都按丢弃处理
func (f *HubFanout) Publish(ctx context.Context, room, event string, payload any) {
	if f.hub == nil {
		return
	}
	done := make(chan bool, 1)
	go func() {
		done <- f.hub.Publish(&websocket.Message{
			Type:  websocket.MessageTypeEvent,
			Event: event,
			Group: room,
			Data:  payload,
		})
	}()

	timer := time.NewTimer(f.timeout)
	defer timer.Stop()
	select {
	case ok := <-done:
		if !ok {
			logger.Warn("notification dropped",
				zap.String("room", room), zap.String("event", event))
		}
	case <-timer.C:
		logger.Warn("notification publish timed out",
			zap.String("room", room), zap.String("event", event))
	case <-ctx.Done():
		logger.Warn("notification publish cancelled",
			zap.String("room", room), zap.String("event", event))
	}
}

// NopFanout 空实现（测试用）
type NopFanout struct{}

func (NopFanout) Publish(ctx context.Context, room, event string, payload any) {}
