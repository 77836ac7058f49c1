package notification

import (
	"context"

	"TourGuard/pkg/sse"
)

// SSEFanout 把事件镜像到SSE订阅方（只读仪表盘）
type SSEFanout struct {
	hub *sse.Hub
}

func NewSSEFanout(hub *sse.Hub) *SSEFanout {
	return &SSEFanout{hub: hub}
}

func (f *SSEFanout) Publish(ctx context.Context, room, event string, payload any) {
	if f.hub == nil {
		return
	}
	f.hub.PublishToGroup(room, event, payload)
}

// MultiFanout 同一事件广播到多个通道
type MultiFanout []Fanout

func (m MultiFanout) Publish(ctx context.Context, room, event string, payload any) {
	for _, f := range m {
		f.Publish(ctx, room, event, payload)
	}
}
