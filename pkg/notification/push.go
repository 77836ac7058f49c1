package notification

import "context"

// PushClient 便于替换/注入的移动推送接口（适配真实 SDK）
type PushClient interface {
	Push(ctx context.Context, title, content string, audience map[string]interface{}, extras map[string]interface{}) error
}

// Pusher 高危告警的移动推送通道，作为WebSocket推送的补充
type Pusher struct {
	cli PushClient
}

func NewPusher(cli PushClient) *Pusher { return &Pusher{cli: cli} }

// PushToAlias 按账号别名推送
func (p *Pusher) PushToAlias(ctx context.Context, alias []string, title, content string, extras map[string]interface{}) error {
	if p.cli == nil {
		return context.Canceled // 表示未配置客户端
	}
	aud := map[string]interface{}{"alias": alias}
	return p.cli.Push(ctx, title, content, aud, extras)
}

// PushToAll 全量推送
func (p *Pusher) PushToAll(ctx context.Context, title, content string, extras map[string]interface{}) error {
	if p.cli == nil {
		return context.Canceled
	}
	aud := map[string]interface{}{"all": true}
	return p.cli.Push(ctx, title, content, aud, extras)
}
