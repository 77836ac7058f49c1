package util

import (
	"sync"
)

// SignalHandler 信号处理函数，sender 为触发方，params 为附加参数
type SignalHandler func(sender any, params ...any)

// SignalHub 进程内信号分发器，用于解耦实体变更与后续动作
// （安全分重算、通知推送等统一走信号，避免散落的调用点）
type SignalHub struct {
	mu       sync.RWMutex
	handlers map[string][]SignalHandler
}

var (
	sigOnce sync.Once
	sigHub  *SignalHub
)

// Sig 获取全局信号分发器
func Sig() *SignalHub {
	sigOnce.Do(func() {
		sigHub = &SignalHub{handlers: make(map[string][]SignalHandler)}
	})
	return sigHub
}

// Connect 注册信号处理函数
func (h *SignalHub) Connect(signal string, handler SignalHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[signal] = append(h.handlers[signal], handler)
}

// Emit 同步触发信号，按注册顺序执行全部处理函数
func (h *SignalHub) Emit(signal string, sender any, params ...any) {
	h.mu.RLock()
	handlers := make([]SignalHandler, len(h.handlers[signal]))
	copy(handlers, h.handlers[signal])
	h.mu.RUnlock()

	for _, handler := range handlers {
		handler(sender, params...)
	}
}

// Disconnect 移除某个信号的全部处理函数（测试用）
func (h *SignalHub) Disconnect(signal string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handlers, signal)
}
