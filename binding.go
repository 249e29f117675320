package bttgitconf

import "sync"

// Consumer 是绑定值变化时收到通知的回调。
// 在 Refresh 的调用 goroutine 中同步执行，不应阻塞。
type Consumer func(newValue string)

// Binding 是一个可刷新的属性绑定：关联一个 Key 和最近一次
// 解析出的值。Binding 从不自行拉取，只在显式 Refresh 发现其
// Key 变化时被更新（单写多读）。
// 这里用显式的观察者列表替代框架的 refresh-scope Bean 重建。
type Binding struct {
	key string

	mu        sync.RWMutex
	value     string
	consumers []Consumer
}

// Key 返回绑定的属性 Key。
func (b *Binding) Key() string {
	return b.key
}

// Resolve 返回当前本地持有的值，不触发任何拉取。
// 刷新之外的读取总是得到上一次解析完成的完整值。
func (b *Binding) Resolve() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.value
}

// Subscribe 追加一个变化回调。
func (b *Binding) Subscribe(fn Consumer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumers = append(b.consumers, fn)
}

// onRefreshed 由 Refresh 在 Key 变化时调用：更新值并通知所有回调。
// 回调在锁外执行，允许回调内再次 Resolve。
func (b *Binding) onRefreshed(newValue string) {
	b.mu.Lock()
	b.value = newValue
	consumers := make([]Consumer, len(b.consumers))
	copy(consumers, b.consumers)
	b.mu.Unlock()

	for _, fn := range consumers {
		fn(newValue)
	}
}
