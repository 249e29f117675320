package bttgitconf

import (
	"sync"
	"sync/atomic"
)

// SnapshotCache 是客户端持有的当前快照缓存。
// Get 走 atomic.Value，读取方永远看到一个完整的快照；
// Replace 是唯一的写入方，持锁串行执行并整体替换快照。
type SnapshotCache struct {
	mu       sync.Mutex   // 串行化 Replace
	snapshot atomic.Value // 存储 *Snapshot
	prev     *Snapshot    // 上一个快照（仅 Replace 持锁访问）
}

// NewSnapshotCache 创建缓存，初始为一个空哨兵快照。
func NewSnapshotCache() *SnapshotCache {
	c := &SnapshotCache{}
	c.snapshot.Store(EmptySnapshot())
	return c
}

// Get 返回当前快照。初始状态下是空快照而不是 nil。
func (c *SnapshotCache) Get() *Snapshot {
	return c.snapshot.Load().(*Snapshot)
}

// Previous 返回上一个被替换掉的快照，尚未发生过替换时为 nil。
func (c *SnapshotCache) Previous() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prev
}

// Replace 用新快照整体替换当前快照，返回发生变化的 Key 列表：
// 值不同的、新增的、以及被移除的 Key。
// 顺序：先按新快照的 Key 顺序列出不同/新增的，再按旧快照顺序列出被移除的。
// 新旧内容一致时返回空列表。
func (c *SnapshotCache) Replace(next *Snapshot) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.snapshot.Load().(*Snapshot)
	changed := diffKeys(current, next)

	c.prev = current
	c.snapshot.Store(next)

	return changed
}

// diffKeys 计算新旧快照之间值发生变化的 Key。
func diffKeys(old, next *Snapshot) []string {
	changed := []string{}

	for _, k := range next.Keys {
		oldVal, existed := old.Values[k]
		if !existed || oldVal != next.Values[k] {
			changed = append(changed, k)
		}
	}
	for _, k := range old.Keys {
		if _, exists := next.Values[k]; !exists {
			changed = append(changed, k)
		}
	}

	return changed
}
