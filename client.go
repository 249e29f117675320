package bttgitconf

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// Client 是配置客户端：持有快照缓存和一组可刷新的绑定。
// 生命周期：Uninitialized -> Bootstrap 成功 -> Ready；
// Bootstrap 失败进入 BootstrapFailed，可再次 Bootstrap 重试；
// 每次 Refresh 期间短暂处于 Refreshing。
// 除显式 Refresh 外客户端不做任何轮询或推送接收。
type Client struct {
	fetcher     Fetcher
	application string
	profile     string
	label       string

	cache *SnapshotCache

	bindMu   sync.RWMutex
	bindings map[string][]*Binding

	refreshMu sync.Mutex // 同一时刻至多一个 Bootstrap/Refresh
	state     atomic.Int32
}

// NewClient 创建客户端。profile 为空表示 DefaultProfile，
// label 为空表示当前 Head。创建后需调用 Bootstrap 完成初始拉取。
func NewClient(fetcher Fetcher, application, profile, label string) *Client {
	if profile == "" {
		profile = DefaultProfile
	}
	return &Client{
		fetcher:     fetcher,
		application: application,
		profile:     profile,
		label:       label,
		cache:       NewSnapshotCache(),
		bindings:    make(map[string][]*Binding),
	}
}

// State 返回客户端当前的生命周期状态。
func (c *Client) State() ClientState {
	return ClientState(c.state.Load())
}

// Snapshot 返回当前缓存的快照。
func (c *Client) Snapshot() *Snapshot {
	return c.cache.Get()
}

// Bootstrap 执行初始拉取并填充缓存。
// 失败时缓存保持空快照，状态进入 BootstrapFailed；重复调用即重试。
func (c *Client) Bootstrap(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	ss, err := c.fetcher.Fetch(ctx, c.application, c.profile, c.label)
	if err != nil {
		c.state.Store(int32(StateBootstrapFailed))
		return fmt.Errorf("bootstrap fetch failed: %w", err)
	}

	c.cache.Replace(ss)
	c.resolveAll(ss)
	c.state.Store(int32(StateReady))

	log.Printf("bootstrap complete: %s/%s version=%s keys=%d", c.application, c.profile, ss.Version, ss.Len())

	return nil
}

// Bind 注册一个 Key 的可刷新绑定，初始值从当前缓存解析
// （Key 尚不存在时为空串，后续该 Key 出现会作为变化通知到绑定）。
// 同一 Key 可以有多个绑定（扇出）。
func (c *Client) Bind(key string, consumers ...Consumer) *Binding {
	value, _ := c.cache.Get().Get(key)
	b := &Binding{
		key:       key,
		value:     value,
		consumers: consumers,
	}

	c.bindMu.Lock()
	c.bindings[key] = append(c.bindings[key], b)
	c.bindMu.Unlock()

	return b
}

// Refresh 显式刷新：拉取最新快照、替换缓存、把变化传播到相关绑定，
// 返回发生变化的 Key 列表（顺序见 SnapshotCache.Replace）。
// 无变化时返回空列表；拉取失败时缓存和所有绑定保持原值，错误上抛。
// 已有 Refresh 在执行时返回 ErrRefreshInProgress（拒绝而非排队：
// 在途的那次拉的就是最新 Head，并发的第二次不带来新信息）。
func (c *Client) Refresh(ctx context.Context) ([]string, error) {
	if !c.refreshMu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer c.refreshMu.Unlock()

	if st := c.State(); st != StateReady {
		return nil, fmt.Errorf("client not ready: %s", st)
	}

	c.state.Store(int32(StateRefreshing))
	defer c.state.Store(int32(StateReady))

	ss, err := c.fetcher.Fetch(ctx, c.application, c.profile, c.label)
	if err != nil {
		// 原子失败：缓存和绑定保持刷新前的值
		return nil, fmt.Errorf("refresh fetch failed: %w", err)
	}

	changed := c.cache.Replace(ss)
	if len(changed) == 0 {
		return changed, nil
	}

	// 先在锁内收集受影响的绑定，通知在锁外执行，
	// 允许回调里再注册新的绑定
	var pending []notification
	c.bindMu.RLock()
	for _, key := range changed {
		newValue, _ := ss.Get(key) // 被移除的 Key 解析为空串
		for _, b := range c.bindings[key] {
			pending = append(pending, notification{b, newValue})
		}
	}
	c.bindMu.RUnlock()
	notifyAll(pending)

	log.Printf("refresh complete: %s/%s version=%s changed=%v", c.application, c.profile, ss.Version, changed)

	return changed, nil
}

// notification 是一条待投递的绑定更新。
type notification struct {
	binding  *Binding
	newValue string
}

func notifyAll(pending []notification) {
	for _, n := range pending {
		n.binding.onRefreshed(n.newValue)
	}
}

// resolveAll 在 Bootstrap 后把缓存中的值同步到先于 Bootstrap 注册的绑定。
func (c *Client) resolveAll(ss *Snapshot) {
	var pending []notification
	c.bindMu.RLock()
	for key, bs := range c.bindings {
		value, _ := ss.Get(key)
		for _, b := range bs {
			if b.Resolve() != value {
				pending = append(pending, notification{b, value})
			}
		}
	}
	c.bindMu.RUnlock()
	notifyAll(pending)
}
