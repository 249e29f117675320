package bttgitconf

import "errors"

var (
	// ErrNotFound 表示请求的 application/profile（或版本标签）不存在。
	ErrNotFound = errors.New("config not found")

	// ErrStoreUnavailable 表示后端版本库不可访问（路径缺失、无提交等）。
	ErrStoreUnavailable = errors.New("version store unavailable")

	// ErrRefreshInProgress 表示已有一个 Refresh 在执行中，本次调用被拒绝。
	ErrRefreshInProgress = errors.New("refresh already in progress")
)

// Snapshot 代表版本库在某一时刻的不可变配置快照。
// Keys 保留来源中的出现顺序，Values 提供按 Key 的查找。
// 构建完成后不再修改，只会被整体替换。
type Snapshot struct {
	Version string            // 版本标识（commit hash 或内容 Hash）
	Keys    []string          // Key 的出现顺序
	Values  map[string]string // Key -> Value
}

// EmptySnapshot 返回一个空快照（客户端缓存的初始哨兵值）。
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Keys:   []string{},
		Values: map[string]string{},
	}
}

// Get 获取指定 Key 的值。
func (s *Snapshot) Get(key string) (string, bool) {
	val, ok := s.Values[key]
	return val, ok
}

// Len 返回快照中的属性条数。
func (s *Snapshot) Len() int {
	return len(s.Keys)
}

// HistoryRecord 版本历史记录（Redis 存储的发布流水）。
type HistoryRecord struct {
	Label     string `json:"label"`
	AllHash   string `json:"all_hash"`
	Timestamp int64  `json:"timestamp"`
}

// ClientState 客户端生命周期状态。
type ClientState int32

const (
	StateUninitialized ClientState = iota
	StateBootstrapFailed
	StateReady
	StateRefreshing
)

func (s ClientState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBootstrapFailed:
		return "bootstrap_failed"
	case StateReady:
		return "ready"
	case StateRefreshing:
		return "refreshing"
	}
	return "unknown"
}
