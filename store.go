package bttgitconf

import "context"

// VersionStore 是版本化配置源的读取接口。
// Read 返回当前 Head 的快照及其版本标识；实现不得修改底层存储。
type VersionStore interface {
	Read(ctx context.Context) (*Snapshot, error)
}

// LabelReader 是 VersionStore 的可选扩展：按版本标签读取历史快照。
// 仅对保留版本映射的存储（如 RedisStore）有意义。
type LabelReader interface {
	ReadLabel(ctx context.Context, label string) (*Snapshot, error)
}
