package bttgitconf

// prefix 目前使用的 Redis Key 前缀
var prefix = "btt-gitconf:"

// SetPrefix 设置全局 Redis Key 前缀。
// 这应该在任何其他操作之前调用。
func SetPrefix(p string) {
	prefix = p
	if len(prefix) > 0 && prefix[len(prefix)-1] != ':' {
		prefix += ":"
	}
}

// Suffix defs
const (
	SuffixProps    = "props:"   // 属性快照正文（按 AllHash 寻址）
	SuffixVersions = "versions" // 版本标签 -> AllHash 映射
	SuffixHistory  = "history"  // 发布历史
	SuffixUpdates  = "updates"  // 发布通知
)

// Redis Key Helper

// KeyProps 返回属性快照正文的 Redis Key。
// hash: 快照的 AllHash。正文是原始的 key=value 文本。
func KeyProps(hash string) string {
	return prefix + SuffixProps + hash
}

// KeyVersions 返回版本映射的 Redis Key。
// 该 Hash 存储 Label -> AllHash。
func KeyVersions() string {
	return prefix + SuffixVersions
}

// KeyHistory 返回发布历史的 Redis Key。
// 该 List 存储 HistoryRecord JSON 字符串 (RPush)。
func KeyHistory() string {
	return prefix + SuffixHistory
}

// KeyUpdates 返回发布通知的 Redis Stream Key。
// 该 Stream 只写不读（供外部工具审计），客户端刷新始终是显式触发的。
func KeyUpdates() string {
	return prefix + SuffixUpdates
}

// DefaultLabel 未指定版本标签时使用的标签。
const DefaultLabel = "main"

// Stream 事件类型
const (
	EventPublish = "publish"
)

// Redis Stream 消息载荷
type UpdateMessage struct {
	Event     string `json:"event"`     // 事件类型
	Label     string `json:"label"`     // 版本标签
	AllHash   string `json:"all_hash"`  // 快照 Hash
	Timestamp int64  `json:"timestamp"` // 时间戳
}
