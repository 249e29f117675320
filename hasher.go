package bttgitconf

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// CalculateHash8 返回 SHA256 Hex 字符串的前 8 位 (用于 AllHash)。
func CalculateHash8(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:8]
}

// ComputeSnapshotHash 计算快照内容的全局 Hash。
// 按 Key 排序后对 key=value 行做 Hash，与来源中的行顺序无关，
// 保证同样的属性集合总是得到同样的版本标识。
func ComputeSnapshotHash(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(values[k])
		b.WriteByte('\n')
	}
	return CalculateHash8([]byte(b.String()))
}
