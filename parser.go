package bttgitconf

import (
	"fmt"
	"log"
	"strings"
)

// ParseError 表示属性文本中存在无法解析的行（仅严格模式返回）。
type ParseError struct {
	Line int    // 行号（从 1 开始）
	Text string // 出错的原始行
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed property line %d: %q", e.Line, e.Text)
}

// Parse 将 key=value 文本解析为 Snapshot。
// 每行一条属性；空行和 # 开头的注释行被忽略。
// 不含 '=' 或 Key 为空的行会被跳过并记录日志，不影响其余行的解析
// （容错策略：一条坏记录不应拖垮整个快照）。
// 同一 Key 出现多次时后者覆盖前者，但顺序位置以首次出现为准。
func Parse(text string, version string) *Snapshot {
	ss, _ := parse(text, version, false)
	return ss
}

// ParseStrict 与 Parse 相同，但遇到坏行时返回 *ParseError 并终止解析。
func ParseStrict(text string, version string) (*Snapshot, error) {
	return parse(text, version, true)
}

func parse(text string, version string, strict bool) (*Snapshot, error) {
	ss := &Snapshot{
		Version: version,
		Keys:    []string{},
		Values:  map[string]string{},
	}

	// 按行切分而不是用 bufio.Scanner：正文已经整体在内存里，
	// 属性值没有长度上限，不能受 Scanner 的 token 大小限制
	for lineNo, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			if strict {
				return nil, &ParseError{Line: lineNo + 1, Text: line}
			}
			log.Printf("skip malformed property line %d: %q", lineNo+1, line)
			continue
		}

		if _, exists := ss.Values[key]; !exists {
			ss.Keys = append(ss.Keys, key)
		}
		ss.Values[key] = strings.TrimSpace(value)
	}

	return ss, nil
}

// FormatProperties 将快照按 Keys 顺序序列化回 key=value 文本。
// Parse(FormatProperties(ss)) 得到等价的快照。
func FormatProperties(ss *Snapshot) string {
	var b strings.Builder
	for _, k := range ss.Keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(ss.Values[k])
		b.WriteByte('\n')
	}
	return b.String()
}
