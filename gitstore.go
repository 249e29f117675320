package bttgitconf

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// GitStore 从 git 仓库的 HEAD 提交读取属性文件。
// 读取的是已提交的内容而不是工作区文件，保证快照总是对应一个 commit。
// git 客户端是外部协作者（shell 调用），本存储不实现任何 git 逻辑，
// 也从不修改仓库。
type GitStore struct {
	Dir     string        // git 仓库目录（工作树）
	File    string        // 仓库内的属性文件路径，如 "example-service.properties"
	Timeout time.Duration // 单次 git 调用的超时
}

// NewGitStore 创建一个 GitStore。
func NewGitStore(dir, file string) *GitStore {
	return &GitStore{
		Dir:     dir,
		File:    file,
		Timeout: 5 * time.Second,
	}
}

// Read 读取 HEAD 的快照。
// 仓库不可访问或尚无提交时返回 ErrStoreUnavailable；
// 文件在 HEAD 中不存在时返回 ErrNotFound。
func (g *GitStore) Read(ctx context.Context) (*Snapshot, error) {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	// 1. 版本标识 = HEAD 的 commit hash
	rev, err := g.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("%w: rev-parse HEAD in %s: %v", ErrStoreUnavailable, g.Dir, err)
	}
	version := strings.TrimSpace(rev)

	// 2. 读取该提交下的文件内容
	content, err := g.git(ctx, "show", "HEAD:"+g.File)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not in HEAD of %s: %v", ErrNotFound, g.File, g.Dir, err)
	}

	return Parse(content, version), nil
}

// git 在仓库目录下执行一条 git 子命令并返回标准输出。
func (g *GitStore) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", g.Dir}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("git %s: %s", args[0], strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return string(out), nil
}
