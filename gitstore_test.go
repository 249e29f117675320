package bttgitconf

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// initRepo 建一个带提交的临时 git 仓库。
func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	return dir
}

func commitFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	for _, args := range [][]string{
		{"add", name},
		{"commit", "-q", "-m", "update " + name},
	} {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}
}

func TestGitStore_Read(t *testing.T) {
	dir := initRepo(t)
	commitFile(t, dir, "example-service.properties", "foo.bar=Hi!\n")

	store := NewGitStore(dir, "example-service.properties")
	ss, err := store.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if v, _ := ss.Get("foo.bar"); v != "Hi!" {
		t.Errorf("Expected Hi!, got %q", v)
	}
	if len(ss.Version) != 40 {
		t.Errorf("Expected full commit hash as version, got %q", ss.Version)
	}

	// 新提交后 Read 立即看到新内容和新版本
	v1 := ss.Version
	commitFile(t, dir, "example-service.properties", "foo.bar=Change!\n")

	ss2, err := store.Read(context.Background())
	if err != nil {
		t.Fatalf("Second read failed: %v", err)
	}
	if v, _ := ss2.Get("foo.bar"); v != "Change!" {
		t.Errorf("Expected Change!, got %q", v)
	}
	if ss2.Version == v1 {
		t.Error("Version should change with new commit")
	}
}

func TestGitStore_ReadsCommittedNotWorktree(t *testing.T) {
	dir := initRepo(t)
	commitFile(t, dir, "app.properties", "k=committed\n")

	// 工作区的未提交修改不可见
	if err := os.WriteFile(filepath.Join(dir, "app.properties"), []byte("k=dirty\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ss, err := NewGitStore(dir, "app.properties").Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if v, _ := ss.Get("k"); v != "committed" {
		t.Errorf("Expected committed value, got %q", v)
	}
}

func TestGitStore_Errors(t *testing.T) {
	// 不是 git 仓库
	plain := t.TempDir()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	if _, err := NewGitStore(plain, "a.properties").Read(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable for non-repo, got %v", err)
	}

	// 仓库存在但尚无提交
	empty := initRepo(t)
	if _, err := NewGitStore(empty, "a.properties").Read(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable for repo without commits, got %v", err)
	}

	// 有提交但文件不存在
	dir := initRepo(t)
	commitFile(t, dir, "other.properties", "x=1\n")
	if _, err := NewGitStore(dir, "missing.properties").Read(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing file, got %v", err)
	}
}
