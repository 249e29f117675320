package bttgitconf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// DefaultProfile 未指定 profile 时使用的名字。
const DefaultProfile = "default"

// Server 是配置服务端点：按 (application, profile) 路由到对应的
// VersionStore，每次请求都重新读取版本库（不在此层缓存，
// 保证调用方总是看到最新提交）。
// 注册在启动阶段完成；服务期间 Server 不持有可变共享状态，
// 并发请求彼此独立，无需加锁。
type Server struct {
	stores map[string]VersionStore
}

// NewServer 创建一个空的 Server。
func NewServer() *Server {
	return &Server{stores: make(map[string]VersionStore)}
}

// Register 注册一个 application/profile 对应的版本库。
// 必须在开始服务之前调用完毕，之后注册表只读。
func (s *Server) Register(application, profile string, store VersionStore) {
	if profile == "" {
		profile = DefaultProfile
	}
	s.stores[application+"/"+profile] = store
}

// GetSnapshot 返回指定 application/profile 的当前快照。
// 每次调用都触发一次底层 Read。label 非空且存储支持按标签读取时，
// 读取对应历史版本；否则非空 label 无法满足，返回 ErrNotFound。
func (s *Server) GetSnapshot(ctx context.Context, application, profile, label string) (*Snapshot, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	store, ok := s.stores[application+"/"+profile]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, application, profile)
	}

	if label != "" {
		lr, ok := store.(LabelReader)
		if !ok {
			return nil, fmt.Errorf("%w: %s/%s has no label %q", ErrNotFound, application, profile, label)
		}
		return lr.ReadLabel(ctx, label)
	}
	return store.Read(ctx)
}

// Fetch 实现 Fetcher，等价于 GetSnapshot（本地调用传输）。
func (s *Server) Fetch(ctx context.Context, application, profile, label string) (*Snapshot, error) {
	return s.GetSnapshot(ctx, application, profile, label)
}

// PropertyPair 是响应中的一条有序键值对。
type PropertyPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SnapshotResponse 是 HTTP 端点的响应体。
// Source 保留快照中的 Key 顺序。
type SnapshotResponse struct {
	Name    string         `json:"name"`
	Profile string         `json:"profile"`
	Version string         `json:"version"`
	Source  []PropertyPair `json:"source"`
}

// ServeHTTP 提供 GET /{application}/{profile}?label= 的 JSON 端点。
// 状态码：200 成功，404 未知 application/profile 或标签，
// 502 版本库不可访问，405 非 GET。
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		http.Error(w, "expected /{application}/{profile}", http.StatusBadRequest)
		return
	}
	application, profile := parts[0], parts[1]
	label := r.URL.Query().Get("label")

	ss, err := s.GetSnapshot(r.Context(), application, profile, label)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, ErrStoreUnavailable):
			http.Error(w, err.Error(), http.StatusBadGateway)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	resp := SnapshotResponse{
		Name:    application,
		Profile: profile,
		Version: ss.Version,
		Source:  make([]PropertyPair, 0, ss.Len()),
	}
	for _, k := range ss.Keys {
		resp.Source = append(resp.Source, PropertyPair{Key: k, Value: ss.Values[k]})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("write snapshot response failed: %v", err)
	}
}
