package bttgitconf

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Fetcher 是客户端获取快照的接口。
// Server 本身实现了 Fetcher（本地调用）；跨进程时使用 HTTPFetcher。
type Fetcher interface {
	Fetch(ctx context.Context, application, profile, label string) (*Snapshot, error)
}

// HTTPFetcher 通过 Server 的 HTTP 端点获取快照。
type HTTPFetcher struct {
	BaseURL string // 如 "http://localhost:8888"
	Client  *http.Client
}

// NewHTTPFetcher 创建 HTTPFetcher，带默认超时。
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch 请求 GET {base}/{application}/{profile}?label= 并还原快照。
// 404 映射为 ErrNotFound，其余非 200 映射为 ErrStoreUnavailable。
func (f *HTTPFetcher) Fetch(ctx context.Context, application, profile, label string) (*Snapshot, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	u := fmt.Sprintf("%s/%s/%s", f.BaseURL, url.PathEscape(application), url.PathEscape(profile))
	if label != "" {
		u += "?label=" + url.QueryEscape(label)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request failed: %w", err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrStoreUnavailable, u, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, application, profile)
	default:
		return nil, fmt.Errorf("%w: fetch %s: status %d", ErrStoreUnavailable, u, resp.StatusCode)
	}

	var body SnapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode snapshot response failed: %w", err)
	}

	ss := &Snapshot{
		Version: body.Version,
		Keys:    make([]string, 0, len(body.Source)),
		Values:  make(map[string]string, len(body.Source)),
	}
	for _, pair := range body.Source {
		if _, exists := ss.Values[pair.Key]; !exists {
			ss.Keys = append(ss.Keys, pair.Key)
		}
		ss.Values[pair.Key] = pair.Value
	}
	return ss, nil
}
