package bttgitconf

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

// labelStore 是支持按标签读取的测试存储。
type labelStore struct {
	byLabel map[string]*Snapshot
	head    string
}

func (l *labelStore) Read(ctx context.Context) (*Snapshot, error) {
	return l.ReadLabel(ctx, l.head)
}

func (l *labelStore) ReadLabel(ctx context.Context, label string) (*Snapshot, error) {
	ss, ok := l.byLabel[label]
	if !ok {
		return nil, ErrNotFound
	}
	return ss, nil
}

func TestServer_GetSnapshot(t *testing.T) {
	store := &fakeStore{}
	store.set("foo.bar=Hi!\n", "c1")

	srv := NewServer()
	srv.Register("example-service", "", store)

	ss, err := srv.GetSnapshot(context.Background(), "example-service", "default", "")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if v, _ := ss.Get("foo.bar"); v != "Hi!" {
		t.Errorf("Expected Hi!, got %q", v)
	}

	// 未知 application/profile
	if _, err := srv.GetSnapshot(context.Background(), "other", "default", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := srv.GetSnapshot(context.Background(), "example-service", "prod", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown profile, got %v", err)
	}

	// 不支持标签的存储遇到非空 label
	if _, err := srv.GetSnapshot(context.Background(), "example-service", "default", "v3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for label on plain store, got %v", err)
	}
}

func TestServer_GetSnapshotFresh(t *testing.T) {
	store := &fakeStore{}
	store.set("k=v1\n", "c1")

	srv := NewServer()
	srv.Register("app", "", store)

	srv.GetSnapshot(context.Background(), "app", "", "")

	// 端点层不缓存：每次调用都看到存储的最新状态
	store.set("k=v2\n", "c2")
	ss, err := srv.GetSnapshot(context.Background(), "app", "", "")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if ss.Version != "c2" {
		t.Errorf("Endpoint served stale snapshot: %s", ss.Version)
	}
}

func TestServer_GetSnapshotLabel(t *testing.T) {
	store := &labelStore{
		head: "main",
		byLabel: map[string]*Snapshot{
			"main": Parse("k=new\n", "h2"),
			"v1":   Parse("k=old\n", "h1"),
		},
	}

	srv := NewServer()
	srv.Register("app", "", store)

	ss, err := srv.GetSnapshot(context.Background(), "app", "", "v1")
	if err != nil {
		t.Fatalf("GetSnapshot with label failed: %v", err)
	}
	if v, _ := ss.Get("k"); v != "old" {
		t.Errorf("Expected labeled value old, got %q", v)
	}
}

func TestServer_HTTP(t *testing.T) {
	store := &fakeStore{}
	store.set("foo.bar=Hi!\nsecond=2\n", "c1")

	srv := NewServer()
	srv.Register("example-service", "", store)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/example-service/default")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body SnapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if body.Name != "example-service" || body.Version != "c1" {
		t.Errorf("Unexpected response header fields: %+v", body)
	}
	// Source 保序
	want := []PropertyPair{{"foo.bar", "Hi!"}, {"second", "2"}}
	if !reflect.DeepEqual(body.Source, want) {
		t.Errorf("Expected %v, got %v", want, body.Source)
	}

	// 404
	resp2, _ := http.Get(ts.URL + "/nope/default")
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp2.StatusCode)
	}

	// 502
	store.fail(ErrStoreUnavailable)
	resp3, _ := http.Get(ts.URL + "/example-service/default")
	resp3.Body.Close()
	if resp3.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", resp3.StatusCode)
	}
}

func TestHTTPFetcher(t *testing.T) {
	store := &fakeStore{}
	store.set("foo.bar=Hi!\n", "c1")

	srv := NewServer()
	srv.Register("example-service", "", store)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	f := NewHTTPFetcher(ts.URL)
	ss, err := f.Fetch(context.Background(), "example-service", "", "")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if v, _ := ss.Get("foo.bar"); v != "Hi!" || ss.Version != "c1" {
		t.Errorf("Fetched snapshot wrong: %+v", ss)
	}

	if _, err := f.Fetch(context.Background(), "nope", "", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	store.fail(ErrStoreUnavailable)
	if _, err := f.Fetch(context.Background(), "example-service", "", ""); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable, got %v", err)
	}
}

// 端到端：HTTP 传输下的完整 refresh 流程
func TestClient_OverHTTP(t *testing.T) {
	store := &fakeStore{}
	store.set("foo.bar=Hi!\n", "c1")

	srv := NewServer()
	srv.Register("example-service", "", store)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	c := NewClient(NewHTTPFetcher(ts.URL), "example-service", "", "")
	if err := c.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	b := c.Bind("foo.bar")

	store.set("foo.bar=Change!\n", "c2")
	changed, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !reflect.DeepEqual(changed, []string{"foo.bar"}) {
		t.Errorf("Expected [foo.bar], got %v", changed)
	}
	if b.Resolve() != "Change!" {
		t.Errorf("Expected Change!, got %q", b.Resolve())
	}
}
