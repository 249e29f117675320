package bttgitconf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore 从 Redis 读取已发布的属性快照。
// 存储布局：versions Hash 保存 Label -> AllHash，props:<hash> 保存
// 按内容寻址的 key=value 正文。版本标识即 AllHash。
type RedisStore struct {
	rdb   *redis.Client
	label string
}

// NewRedisStore 创建 RedisStore。
// client: Redis 客户端实例（外部传入，DI）。
// label: 默认读取的版本标签，空串表示 DefaultLabel。
func NewRedisStore(client *redis.Client, label string) *RedisStore {
	if label == "" {
		label = DefaultLabel
	}
	return &RedisStore{rdb: client, label: label}
}

// Read 读取默认标签的当前快照。
func (r *RedisStore) Read(ctx context.Context) (*Snapshot, error) {
	return r.ReadLabel(ctx, r.label)
}

// ReadLabel 按版本标签读取快照。
// 标签未发布过时返回 ErrNotFound；Redis 不可达时返回 ErrStoreUnavailable。
func (r *RedisStore) ReadLabel(ctx context.Context, label string) (*Snapshot, error) {
	if label == "" {
		label = r.label
	}

	allHash, err := r.rdb.HGet(ctx, KeyVersions(), label).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: label %q never published", ErrNotFound, label)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get label hash: %v", ErrStoreUnavailable, err)
	}

	text, err := r.rdb.Get(ctx, KeyProps(allHash)).Result()
	if errors.Is(err, redis.Nil) {
		// 版本映射存在但正文缺失，数据不一致
		return nil, fmt.Errorf("%w: props body missing for hash %s", ErrStoreUnavailable, allHash)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get props body: %v", ErrStoreUnavailable, err)
	}

	return Parse(text, allHash), nil
}

// Publisher 将属性快照发布到 Redis。
type Publisher struct {
	rdb   *redis.Client
	label string
}

// NewPublisher 创建发布者。
// client: Redis 客户端实例（外部传入，DI）。
// label: 本次操作针对的版本标签，空串表示 DefaultLabel。
func NewPublisher(client *redis.Client, label string) *Publisher {
	if label == "" {
		label = DefaultLabel
	}
	return &Publisher{rdb: client, label: label}
}

// casPublishScript CAS 更新版本映射并追加历史与通知。
// 如果 Label 对应的 Hash 发生了变化（不等于 oldHash），则拒绝更新。
const casPublishScript = `
	local versionKey = KEYS[1]
	local historyKey = KEYS[2]
	local streamKey = KEYS[3]

	local label = ARGV[1]
	local oldHash = ARGV[2]
	local newHash = ARGV[3]
	local historyJSON = ARGV[4]
	local streamData = ARGV[5]

	local currentHash = redis.call('HGET', versionKey, label)
	if currentHash == false then
		currentHash = ""
	end

	if currentHash ~= oldHash then
		return redis.error_reply('label_mismatch: ' .. currentHash .. ' != ' .. oldHash)
	end

	redis.call('HSET', versionKey, label, newHash)
	redis.call('RPUSH', historyKey, historyJSON)
	redis.call('XADD', streamKey, 'MAXLEN', '~', '1000', '*', 'data', streamData)

	return "OK"
`

// Publish 将快照作为标签的新版本写入 Redis。
// 分两步：1. 按内容寻址写入正文（幂等，并发写安全）
// 2. Lua 脚本 CAS 更新版本映射并记录历史/通知。
// 并发发布者基于不同旧版本发布时，后到者会因 CAS 失败被拒绝。
func (p *Publisher) Publish(ctx context.Context, ss *Snapshot) (string, error) {
	// 1. 读取当前标签的基础 Hash (用于 CAS)
	baseHash, err := p.rdb.HGet(ctx, KeyVersions(), p.label).Result()
	if errors.Is(err, redis.Nil) {
		baseHash = ""
		err = nil
	}
	if err != nil {
		return "", fmt.Errorf("get current label hash failed: %w", err)
	}

	// 2. 计算新内容的 AllHash 并写入正文
	allHash := ComputeSnapshotHash(ss.Values)
	text := FormatProperties(ss)

	if err := p.rdb.SetNX(ctx, KeyProps(allHash), text, 0).Err(); err != nil {
		return "", fmt.Errorf("save props body failed: %w", err)
	}

	// 3. CAS 更新版本并发送通知
	now := time.Now().Unix()

	histJSON, _ := json.Marshal(HistoryRecord{
		Label:     p.label,
		AllHash:   allHash,
		Timestamp: now,
	})
	msgData, _ := json.Marshal(UpdateMessage{
		Event:     EventPublish,
		Label:     p.label,
		AllHash:   allHash,
		Timestamp: now,
	})

	keys := []string{
		KeyVersions(),
		KeyHistory(),
		KeyUpdates(),
	}
	argv := []any{
		p.label,          // ARGV[1] Label
		baseHash,         // ARGV[2] OldHash
		allHash,          // ARGV[3] NewHash
		string(histJSON), // ARGV[4] History
		string(msgData),  // ARGV[5] Stream Data
	}

	if _, err := p.rdb.Eval(ctx, casPublishScript, keys, argv...).Result(); err != nil {
		return "", fmt.Errorf("cas update failed: %w", err)
	}

	log.Printf("published config: label=%s, allHash=%s, keys=%d", p.label, allHash, ss.Len())

	return allHash, nil
}

// History 返回最近 n 条发布记录（最新的在前）。n <= 0 时返回全部。
func (p *Publisher) History(ctx context.Context, n int) ([]HistoryRecord, error) {
	raw, err := p.rdb.LRange(ctx, KeyHistory(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get history failed: %w", err)
	}

	records := make([]HistoryRecord, 0, len(raw))
	// RPush 追加，倒序遍历使最新的在前
	for i := len(raw) - 1; i >= 0; i-- {
		var rec HistoryRecord
		if err := json.Unmarshal([]byte(raw[i]), &rec); err != nil {
			continue
		}
		records = append(records, rec)
		if n > 0 && len(records) >= n {
			break
		}
	}
	return records, nil
}
