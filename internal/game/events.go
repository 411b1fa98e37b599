package game

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oursparks/couple-cards-backend/internal/platform/database"
)

// EventKind 区分推送事件对应的行变更类型
type EventKind string

const (
	// EventSessionUpdated 表示会话行发生了变更
	EventSessionUpdated EventKind = "session_updated"
	// EventDeckUpdated 表示牌堆行发生了变更
	EventDeckUpdated EventKind = "deck_updated"
)

// Event 是发往会话推送通道的行变更事件。
// 投递语义是at-least-once且无序，所以事件携带完整的会话快照
// 而不是增量，消费方按last-write-wins处理即可。
type Event struct {
	Kind    EventKind   `json:"kind"`
	Session SessionView `json:"session"`
}

// ChannelForSession 返回会话对应的推送通道名。
// 每个会话一条逻辑通道，两位参与者的同步器都订阅它。
func ChannelForSession(sessionID string) string {
	return "game:session:" + sessionID
}

// Publisher 抽象了行变更事件的发布端。
// 生产环境使用Redis Pub/Sub实现，测试注入Nop或采集器。
type Publisher interface {
	PublishSessionEvent(ctx context.Context, event Event) error
}

// --- Redis实现 ---

type redisPublisher struct{}

// NewRedisPublisher 返回基于Redis Pub/Sub的事件发布器
func NewRedisPublisher() Publisher {
	return redisPublisher{}
}

func (redisPublisher) PublishSessionEvent(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("无法序列化会话事件: %w", err)
	}
	return database.RDB.Publish(ctx, ChannelForSession(event.Session.SessionID), payload).Err()
}

// --- Nop实现 ---

type nopPublisher struct{}

// NewNopPublisher 返回一个丢弃所有事件的发布器，供测试使用
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) PublishSessionEvent(context.Context, Event) error {
	return nil
}
