package sync

import (
	"context"
	"fmt"

	"github.com/oursparks/couple-cards-backend/internal/platform/database"
	"github.com/redis/go-redis/v9"
)

// PushChannel 抽象了会话事件的推送订阅端。
// 生产环境由Redis Pub/Sub实现，测试注入进程内通道。
type PushChannel interface {
	// Subscribe 订阅一条会话通道。确认订阅建立后才返回，
	// 建立失败返回错误，由同步器降级到轮询。
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription 是一条已建立的推送订阅
type Subscription interface {
	// Events 返回推送消息流。通道被关闭表示订阅已失效，
	// 消费方应重新订阅或降级到轮询。
	Events() <-chan []byte
	// Close 关闭订阅并释放底层连接
	Close() error
}

// --- Redis实现 ---

type redisPushChannel struct{}

// NewRedisPushChannel 返回基于Redis Pub/Sub的推送订阅端
func NewRedisPushChannel() PushChannel {
	return redisPushChannel{}
}

func (redisPushChannel) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	pubsub := database.RDB.Subscribe(ctx, channel)
	// Receive确认SUBSCRIBE指令成功，避免返回一条从未建立的订阅
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("无法订阅推送通道 %s: %w", channel, err)
	}
	return &redisSubscription{pubsub: pubsub}, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan []byte
	done   chan struct{}
}

func (s *redisSubscription) Events() <-chan []byte {
	if s.events == nil {
		s.events = make(chan []byte)
		s.done = make(chan struct{})
		go s.pump()
	}
	return s.events
}

// pump 把go-redis的消息流转成字节流，底层通道关闭时一并关闭
func (s *redisSubscription) pump() {
	defer close(s.events)
	for {
		select {
		case msg, ok := <-s.pubsub.Channel():
			if !ok {
				return
			}
			select {
			case s.events <- []byte(msg.Payload):
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Close() error {
	if s.done != nil {
		close(s.done)
	}
	return s.pubsub.Close()
}
