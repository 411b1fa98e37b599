package game

import (
	"fmt"
	"sync"

	"github.com/oursparks/couple-cards-backend/internal/platform/database"
)

// SkipAllowance 由外部协作方记录每位参与者剩余的跳过次数。
// 回合协调器只负责在额度耗尽时拒绝skipCard。
type SkipAllowance interface {
	// Remaining 返回参与者剩余的跳过次数
	Remaining(sessionID, participantID string) (int, error)
	// Consume 扣减一次额度，额度耗尽时返回ErrSkipLimitExceeded
	Consume(sessionID, participantID string) error
	// Refund 归还一次额度，用于扣减后事务失败的补偿
	Refund(sessionID, participantID string) error
}

// --- Redis实现 ---

// skipsKeyForSession 返回会话跳过额度Hash的键名，field是参与者id
func skipsKeyForSession(sessionID string) string {
	return "game:session:" + sessionID + ":skips"
}

type redisSkipAllowance struct {
	allowance int
}

// NewRedisSkipAllowance 返回基于Redis Hash计数的跳过额度实现。
// 每位参与者首次扣减时惰性初始化为给定额度。
func NewRedisSkipAllowance(allowance int) SkipAllowance {
	return &redisSkipAllowance{allowance: allowance}
}

func (r *redisSkipAllowance) Remaining(sessionID, participantID string) (int, error) {
	key := skipsKeyForSession(sessionID)
	// 惰性初始化：field不存在时写入默认额度
	if err := database.RDB.HSetNX(database.Ctx, key, participantID, r.allowance).Err(); err != nil {
		return 0, fmt.Errorf("无法初始化跳过额度: %w", err)
	}
	return database.RDB.HGet(database.Ctx, key, participantID).Int()
}

func (r *redisSkipAllowance) Consume(sessionID, participantID string) error {
	key := skipsKeyForSession(sessionID)
	if err := database.RDB.HSetNX(database.Ctx, key, participantID, r.allowance).Err(); err != nil {
		return fmt.Errorf("无法初始化跳过额度: %w", err)
	}
	remaining, err := database.RDB.HIncrBy(database.Ctx, key, participantID, -1).Result()
	if err != nil {
		return fmt.Errorf("无法扣减跳过额度: %w", err)
	}
	if remaining < 0 {
		// 扣穿了，补偿回去再拒绝
		database.RDB.HIncrBy(database.Ctx, key, participantID, 1)
		return ErrSkipLimitExceeded
	}
	return nil
}

func (r *redisSkipAllowance) Refund(sessionID, participantID string) error {
	return database.RDB.HIncrBy(database.Ctx, skipsKeyForSession(sessionID), participantID, 1).Err()
}

// --- 内存实现 ---

// memorySkipAllowance 是进程内的额度实现，供测试使用
type memorySkipAllowance struct {
	mu        sync.Mutex
	allowance int
	remaining map[string]int
}

// NewMemorySkipAllowance 返回进程内的跳过额度实现
func NewMemorySkipAllowance(allowance int) SkipAllowance {
	return &memorySkipAllowance{
		allowance: allowance,
		remaining: make(map[string]int),
	}
}

func (m *memorySkipAllowance) key(sessionID, participantID string) string {
	return sessionID + "/" + participantID
}

func (m *memorySkipAllowance) Remaining(sessionID, participantID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(sessionID, participantID)
	if _, ok := m.remaining[k]; !ok {
		m.remaining[k] = m.allowance
	}
	return m.remaining[k], nil
}

func (m *memorySkipAllowance) Consume(sessionID, participantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(sessionID, participantID)
	if _, ok := m.remaining[k]; !ok {
		m.remaining[k] = m.allowance
	}
	if m.remaining[k] <= 0 {
		return ErrSkipLimitExceeded
	}
	m.remaining[k]--
	return nil
}

func (m *memorySkipAllowance) Refund(sessionID, participantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remaining[m.key(sessionID, participantID)]++
	return nil
}
