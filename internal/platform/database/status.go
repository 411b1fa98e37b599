package database

import "sync"

// redisStatus 线程安全地记录Redis的可用性和最近一次已知的run_id。
// 健康检查器写入，其他模块只读。
type redisStatus struct {
	mu             sync.RWMutex
	healthy        bool
	lastKnownRunID string
}

var globalRedisStatus = &redisStatus{healthy: true}

// IsRedisHealthy 返回Redis当前是否可用。
func IsRedisHealthy() bool {
	globalRedisStatus.mu.RLock()
	defer globalRedisStatus.mu.RUnlock()
	return globalRedisStatus.healthy
}

// GetLastKnownRunID 返回最近一次健康检查记录的Redis run_id。
func GetLastKnownRunID() string {
	globalRedisStatus.mu.RLock()
	defer globalRedisStatus.mu.RUnlock()
	return globalRedisStatus.lastKnownRunID
}

// SetInitialRunID 在应用启动时设置初始的run_id。
func SetInitialRunID(runID string) {
	globalRedisStatus.mu.Lock()
	defer globalRedisStatus.mu.Unlock()
	globalRedisStatus.lastKnownRunID = runID
}

// UpdateStatus 由健康检查器在每轮检查后调用。
// healthy为false时runID会被忽略。
func UpdateStatus(healthy bool, runID string) {
	globalRedisStatus.mu.Lock()
	defer globalRedisStatus.mu.Unlock()
	globalRedisStatus.healthy = healthy
	if healthy {
		globalRedisStatus.lastKnownRunID = runID
	}
}
