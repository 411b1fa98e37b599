package card

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oursparks/couple-cards-backend/internal/platform/database"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CardDTO 是读接口返回的提示卡视图
type CardDTO struct {
	ID         string   `json:"id"`
	Category   Category `json:"category"`
	Prompt     string   `json:"prompt"`
	Difficulty int      `json:"difficulty"`
}

// UsageCandidate 是牌堆构建器使用的候选卡，带上当前的使用次数
type UsageCandidate struct {
	CardID     string
	Category   Category
	UsageCount int
}

// ActiveCardsByCategory 查询目录中全部可用的提示卡，按类别分组返回。
// 牌堆构建器用它计算每个类别的库存和抽样权重。
func ActiveCardsByCategory(db *gorm.DB) (map[Category][]UsageCandidate, error) {
	var cards []Card
	if err := db.Where("is_active = ?", true).Order("id asc").Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("无法查询可用提示卡: %w", err)
	}

	grouped := make(map[Category][]UsageCandidate, len(Categories))
	for _, c := range cards {
		grouped[c.Category] = append(grouped[c.Category], UsageCandidate{
			CardID:     c.CardID,
			Category:   c.Category,
			UsageCount: c.UsageCount,
		})
	}
	return grouped, nil
}

// IncrementUsage 把指定提示卡的使用次数加一。
// 多个会话并发抽到同一张卡时允许丢失个别增量，
// UsageCount只是一个软性的热度信号，不是正确性计数器。
func IncrementUsage(db *gorm.DB, cardID string) error {
	return db.Model(&Card{}).Where("card_id = ?", cardID).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error
}

// GetCardByID 返回单张提示卡的视图。
// 优先读Redis缓存，缓存不可用或未命中时回退到SQLite。
func GetCardByID(cardID string) (*CardDTO, error) {
	if database.IsRedisHealthy() {
		infoJSON, err := database.RDB.HGet(database.Ctx, InfoKey, cardID).Result()
		if err == nil {
			var cached CachedInfo
			if err := json.Unmarshal([]byte(infoJSON), &cached); err == nil {
				return &CardDTO{
					ID:         cardID,
					Category:   cached.Category,
					Prompt:     cached.Prompt,
					Difficulty: cached.Difficulty,
				}, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			fmt.Printf("警告: 读取提示卡缓存失败，回退到SQLite: %v\n", err)
		}
	}

	var c Card
	err := database.DB.Where("card_id = ?", cardID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // 未找到
	}
	if err != nil {
		return nil, fmt.Errorf("无法从SQLite读取提示卡 %s: %w", cardID, err)
	}
	return &CardDTO{
		ID:         c.CardID,
		Category:   c.Category,
		Prompt:     c.Prompt,
		Difficulty: c.Difficulty,
	}, nil
}

// WarmupCache 把提示卡静态数据预热到Redis的card_info Hash。
// 注意：此函数不包含锁，调用方需要在安全的时机（单线程启动或Redis恢复流程）调用。
func WarmupCache() error {
	var cardsInDB []Card
	if err := database.DB.Find(&cardsInDB).Error; err != nil {
		return fmt.Errorf("无法从SQLite读取提示卡数据: %w", err)
	}

	pipe := database.RDB.Pipeline()
	pipe.Del(database.Ctx, InfoKey)
	for _, c := range cardsInDB {
		cached := CachedInfo{
			Category:   c.Category,
			Prompt:     c.Prompt,
			Difficulty: c.Difficulty,
			IsActive:   c.IsActive,
		}
		cachedJSON, _ := json.Marshal(cached)
		pipe.HSet(database.Ctx, InfoKey, c.CardID, cachedJSON)
	}

	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("预热提示卡缓存到Redis失败: %w", err)
	}

	fmt.Printf("成功预热 %d 张提示卡到Redis。\n", len(cardsInDB))
	return nil
}
