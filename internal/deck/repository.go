package deck

import (
	"fmt"
	"time"

	"github.com/oursparks/couple-cards-backend/internal/card"
	"gorm.io/gorm"
)

// RemainingCandidates 返回会话牌堆中所有既未完成也未被跳过的提示卡，
// 按发牌顺序排列，并从内存目录仓库解析出各自的类别。
// 选择器把它作为候选池。
func RemainingCandidates(db *gorm.DB, sessionID string) ([]card.Candidate, error) {
	var entries []DeckEntry
	err := db.Where("session_id = ? AND is_played = ? AND skipped = ?", sessionID, false, false).
		Order("position asc").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("无法读取会话 %s 的剩余牌堆: %w", sessionID, err)
	}

	candidates := make([]card.Candidate, 0, len(entries))
	for _, entry := range entries {
		category, ok := card.CategoryOf(entry.CardID)
		if !ok {
			return nil, fmt.Errorf("牌堆引用了目录中不存在的提示卡: %s", entry.CardID)
		}
		candidates = append(candidates, card.Candidate{CardID: entry.CardID, Category: category})
	}
	return candidates, nil
}

// CountBySession 返回会话牌堆的总行数
func CountBySession(db *gorm.DB, sessionID string) (int64, error) {
	var count int64
	err := db.Model(&DeckEntry{}).Where("session_id = ?", sessionID).Count(&count).Error
	return count, err
}

// MarkPlayed 把牌堆行标记为已完成并记录完成时间。
// 条件更新保证一行不会同时是已完成和已跳过。
func MarkPlayed(db *gorm.DB, sessionID, cardID string, at time.Time) error {
	result := db.Model(&DeckEntry{}).
		Where("session_id = ? AND card_id = ? AND is_played = ? AND skipped = ?", sessionID, cardID, false, false).
		Updates(map[string]interface{}{"is_played": true, "played_at": at})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("牌堆行 (%s, %s) 不存在或已被标记", sessionID, cardID)
	}
	return nil
}

// MarkSkipped 把牌堆行标记为已跳过。
func MarkSkipped(db *gorm.DB, sessionID, cardID string) error {
	result := db.Model(&DeckEntry{}).
		Where("session_id = ? AND card_id = ? AND is_played = ? AND skipped = ?", sessionID, cardID, false, false).
		Update("skipped", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("牌堆行 (%s, %s) 不存在或已被标记", sessionID, cardID)
	}
	return nil
}
