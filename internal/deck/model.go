package deck

import (
	"time"

	"gorm.io/gorm"
)

// DeckEntry 是会话牌堆中的一行，每个(会话, 提示卡)配对各占一行。
// 由牌堆构建器在会话创建时批量写入，之后只由回合协调器修改，
// 活跃会话期间不会被删除。
type DeckEntry struct {
	gorm.Model

	// SessionID 标识这行属于哪个会话的牌堆
	SessionID string `gorm:"index;uniqueIndex:idx_deck_session_card,priority:1;not null"`

	// CardID 是指向提示卡目录的弱引用
	CardID string `gorm:"uniqueIndex:idx_deck_session_card,priority:2;not null"`

	// Position 是发牌顺序，从0开始递增
	Position int `gorm:"not null"`

	// IsPlayed 标记该卡已被完成。与Skipped互斥。
	IsPlayed bool

	// Skipped 标记该卡被跳过。与IsPlayed互斥。
	Skipped bool

	// PlayedAt 是该卡被完成的时间，未完成时为空
	PlayedAt *time.Time
}
