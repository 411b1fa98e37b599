package deck

import (
	"fmt"

	"github.com/oursparks/couple-cards-backend/internal/platform/database"
)

// PrimeDB 负责初始化deck模块的数据库表
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&DeckEntry{}); err != nil {
		return fmt.Errorf("无法迁移deck表: %w", err)
	}
	fmt.Println("Deck数据库表迁移成功。")
	return nil
}
