package metadata

import (
	"fmt"

	"github.com/oursparks/couple-cards-backend/internal/platform/database"
)

// PrimeDB 负责初始化metadata模块的数据库表
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&Metadata{}); err != nil {
		return fmt.Errorf("无法迁移metadata表: %w", err)
	}
	return nil
}
