package card

import (
	"fmt"

	"github.com/oursparks/couple-cards-backend/internal/platform/config"
	"github.com/oursparks/couple-cards-backend/internal/platform/database"
)

// PrimeCachedDB 负责初始化card模块的数据库、内存仓库和Redis缓存
func PrimeCachedDB() error {
	// 1. 迁移数据库表结构
	if err := migrateDB(); err != nil {
		return err
	}
	// 2. 按需导入提示卡种子
	if err := SeedCatalog(database.DB, config.Cfg.Game.CatalogSeedPath); err != nil {
		return err
	}
	// 3. 从数据库加载静态数据到内存仓库
	if err := InitializeRepository(); err != nil {
		return err
	}
	// 4. 将静态数据预热到Redis
	if err := WarmupCache(); err != nil {
		return err
	}
	return nil
}

// migrateDB 负责自动迁移数据库表结构
func migrateDB() error {
	if err := database.DB.AutoMigrate(&Card{}); err != nil {
		return fmt.Errorf("无法迁移card表: %w", err)
	}
	fmt.Println("Card数据库表迁移成功。")
	return nil
}
