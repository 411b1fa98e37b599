package card

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/oursparks/couple-cards-backend/internal/platform/metadata"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// seedFile 对应提示卡种子文件的JSON结构
type seedFile struct {
	Version string      `json:"version"`
	Cards   []seedEntry `json:"cards"`
}

type seedEntry struct {
	ID         string   `json:"id"`
	Category   Category `json:"category"`
	Prompt     string   `json:"prompt"`
	Difficulty int      `json:"difficulty"`
}

// SeedCatalog 从JSON种子文件导入提示卡目录。
// 文件版本与metadata中记录的版本一致时跳过导入；
// 导入使用upsert，只覆盖文案类字段，UsageCount不受影响。
func SeedCatalog(db *gorm.DB, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("无法读取种子文件 %s: %w", path, err)
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("无法解析种子文件 %s: %w", path, err)
	}

	// 1. 版本未变化时不重复导入
	currentVersion, err := metadata.GetValue(db, metadata.CatalogSeedVersionKey)
	if err != nil {
		return err
	}
	if currentVersion == seed.Version && seed.Version != "" {
		fmt.Printf("提示卡种子版本 %s 已导入，跳过。\n", seed.Version)
		return nil
	}

	// 2. 在事务中完成整批upsert和版本更新
	err = db.Transaction(func(tx *gorm.DB) error {
		for _, entry := range seed.Cards {
			if !entry.Category.Valid() {
				return fmt.Errorf("种子文件中提示卡 %s 的类别非法: %s", entry.ID, entry.Category)
			}
			c := Card{
				CardID:     entry.ID,
				Category:   entry.Category,
				Prompt:     entry.Prompt,
				Difficulty: entry.Difficulty,
				IsActive:   true,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "card_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"category", "prompt", "difficulty", "is_active"}),
			}).Create(&c).Error
			if err != nil {
				return fmt.Errorf("无法写入提示卡 %s: %w", entry.ID, err)
			}
		}
		return metadata.SetValue(tx, metadata.CatalogSeedVersionKey, seed.Version)
	})
	if err != nil {
		return err
	}

	fmt.Printf("提示卡种子导入完成: 版本 %s, 共 %d 张。\n", seed.Version, len(seed.Cards))
	return nil
}
