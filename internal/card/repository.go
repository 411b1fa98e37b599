package card

import (
	"fmt"

	"github.com/oursparks/couple-cards-backend/internal/platform/database"
)

// CardInfo 持有提示卡的静态数据，在程序启动时加载到内存中
type CardInfo struct {
	Category   Category
	Prompt     string
	Difficulty int
	IsActive   bool
}

// repository 是card模块的中央数据仓库。
// 静态数据在启动时一次性加载，之后只读，所以读路径不需要加锁。
type repository struct {
	idToIndex   map[string]int
	indexToID   []string
	indexToInfo []CardInfo
}

// globalRepository 是仓库的私有单例实例
var globalRepository *repository

// InitializeRepository 从SQLite加载提示卡静态数据，初始化内存仓库。
// 这个函数应该在应用启动时且仅调用一次。
func InitializeRepository() error {
	var cardsFromDB []Card
	if err := database.DB.Order("id asc").Find(&cardsFromDB).Error; err != nil {
		return fmt.Errorf("无法从SQLite加载提示卡静态数据: %w", err)
	}

	size := len(cardsFromDB)
	if size == 0 {
		return fmt.Errorf("提示卡目录为空，无法初始化仓库")
	}

	globalRepository = &repository{
		idToIndex:   make(map[string]int, size),
		indexToID:   make([]string, size),
		indexToInfo: make([]CardInfo, size),
	}

	for i, c := range cardsFromDB {
		globalRepository.idToIndex[c.CardID] = i
		globalRepository.indexToID[i] = c.CardID
		globalRepository.indexToInfo[i] = CardInfo{
			Category:   c.Category,
			Prompt:     c.Prompt,
			Difficulty: c.Difficulty,
			IsActive:   c.IsActive,
		}
	}

	fmt.Printf("提示卡仓库 (Repository) 初始化成功，加载了 %d 张卡。\n", size)
	return nil
}

// GetCardCount 返回目录中的提示卡总数
func GetCardCount() int {
	if globalRepository == nil {
		return 0
	}
	return len(globalRepository.indexToInfo)
}

// GetCardInfoByID 返回指定提示卡的静态信息
func GetCardInfoByID(id string) (CardInfo, bool) {
	if globalRepository == nil {
		return CardInfo{}, false
	}
	index, ok := globalRepository.idToIndex[id]
	if !ok {
		return CardInfo{}, false
	}
	return globalRepository.indexToInfo[index], true
}

// CategoryOf 返回指定提示卡的类别。
// 选择器在每次选卡前用它把原始id列表解析成带类别的记录。
func CategoryOf(id string) (Category, bool) {
	info, ok := GetCardInfoByID(id)
	if !ok {
		return "", false
	}
	return info.Category, true
}
