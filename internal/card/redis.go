package card

// 定义与提示卡相关的Redis键名
const (
	// InfoKey 是一个Redis Hash，缓存所有提示卡的静态数据，供读接口使用
	InfoKey = "card_info"
)

// CachedInfo 定义了在Redis card_info Hash中存储的提示卡静态数据
type CachedInfo struct {
	Category   Category `json:"category"`
	Prompt     string   `json:"prompt"`
	Difficulty int      `json:"difficulty"`
	IsActive   bool     `json:"is_active"`
}
