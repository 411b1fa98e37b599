package card

import "gorm.io/gorm"

// Category 定义了提示卡的三种回应类别
type Category string

const (
	// CategoryAction 表示需要完成一个动作的提示卡
	CategoryAction Category = "action"
	// CategoryText 表示需要文字回应的提示卡
	CategoryText Category = "text"
	// CategoryPhoto 表示需要照片回应的提示卡
	CategoryPhoto Category = "photo"
)

// Categories 按权重抽取时使用的固定类别顺序：action、text、photo
var Categories = []Category{CategoryAction, CategoryText, CategoryPhoto}

// Valid 判断类别是否属于三种合法取值之一
func (c Category) Valid() bool {
	switch c {
	case CategoryAction, CategoryText, CategoryPhoto:
		return true
	}
	return false
}

// Card 定义了数据库中提示卡的数据结构
// 除UsageCount外，提示卡在目录中是不可变的；引擎只读取和累加UsageCount
type Card struct {
	// gorm.Model 包含 ID, CreatedAt, UpdatedAt, DeletedAt
	gorm.Model

	// CardID 是提示卡的业务主键，例如 "act-0042"
	CardID string `gorm:"uniqueIndex;not null" json:"id"`

	// Category 是提示卡的回应类别
	Category Category `gorm:"index" json:"category"`

	// Prompt 是展示给参与者的提示文案
	Prompt string `json:"prompt"`

	// Difficulty 是提示卡的难度等级 (1-5)
	Difficulty int `json:"difficulty"`

	// UsageCount 记录提示卡被抽中的总次数，用于把磨损摊开到整个目录
	UsageCount int `json:"usage_count"`

	// IsActive 标记提示卡是否可被发入牌堆
	IsActive bool `gorm:"index" json:"is_active"`
}

// Candidate 是选择器和牌堆构建器工作时使用的轻量候选卡
// 它把原始id和类别绑定在一起，避免选择算法反复回表查类别
type Candidate struct {
	CardID   string
	Category Category
}
