package metadata

// Metadata 是一张简单的键值表，存放引擎的少量运行元数据，
// 例如提示卡目录的种子版本。
type Metadata struct {
	Key   string `gorm:"primaryKey"`
	Value string
}
