package metadata

const (
	// CatalogSeedVersionKey 记录已导入的提示卡种子文件版本。
	// 版本未变化时，启动流程会跳过重复导入。
	CatalogSeedVersionKey = "catalog_seed_version"
)
