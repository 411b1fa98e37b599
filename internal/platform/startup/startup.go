package startup

import (
	"fmt"

	"github.com/oursparks/couple-cards-backend/internal/card"
	"github.com/oursparks/couple-cards-backend/internal/deck"
	"github.com/oursparks/couple-cards-backend/internal/game"
	"github.com/oursparks/couple-cards-backend/internal/platform/metadata"
)

// InitializeApplication 是应用首次启动时执行的总入口。
// 各模块按依赖顺序初始化：metadata先于card（目录播种要读写版本号），
// card先于deck和game（两者都依赖内存目录仓库）。
func InitializeApplication() error {
	fmt.Println("开始应用首次初始化...")

	if err := metadata.PrimeDB(); err != nil {
		return err
	}
	if err := card.PrimeCachedDB(); err != nil {
		return err
	}
	if err := deck.PrimeDB(); err != nil {
		return err
	}
	if err := game.PrimeDB(); err != nil {
		return err
	}

	fmt.Println("应用初始化完成！")
	return nil
}

// RebuildCache 在运行时热重建Redis缓存。
// 提示卡目录是唯一的Redis只读缓存，跳过额度和推送通道
// 都不依赖持久化的Redis状态，重启后惰性重建即可。
func RebuildCache() error {
	fmt.Println("开始缓存热重建...")
	if err := card.WarmupCache(); err != nil {
		return err
	}
	fmt.Println("缓存热重建完成！")
	return nil
}
