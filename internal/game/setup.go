package game

import (
	"fmt"

	"github.com/oursparks/couple-cards-backend/internal/platform/config"
	"github.com/oursparks/couple-cards-backend/internal/platform/database"
	"github.com/oursparks/couple-cards-backend/pkg/gamelog"
)

// DefaultService 是handler层使用的全局回合协调器实例
var DefaultService *Service

// PrimeDB 迁移会话表结构
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&GameSession{}); err != nil {
		return fmt.Errorf("无法迁移GameSession表: %w", err)
	}
	return nil
}

// InitializeService 用生产依赖装配全局回合协调器。
// 必须在config和database初始化完成之后调用。
func InitializeService(log gamelog.Logger) {
	DefaultService = NewService(
		database.DB,
		NewRedisPublisher(),
		NewRedisSkipAllowance(config.Cfg.Game.SkipAllowance),
		log,
		config.Cfg.Game.DefaultDeckSize,
		nil,
	)
}
