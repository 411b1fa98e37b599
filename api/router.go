package api

import (
	"github.com/gin-gonic/gin"
	"github.com/oursparks/couple-cards-backend/internal/card"
	"github.com/oursparks/couple-cards-backend/internal/game"
	"github.com/oursparks/couple-cards-backend/internal/participant"
	"github.com/oursparks/couple-cards-backend/internal/sync"
)

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		// 提示卡目录
		cardRoutes := api.Group("/cards")
		{
			cardRoutes.GET("/:id", card.GetCard)
		}

		// 会话与回合：所有路由都要求参与者身份
		sessionRoutes := api.Group("/sessions", participant.EnsureIdentity())
		{
			sessionRoutes.POST("", game.CreateSession)
			sessionRoutes.POST("/join", game.JoinSession)
			sessionRoutes.GET("/:id", game.GetSession)
			sessionRoutes.GET("/:id/summary", game.GetSummary)
			sessionRoutes.GET("/:id/events", sync.StreamSession)

			// 回合状态机操作
			sessionRoutes.POST("/:id/draw", game.DrawCard)
			sessionRoutes.POST("/:id/reveal", game.RevealCard)
			sessionRoutes.POST("/:id/complete", game.CompleteTurn)
			sessionRoutes.POST("/:id/skip", game.SkipCard)
			sessionRoutes.POST("/:id/pause", game.TogglePause)
			sessionRoutes.POST("/:id/end", game.EndGame)
		}
	}
}
