package game

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oursparks/couple-cards-backend/internal/deck"
	"github.com/oursparks/couple-cards-backend/internal/participant"
	"github.com/oursparks/couple-cards-backend/pkg/token"
)

// createSessionRequest 是创建会话接口的请求体
type createSessionRequest struct {
	DeckSize int `json:"deck_size"`
}

// joinSessionRequest 是加入会话接口的请求体
type joinSessionRequest struct {
	Invite    token.InvitePayload `json:"invite" binding:"required"`
	Signature string              `json:"signature" binding:"required"`
}

// CreateSession 处理 POST /api/sessions
func CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式错误"})
		return
	}

	dto, err := DefaultService.CreateSession(participant.FromContext(c), req.DeckSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

// JoinSession 处理 POST /api/sessions/join
func JoinSession(c *gin.Context) {
	var req joinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式错误"})
		return
	}

	view, err := DefaultService.JoinSession(participant.FromContext(c), req.Invite, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetSession 处理 GET /api/sessions/:id
func GetSession(c *gin.Context) {
	view, err := DefaultService.GetSession(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetSummary 处理 GET /api/sessions/:id/summary
func GetSummary(c *gin.Context) {
	summary, err := DefaultService.Summary(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// DrawCard 处理 POST /api/sessions/:id/draw
func DrawCard(c *gin.Context) {
	dto, err := DefaultService.DrawCard(c.Param("id"), participant.FromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// RevealCard 处理 POST /api/sessions/:id/reveal
func RevealCard(c *gin.Context) {
	view, err := DefaultService.RevealCard(c.Param("id"), participant.FromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CompleteTurn 处理 POST /api/sessions/:id/complete
func CompleteTurn(c *gin.Context) {
	view, err := DefaultService.CompleteTurn(c.Param("id"), participant.FromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SkipCard 处理 POST /api/sessions/:id/skip
func SkipCard(c *gin.Context) {
	view, err := DefaultService.SkipCard(c.Param("id"), participant.FromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// TogglePause 处理 POST /api/sessions/:id/pause
func TogglePause(c *gin.Context) {
	view, err := DefaultService.TogglePause(c.Param("id"), participant.FromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// EndGame 处理 POST /api/sessions/:id/end
func EndGame(c *gin.Context) {
	view, err := DefaultService.EndGame(c.Param("id"), participant.FromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// respondError 把领域错误映射成HTTP状态码。
// 校验类错误（不是你的回合/非法转换/额度耗尽）统一用409，
// 它们都表示“请求和会话当前状态冲突”，客户端应刷新快照后重试。
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
	case errors.Is(err, ErrInviteInvalid):
		c.JSON(http.StatusForbidden, gin.H{"error": "邀请无效"})
	case errors.Is(err, ErrAlreadyPaired):
		c.JSON(http.StatusConflict, gin.H{"error": "会话已有两位参与者"})
	case errors.Is(err, ErrNotYourTurn):
		c.JSON(http.StatusConflict, gin.H{"error": "当前不是你的回合"})
	case errors.Is(err, ErrInvalidStateTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "会话状态不允许该操作"})
	case errors.Is(err, ErrSkipLimitExceeded):
		c.JSON(http.StatusConflict, gin.H{"error": "跳过次数已用完"})
	case errors.Is(err, ErrDeckExhausted):
		c.JSON(http.StatusConflict, gin.H{"error": "牌堆已抽完"})
	case errors.Is(err, deck.ErrCatalogInsufficient):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "卡片库存不足，请减小牌堆大小"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
	}
}
