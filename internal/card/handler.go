package card

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetCard 处理 GET /api/cards/:id，返回单张提示卡的文案信息
func GetCard(c *gin.Context) {
	cardID := c.Param("id")

	dto, err := GetCardByID(cardID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取提示卡失败: " + err.Error()})
		return
	}
	if dto == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "提示卡不存在: " + cardID})
		return
	}

	c.JSON(http.StatusOK, dto)
}
