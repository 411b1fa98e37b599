package participant

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CookieName 是参与者身份cookie的名字
	CookieName = "oursparks_pid"
	// ContextKey 是参与者id在gin context中的键名
	ContextKey = "participantID"

	// cookie有效期一年，身份是设备级的匿名标识
	cookieMaxAge = 365 * 24 * 60 * 60
)

// EnsureIdentity 保证每个请求者都持有一个参与者id。
// 没有cookie的首次请求会被签发一个新的UUID，
// 之后的请求通过cookie回带同一个id。
func EnsureIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		participantID, err := c.Cookie(CookieName)
		if err != nil || !isValidParticipantID(participantID) {
			fresh, err := uuid.NewV7()
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "无法签发参与者身份"})
				return
			}
			participantID = fresh.String()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(CookieName, participantID, cookieMaxAge, "/", "", false, true)
		}
		c.Set(ContextKey, participantID)
		c.Next()
	}
}

// FromContext 返回当前请求者的参与者id
func FromContext(c *gin.Context) string {
	if v, ok := c.Get(ContextKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// isValidParticipantID 校验cookie回带的id是合法的UUID
func isValidParticipantID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
