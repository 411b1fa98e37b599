package sync

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oursparks/couple-cards-backend/internal/game"
	"github.com/oursparks/couple-cards-backend/internal/platform/config"
	"github.com/oursparks/couple-cards-backend/pkg/gamelog"
)

// DefaultSynchronizer 是handler层使用的全局同步器实例
var DefaultSynchronizer *Synchronizer

// InitializeSynchronizer 用生产依赖装配全局同步器。
// 必须在game.InitializeService之后调用。
func InitializeSynchronizer(log gamelog.Logger) {
	DefaultSynchronizer = NewSynchronizer(
		func(sessionID string) (*game.SessionView, error) {
			return game.DefaultService.GetSession(sessionID)
		},
		NewRedisPushChannel(),
		config.Cfg.Game.PollInterval,
		log,
	)
}

// streamEvent 是SSE流中的一条消息
type streamEvent struct {
	name string
	data interface{}
}

// streamCallbacks 把同步器回调桥接到SSE消息通道。
// 所有发送都不允许阻塞：消费方跟不上或已经断开时，
// 回调必须立刻返回，否则会把同步器的事件循环卡死。
func streamCallbacks(done <-chan struct{}, events chan<- streamEvent) Callbacks {
	return Callbacks{
		OnUpdate: func(view game.SessionView) {
			select {
			case events <- streamEvent{name: "session", data: view}:
			default:
				// 丢弃中间快照，下一条快照是完整状态
			}
		},
		OnPartnerJoin: func() {
			select {
			case events <- streamEvent{name: "partner_joined", data: gin.H{}}:
			case <-done:
			}
		},
		OnError: func(err error) {
			select {
			case events <- streamEvent{name: "sync_degraded", data: gin.H{"error": err.Error()}}:
			default:
			}
		},
	}
}

// StreamSession 处理 GET /api/sessions/:id/events。
// 把同步器的回调转成SSE流：每次快照变化发一条session事件，
// 伴侣首次连接发一条partner_joined事件。客户端断开即取消观察。
func StreamSession(c *gin.Context) {
	events := make(chan streamEvent, 16)
	done := c.Request.Context().Done()
	unsubscribe, err := DefaultSynchronizer.Observe(c.Param("id"), streamCallbacks(done, events))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
		return
	}
	defer unsubscribe()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case event := <-events:
			c.SSEvent(event.name, event.data)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
