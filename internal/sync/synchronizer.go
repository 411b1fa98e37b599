package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oursparks/couple-cards-backend/internal/game"
	"github.com/oursparks/couple-cards-backend/pkg/gamelog"
)

// Callbacks 是观察者向同步器注册的回调集合。
// 所有回调都在同步器自己的goroutine里串行调用，观察方无需加锁。
type Callbacks struct {
	// OnUpdate 在会话快照变化时被调用，推送和轮询两条路径共用
	OnUpdate func(view game.SessionView)
	// OnPartnerJoin 在伴侣连接启发式首次从否变为是时被调用，仅一次
	OnPartnerJoin func()
	// OnError 在推送订阅失效或轮询失败时被调用，纯通知性质
	OnError func(err error)
}

// SnapshotFetcher 按会话id拉取当前快照，轮询回退路径使用
type SnapshotFetcher func(sessionID string) (*game.SessionView, error)

// Synchronizer 把一个会话的状态变化送达观察者。
// 主路径是推送订阅；推送不可用期间以固定间隔轮询兜底，
// 两条路径的快照都汇入同一个归约入口，保证回调语义一致。
type Synchronizer struct {
	fetch        SnapshotFetcher
	push         PushChannel
	pollInterval time.Duration
	log          gamelog.Logger
}

// NewSynchronizer 创建一个会话同步器
func NewSynchronizer(fetch SnapshotFetcher, push PushChannel, pollInterval time.Duration, log gamelog.Logger) *Synchronizer {
	if log == nil {
		log = gamelog.Nop()
	}
	return &Synchronizer{
		fetch:        fetch,
		push:         push,
		pollInterval: pollInterval,
		log:          log,
	}
}

// Observe 开始观察一个会话，返回取消观察的函数。
// 先做一次基线拉取（会话不存在时直接报错），随后建立推送订阅；
// 订阅建立失败或中途失效时降级到轮询，恢复后自动停止轮询。
// 返回的取消函数幂等，重复调用是安全的。
func (s *Synchronizer) Observe(sessionID string, cb Callbacks) (func(), error) {
	baseline, err := s.fetch(sessionID)
	if err != nil {
		return nil, fmt.Errorf("基线拉取失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ob := &observer{cb: cb}
	ob.apply(*baseline)

	go s.run(ctx, sessionID, ob)

	var once sync.Once
	unsubscribe := func() {
		once.Do(cancel)
	}
	return unsubscribe, nil
}

// run 是单个观察的事件循环。
// pollC在推送健康时为nil，从而把轮询分支从select中摘除。
func (s *Synchronizer) run(ctx context.Context, sessionID string, ob *observer) {
	var sub Subscription
	var events <-chan []byte
	var ticker *time.Ticker
	var pollC <-chan time.Time

	startPolling := func() {
		if ticker == nil {
			ticker = time.NewTicker(s.pollInterval)
			pollC = ticker.C
		}
	}
	stopPolling := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			pollC = nil
		}
	}
	defer func() {
		stopPolling()
		if sub != nil {
			sub.Close()
		}
	}()

	trySubscribe := func() {
		newSub, err := s.push.Subscribe(ctx, game.ChannelForSession(sessionID))
		if err != nil {
			s.log.Warnf("会话 %s 推送订阅失败，降级到轮询: %v", sessionID, err)
			ob.reportError(err)
			startPolling()
			return
		}
		sub = newSub
		events = sub.Events()
		stopPolling()
	}

	trySubscribe()

	for {
		select {
		case <-ctx.Done():
			return

		case payload, ok := <-events:
			if !ok {
				// 订阅失效：立刻开启轮询，重连放到下一个轮询周期
				sub.Close()
				sub = nil
				events = nil
				ob.reportError(fmt.Errorf("会话 %s 的推送订阅已断开", sessionID))
				startPolling()
				continue
			}
			var event game.Event
			if err := json.Unmarshal(payload, &event); err != nil {
				s.log.Warnf("会话 %s 收到无法解析的推送消息: %v", sessionID, err)
				continue
			}
			ob.apply(event.Session)

		case <-pollC:
			if view, err := s.fetch(sessionID); err != nil {
				ob.reportError(err)
			} else {
				ob.apply(*view)
			}
			if sub == nil {
				trySubscribe()
			}
		}
	}
}

// PartnerConnected 是伴侣连接启发式。
// 没有显式的在线协议，存在性从状态推断：
// 任何一方有过游玩活动，或伴侣位已被填充且会话仍在进行，即视为已连接。
func PartnerConnected(view game.SessionView) bool {
	if view.TotalCardsPlayed > 0 || len(view.PlayedCards) > 0 || len(view.SkippedCards) > 0 {
		return true
	}
	return view.ParticipantB != "" && view.Status == game.StatusActive
}

// observer 持有单个观察的归约状态
type observer struct {
	cb          Callbacks
	partnerSeen bool
}

// apply 是两条路径共用的归约入口：快照是last-write-wins的，
// 直接透传给OnUpdate，并在这里统一判定伴侣加入的沿触发。
func (o *observer) apply(view game.SessionView) {
	if o.cb.OnUpdate != nil {
		o.cb.OnUpdate(view)
	}
	if !o.partnerSeen && PartnerConnected(view) {
		o.partnerSeen = true
		if o.cb.OnPartnerJoin != nil {
			o.cb.OnPartnerJoin()
		}
	}
}

func (o *observer) reportError(err error) {
	if o.cb.OnError != nil {
		o.cb.OnError(err)
	}
}
