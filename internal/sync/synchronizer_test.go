package sync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oursparks/couple-cards-backend/internal/game"
	"github.com/oursparks/couple-cards-backend/pkg/gamelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 进程内的推送通道替身 ---

type fakeSubscription struct {
	events    chan []byte
	closeOnce sync.Once
}

func (f *fakeSubscription) Events() <-chan []byte { return f.events }

func (f *fakeSubscription) Close() error {
	f.closeOnce.Do(func() { close(f.events) })
	return nil
}

type fakePushChannel struct {
	mu      sync.Mutex
	failing bool
	current *fakeSubscription
}

func (f *fakePushChannel) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errors.New("推送通道不可用")
	}
	f.current = &fakeSubscription{events: make(chan []byte, 16)}
	return f.current, nil
}

func (f *fakePushChannel) setFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

func (f *fakePushChannel) push(t *testing.T, event game.Event) {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotNil(t, f.current)
	f.current.events <- payload
}

func (f *fakePushChannel) dropSubscription() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current != nil {
		f.current.Close()
		f.current = nil
	}
}

// --- 快照工具 ---

func snapshot(played int, participantB string) game.SessionView {
	return game.SessionView{
		SessionID:        "session-1",
		ParticipantA:     "alice",
		ParticipantB:     participantB,
		CurrentTurn:      "alice",
		Status:           game.StatusActive,
		TurnState:        game.TurnStateIdle,
		TotalCardsPlayed: played,
		DeckSize:         9,
	}
}

func staticFetcher(view game.SessionView) SnapshotFetcher {
	return func(string) (*game.SessionView, error) {
		v := view
		return &v, nil
	}
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("等待回调超时")
		panic("unreachable")
	}
}

func TestObserveDeliversBaselineSnapshot(t *testing.T) {
	push := &fakePushChannel{}
	updates := make(chan game.SessionView, 16)

	s := NewSynchronizer(staticFetcher(snapshot(2, "bob")), push, 50*time.Millisecond, gamelog.Nop())
	unsubscribe, err := s.Observe("session-1", Callbacks{
		OnUpdate: func(v game.SessionView) { updates <- v },
	})
	require.NoError(t, err)
	defer unsubscribe()

	view := waitFor(t, updates)
	assert.Equal(t, 2, view.TotalCardsPlayed)
}

func TestObserveFailsWhenBaselineFetchFails(t *testing.T) {
	push := &fakePushChannel{}
	fetch := func(string) (*game.SessionView, error) {
		return nil, game.ErrSessionNotFound
	}

	s := NewSynchronizer(fetch, push, 50*time.Millisecond, gamelog.Nop())
	_, err := s.Observe("missing", Callbacks{})
	assert.ErrorIs(t, err, game.ErrSessionNotFound)
}

func TestPushEventsReachObserver(t *testing.T) {
	push := &fakePushChannel{}
	updates := make(chan game.SessionView, 16)

	s := NewSynchronizer(staticFetcher(snapshot(0, "")), push, time.Hour, gamelog.Nop())
	unsubscribe, err := s.Observe("session-1", Callbacks{
		OnUpdate: func(v game.SessionView) { updates <- v },
	})
	require.NoError(t, err)
	defer unsubscribe()

	waitFor(t, updates) // 基线

	// 等订阅建立后推送一个事件
	require.Eventually(t, func() bool {
		push.mu.Lock()
		defer push.mu.Unlock()
		return push.current != nil
	}, 2*time.Second, 5*time.Millisecond)

	push.push(t, game.Event{Kind: game.EventSessionUpdated, Session: snapshot(1, "bob")})
	view := waitFor(t, updates)
	assert.Equal(t, 1, view.TotalCardsPlayed)
}

func TestPartnerJoinFiresExactlyOnce(t *testing.T) {
	push := &fakePushChannel{}
	updates := make(chan game.SessionView, 16)
	joins := make(chan struct{}, 16)

	s := NewSynchronizer(staticFetcher(snapshot(0, "")), push, time.Hour, gamelog.Nop())
	unsubscribe, err := s.Observe("session-1", Callbacks{
		OnUpdate:      func(v game.SessionView) { updates <- v },
		OnPartnerJoin: func() { joins <- struct{}{} },
	})
	require.NoError(t, err)
	defer unsubscribe()

	waitFor(t, updates)
	assert.Empty(t, joins, "伴侣未加入时不应触发")

	require.Eventually(t, func() bool {
		push.mu.Lock()
		defer push.mu.Unlock()
		return push.current != nil
	}, 2*time.Second, 5*time.Millisecond)

	push.push(t, game.Event{Kind: game.EventSessionUpdated, Session: snapshot(0, "bob")})
	waitFor(t, updates)
	waitFor(t, joins)

	// 后续快照不再重复触发
	push.push(t, game.Event{Kind: game.EventSessionUpdated, Session: snapshot(1, "bob")})
	waitFor(t, updates)
	assert.Empty(t, joins)
}

func TestPollingTakesOverWhenPushUnavailable(t *testing.T) {
	push := &fakePushChannel{}
	push.setFailing(true)
	updates := make(chan game.SessionView, 1024)
	errs := make(chan error, 1024)

	s := NewSynchronizer(staticFetcher(snapshot(3, "bob")), push, 10*time.Millisecond, gamelog.Nop())
	unsubscribe, err := s.Observe("session-1", Callbacks{
		OnUpdate: func(v game.SessionView) { updates <- v },
		OnError:  func(e error) { errs <- e },
	})
	require.NoError(t, err)
	defer unsubscribe()

	waitFor(t, updates) // 基线
	waitFor(t, errs)    // 订阅失败被上报

	// 轮询路径继续送达快照
	view := waitFor(t, updates)
	assert.Equal(t, 3, view.TotalCardsPlayed)

	// 推送恢复后轮询周期内完成重连
	push.setFailing(false)
	require.Eventually(t, func() bool {
		push.mu.Lock()
		defer push.mu.Unlock()
		return push.current != nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSubscriptionLossFallsBackToPolling(t *testing.T) {
	push := &fakePushChannel{}
	updates := make(chan game.SessionView, 1024)
	errs := make(chan error, 1024)

	s := NewSynchronizer(staticFetcher(snapshot(5, "bob")), push, 10*time.Millisecond, gamelog.Nop())
	unsubscribe, err := s.Observe("session-1", Callbacks{
		OnUpdate: func(v game.SessionView) { updates <- v },
		OnError:  func(e error) { errs <- e },
	})
	require.NoError(t, err)
	defer unsubscribe()

	waitFor(t, updates)
	require.Eventually(t, func() bool {
		push.mu.Lock()
		defer push.mu.Unlock()
		return push.current != nil
	}, 2*time.Second, 5*time.Millisecond)

	// 订阅中途断开
	push.dropSubscription()
	waitFor(t, errs)

	// 轮询兜底继续工作
	view := waitFor(t, updates)
	assert.Equal(t, 5, view.TotalCardsPlayed)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	push := &fakePushChannel{}
	s := NewSynchronizer(staticFetcher(snapshot(0, "")), push, 50*time.Millisecond, gamelog.Nop())

	unsubscribe, err := s.Observe("session-1", Callbacks{})
	require.NoError(t, err)

	unsubscribe()
	unsubscribe() // 重复调用不会panic
}

func TestPartnerConnectedHeuristic(t *testing.T) {
	// 游玩活动是最强的存在性证据
	assert.True(t, PartnerConnected(game.SessionView{TotalCardsPlayed: 1}))
	assert.True(t, PartnerConnected(game.SessionView{PlayedCards: []string{"c1"}}))
	assert.True(t, PartnerConnected(game.SessionView{SkippedCards: []string{"c1"}}))

	// 伴侣位已填充且会话进行中
	assert.True(t, PartnerConnected(game.SessionView{ParticipantB: "bob", Status: game.StatusActive}))

	// 占位为空或会话未激活都不算已连接
	assert.False(t, PartnerConnected(game.SessionView{Status: game.StatusActive}))
	assert.False(t, PartnerConnected(game.SessionView{ParticipantB: "bob", Status: game.StatusCompleted}))
	assert.False(t, PartnerConnected(game.SessionView{}))
}
