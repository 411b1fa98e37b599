package game

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/oursparks/couple-cards-backend/internal/card"
	"github.com/oursparks/couple-cards-backend/internal/deck"
	"github.com/oursparks/couple-cards-backend/internal/platform/database"
	"github.com/oursparks/couple-cards-backend/pkg/gamelog"
	"github.com/oursparks/couple-cards-backend/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	alice = "participant-alice"
	bob   = "participant-bob"
	carol = "participant-carol"
)

// newTestService 装配一个跑在内存SQLite上的回合协调器，
// 发布器为Nop，跳过额度为进程内实现，随机源固定种子。
func newTestService(t *testing.T, skipAllowance int) *Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&card.Card{}, &deck.DeckEntry{}, &GameSession{}))

	for _, c := range card.Categories {
		for i := 0; i < 8; i++ {
			require.NoError(t, db.Create(&card.Card{
				CardID:   fmt.Sprintf("%s-%03d", c, i),
				Category: c,
				Prompt:   fmt.Sprintf("提示 %s %d", c, i),
				IsActive: true,
			}).Error)
		}
	}

	// 内存目录仓库读取包级的数据库单例
	database.DB = db
	require.NoError(t, card.InitializeRepository())
	token.GenerateSecretKey()

	return NewService(db, NewNopPublisher(), NewMemorySkipAllowance(skipAllowance),
		gamelog.Nop(), 9, rand.New(rand.NewSource(42)))
}

// newPairedSession 创建一局会话并让bob完成加入，返回会话id
func newPairedSession(t *testing.T, svc *Service, deckSize int) string {
	t.Helper()
	created, err := svc.CreateSession(alice, deckSize)
	require.NoError(t, err)
	_, err = svc.JoinSession(bob, created.Invite, created.Signature)
	require.NoError(t, err)
	return created.Session.SessionID
}

// playOneTurn 以requester的身份完整走完抽卡-展示-完成一个回合
func playOneTurn(t *testing.T, svc *Service, sessionID, requester string) *SessionView {
	t.Helper()
	_, err := svc.DrawCard(sessionID, requester)
	require.NoError(t, err)
	_, err = svc.RevealCard(sessionID, requester)
	require.NoError(t, err)
	view, err := svc.CompleteTurn(sessionID, requester)
	require.NoError(t, err)
	return view
}

func TestCreateSessionBuildsDeckAndInvite(t *testing.T) {
	svc := newTestService(t, 3)

	created, err := svc.CreateSession(alice, 9)
	require.NoError(t, err)

	assert.Equal(t, alice, created.Session.ParticipantA)
	assert.Empty(t, created.Session.ParticipantB)
	assert.Equal(t, alice, created.Session.CurrentTurn)
	assert.Equal(t, StatusActive, created.Session.Status)
	assert.Equal(t, TurnStateIdle, created.Session.TurnState)
	assert.Equal(t, 9, created.Session.DeckSize)

	count, err := deck.CountBySession(svc.db, created.Session.SessionID)
	require.NoError(t, err)
	assert.EqualValues(t, 9, count)

	assert.Equal(t, created.Session.SessionID, created.Invite.SessionID)
	assert.True(t, token.ValidateInviteSignature(created.Invite, created.Signature))
}

func TestJoinSessionValidation(t *testing.T) {
	svc := newTestService(t, 3)
	created, err := svc.CreateSession(alice, 9)
	require.NoError(t, err)

	// 伪造签名
	_, err = svc.JoinSession(bob, created.Invite, "bogus")
	assert.ErrorIs(t, err, ErrInviteInvalid)

	// 邀请者不能加入自己的伴侣位
	_, err = svc.JoinSession(alice, created.Invite, created.Signature)
	assert.ErrorIs(t, err, ErrInviteInvalid)

	view, err := svc.JoinSession(bob, created.Invite, created.Signature)
	require.NoError(t, err)
	assert.Equal(t, bob, view.ParticipantB)

	// 重复加入是幂等的
	_, err = svc.JoinSession(bob, created.Invite, created.Signature)
	assert.NoError(t, err)

	// 第三者被拒绝
	_, err = svc.JoinSession(carol, created.Invite, created.Signature)
	assert.ErrorIs(t, err, ErrAlreadyPaired)
}

func TestDrawRevealCompleteFlipsTurn(t *testing.T) {
	svc := newTestService(t, 3)
	sessionID := newPairedSession(t, svc, 9)

	drawn, err := svc.DrawCard(sessionID, alice)
	require.NoError(t, err)
	assert.Equal(t, TurnStateDrawn, drawn.Session.TurnState)
	assert.NotEmpty(t, drawn.Session.CurrentCardID)
	assert.Equal(t, drawn.Session.CurrentCardID, drawn.Card.ID)
	assert.NotEmpty(t, drawn.Card.Prompt)

	revealed, err := svc.RevealCard(sessionID, alice)
	require.NoError(t, err)
	assert.Equal(t, TurnStateRevealed, revealed.TurnState)

	completed, err := svc.CompleteTurn(sessionID, alice)
	require.NoError(t, err)
	assert.Equal(t, TurnStateIdle, completed.TurnState)
	assert.Equal(t, bob, completed.CurrentTurn)
	assert.Empty(t, completed.CurrentCardID)
	assert.Equal(t, 1, completed.TotalCardsPlayed)
	assert.Equal(t, []string{drawn.Card.ID}, completed.PlayedCards)

	// 回合翻转后轮到bob
	_, err = svc.DrawCard(sessionID, bob)
	assert.NoError(t, err)
}

func TestDrawOutOfTurnLeavesStateUntouched(t *testing.T) {
	svc := newTestService(t, 3)
	sessionID := newPairedSession(t, svc, 9)

	_, err := svc.DrawCard(sessionID, bob)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	view, err := svc.GetSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, TurnStateIdle, view.TurnState)
	assert.Equal(t, alice, view.CurrentTurn)
	assert.Empty(t, view.CurrentCardID)
}

func TestInvalidTurnTransitions(t *testing.T) {
	svc := newTestService(t, 3)
	sessionID := newPairedSession(t, svc, 9)

	// Idle状态下只能抽卡
	_, err := svc.RevealCard(sessionID, alice)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = svc.CompleteTurn(sessionID, alice)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = svc.SkipCard(sessionID, alice)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	_, err = svc.DrawCard(sessionID, alice)
	require.NoError(t, err)

	// Drawn状态下不能再次抽卡，也不能直接完成
	_, err = svc.DrawCard(sessionID, alice)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = svc.CompleteTurn(sessionID, alice)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	// 局外人碰什么都不行
	_, err = svc.RevealCard(sessionID, carol)
	assert.ErrorIs(t, err, ErrNotYourTurn)
}

func TestSkipDoesNotCountAsProgress(t *testing.T) {
	svc := newTestService(t, 3)
	sessionID := newPairedSession(t, svc, 9)

	drawn, err := svc.DrawCard(sessionID, alice)
	require.NoError(t, err)

	view, err := svc.SkipCard(sessionID, alice)
	require.NoError(t, err)
	assert.Equal(t, TurnStateIdle, view.TurnState)
	assert.Equal(t, bob, view.CurrentTurn)
	assert.Equal(t, 0, view.TotalCardsPlayed)
	assert.Equal(t, []string{drawn.Card.ID}, view.SkippedCards)

	// 被跳过的卡从候选池中移除
	remaining, err := deck.RemainingCandidates(svc.db, sessionID)
	require.NoError(t, err)
	assert.Len(t, remaining, 8)
	for _, candidate := range remaining {
		assert.NotEqual(t, drawn.Card.ID, candidate.CardID)
	}
}

func TestSkipAllowanceExhaustion(t *testing.T) {
	svc := newTestService(t, 1)
	sessionID := newPairedSession(t, svc, 9)

	_, err := svc.DrawCard(sessionID, alice)
	require.NoError(t, err)
	_, err = svc.SkipCard(sessionID, alice)
	require.NoError(t, err)

	// bob的额度独立计数
	_, err = svc.DrawCard(sessionID, bob)
	require.NoError(t, err)
	_, err = svc.SkipCard(sessionID, bob)
	require.NoError(t, err)

	// alice的额度已耗尽，拒绝且桌上的卡保持不动
	drawn, err := svc.DrawCard(sessionID, alice)
	require.NoError(t, err)
	_, err = svc.SkipCard(sessionID, alice)
	assert.ErrorIs(t, err, ErrSkipLimitExceeded)

	view, err := svc.GetSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, TurnStateDrawn, view.TurnState)
	assert.Equal(t, drawn.Card.ID, view.CurrentCardID)
}

func TestPauseAndResume(t *testing.T) {
	svc := newTestService(t, 3)
	sessionID := newPairedSession(t, svc, 9)

	// Idle暂停，恢复回Idle
	view, err := svc.TogglePause(sessionID, alice)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, view.Status)

	_, err = svc.DrawCard(sessionID, alice)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	view, err = svc.TogglePause(sessionID, bob) // 双方都可以恢复
	require.NoError(t, err)
	assert.Equal(t, StatusActive, view.Status)
	assert.Equal(t, TurnStateIdle, view.TurnState)

	// Drawn状态下不能暂停
	_, err = svc.DrawCard(sessionID, alice)
	require.NoError(t, err)
	_, err = svc.TogglePause(sessionID, alice)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	// Revealed暂停后恢复回Revealed
	_, err = svc.RevealCard(sessionID, alice)
	require.NoError(t, err)
	_, err = svc.TogglePause(sessionID, alice)
	require.NoError(t, err)
	view, err = svc.TogglePause(sessionID, alice)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, view.Status)
	assert.Equal(t, TurnStateRevealed, view.TurnState)

	// 局外人不能暂停
	_, err = svc.TogglePause(sessionID, carol)
	assert.ErrorIs(t, err, ErrNotYourTurn)
}

func TestEndGameIsIdempotent(t *testing.T) {
	svc := newTestService(t, 3)
	sessionID := newPairedSession(t, svc, 9)

	_, err := svc.DrawCard(sessionID, alice)
	require.NoError(t, err)

	view, err := svc.EndGame(sessionID, bob)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, view.Status)
	assert.Equal(t, TurnStateIdle, view.TurnState)
	assert.Empty(t, view.CurrentCardID)

	// 再次结束不报错，状态不变
	view, err = svc.EndGame(sessionID, alice)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, view.Status)

	// 终态后拒绝一切回合操作
	_, err = svc.DrawCard(sessionID, alice)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = svc.TogglePause(sessionID, alice)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestDeckExhaustion(t *testing.T) {
	svc := newTestService(t, 3)
	sessionID := newPairedSession(t, svc, 3)

	playOneTurn(t, svc, sessionID, alice)
	playOneTurn(t, svc, sessionID, bob)
	view := playOneTurn(t, svc, sessionID, alice)
	assert.Equal(t, 3, view.TotalCardsPlayed)

	_, err := svc.DrawCard(sessionID, bob)
	assert.ErrorIs(t, err, ErrDeckExhausted)

	// 耗尽不改变会话状态，结束与否由参与者决定
	got, err := svc.GetSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, TurnStateIdle, got.TurnState)
}

func TestSoloWarmupBeforePartnerJoins(t *testing.T) {
	svc := newTestService(t, 3)
	created, err := svc.CreateSession(alice, 9)
	require.NoError(t, err)
	sessionID := created.Session.SessionID

	// 伴侣未加入时回合不会被交给空位
	view := playOneTurn(t, svc, sessionID, alice)
	assert.Equal(t, alice, view.CurrentTurn)
	assert.Equal(t, 1, view.TotalCardsPlayed)
}

func TestSummary(t *testing.T) {
	svc := newTestService(t, 3)
	sessionID := newPairedSession(t, svc, 9)

	playOneTurn(t, svc, sessionID, alice)
	playOneTurn(t, svc, sessionID, bob)
	_, err := svc.DrawCard(sessionID, alice)
	require.NoError(t, err)
	_, err = svc.SkipCard(sessionID, alice)
	require.NoError(t, err)

	summary, err := svc.Summary(sessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalCardsPlayed)
	assert.Equal(t, 1, summary.TotalSkipped)
	assert.Equal(t, 9, summary.DeckSize)

	playedSum := 0
	for _, c := range card.Categories {
		playedSum += summary.PlayedByCategory[c]
	}
	assert.Equal(t, 2, playedSum)
}

func TestSessionNotFound(t *testing.T) {
	svc := newTestService(t, 3)

	_, err := svc.GetSession("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.DrawCard("missing", alice)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Summary("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
