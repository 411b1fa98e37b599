package game

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oursparks/couple-cards-backend/internal/card"
	"github.com/oursparks/couple-cards-backend/internal/deck"
	"github.com/oursparks/couple-cards-backend/internal/platform/database"
	"github.com/oursparks/couple-cards-backend/pkg/gamelog"
	"github.com/oursparks/couple-cards-backend/pkg/token"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service 是回合协调器：会话级状态机的唯一写入口。
// 所有依赖都通过构造函数注入，测试中可以用内存实现替换
// 发布器、跳过额度和随机源。
type Service struct {
	db              *gorm.DB
	publisher       Publisher
	skips           SkipAllowance
	selector        *Selector
	log             gamelog.Logger
	defaultDeckSize int

	// rand.Rand不是并发安全的，抽样路径用这把锁串行化
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService 创建回合协调器。rng为nil时使用时间种子。
func NewService(db *gorm.DB, publisher Publisher, skips SkipAllowance, log gamelog.Logger, defaultDeckSize int, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		db:              db,
		publisher:       publisher,
		skips:           skips,
		selector:        NewSelector(rng),
		log:             log,
		defaultDeckSize: defaultDeckSize,
		rng:             rng,
	}
}

// --- DTO ---

// CreatedSessionDTO 是创建会话接口的响应数据
type CreatedSessionDTO struct {
	Session   SessionView         `json:"session"`
	Invite    token.InvitePayload `json:"invite"`
	Signature string              `json:"signature"`
}

// DrawResultDTO 是抽卡接口的响应数据
type DrawResultDTO struct {
	Session SessionView  `json:"session"`
	Card    card.CardDTO `json:"card"`
}

// SummaryDTO 是会话回顾接口的响应数据
type SummaryDTO struct {
	SessionID        string                `json:"session_id"`
	Status           Status                `json:"status"`
	TotalCardsPlayed int                   `json:"total_cards_played"`
	TotalSkipped     int                   `json:"total_skipped"`
	DeckSize         int                   `json:"deck_size"`
	PlayedByCategory map[card.Category]int `json:"played_by_category"`
}

// --- 会话创建与加入 ---

// CreateSession 创建一局新会话并为它构建牌堆。
// 伴侣位先以空占位，由受邀方持邀请令牌加入。
// 牌堆构建失败时整个创建回滚，不会留下没有牌堆的会话。
func (s *Service) CreateSession(participantID string, deckSize int) (*CreatedSessionDTO, error) {
	if participantID == "" {
		return nil, fmt.Errorf("参与者id不能为空")
	}
	if deckSize <= 0 {
		deckSize = s.defaultDeckSize
	}

	sessionUUID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成会话id: %w", err)
	}
	session := GameSession{
		SessionID:    sessionUUID.String(),
		ParticipantA: participantID,
		ParticipantB: "",
		CurrentTurn:  participantID,
		Status:       StatusActive,
		TurnState:    TurnStateIdle,
		PlayedCards:  CardIDList{},
		SkippedCards: CardIDList{},
		DeckSize:     deckSize,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&session).Error; err != nil {
			return fmt.Errorf("无法创建会话: %w", err)
		}
		s.rngMu.Lock()
		defer s.rngMu.Unlock()
		return deck.CreateDeck(tx, session.SessionID, deckSize, s.rng)
	})
	if err != nil {
		return nil, err
	}

	payload := token.InvitePayload{
		SessionID: session.SessionID,
		InviterID: participantID,
	}
	signature, err := token.GenerateInviteSignature(payload)
	if err != nil {
		return nil, fmt.Errorf("无法生成邀请签名: %w", err)
	}

	s.log.Infof("会话 %s 创建成功，牌堆大小 %d", session.SessionID, deckSize)
	s.publish(Event{Kind: EventSessionUpdated, Session: session.View()})

	return &CreatedSessionDTO{
		Session:   session.View(),
		Invite:    payload,
		Signature: signature,
	}, nil
}

// JoinSession 验证邀请令牌并把受邀方填入伴侣位。
func (s *Service) JoinSession(participantID string, payload token.InvitePayload, signature string) (*SessionView, error) {
	if !token.ValidateInviteSignature(payload, signature) {
		return nil, ErrInviteInvalid
	}
	if participantID == "" || participantID == payload.InviterID {
		return nil, ErrInviteInvalid
	}

	var view SessionView
	err := s.db.Transaction(func(tx *gorm.DB) error {
		session, err := fetchSessionForUpdate(tx, payload.SessionID)
		if err != nil {
			return err
		}
		if session.ParticipantB == participantID {
			// 重复加入是幂等的
			view = session.View()
			return nil
		}
		if session.ParticipantB != "" {
			return ErrAlreadyPaired
		}

		result := tx.Model(&GameSession{}).
			Where("session_id = ? AND participant_b = ?", session.SessionID, "").
			Update("participant_b", participantID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyPaired
		}
		session.ParticipantB = participantID
		view = session.View()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("参与者 %s 加入了会话 %s", participantID, view.SessionID)
	s.publish(Event{Kind: EventSessionUpdated, Session: view})
	return &view, nil
}

// GetSession 返回会话的当前快照
func (s *Service) GetSession(sessionID string) (*SessionView, error) {
	session, err := fetchSession(s.db, sessionID)
	if err != nil {
		return nil, err
	}
	view := session.View()
	return &view, nil
}

// --- 回合状态机 ---

// DrawCard 为回合持有者抽下一张提示卡: Idle -> Drawn。
// 仅当请求者持有回合且状态为Idle时有效；
// 牌堆耗尽返回ErrDeckExhausted，会话状态不变。
func (s *Service) DrawCard(sessionID, requesterID string) (*DrawResultDTO, error) {
	var result DrawResultDTO
	err := s.db.Transaction(func(tx *gorm.DB) error {
		session, err := fetchSessionForUpdate(tx, sessionID)
		if err != nil {
			return err
		}
		if err := guardTurnMutation(session, requesterID, TurnStateIdle); err != nil {
			return err
		}

		// 1. 候选池：牌堆中既未完成也未被跳过的卡
		pool, err := deck.RemainingCandidates(tx, sessionID)
		if err != nil {
			return err
		}
		if len(pool) == 0 {
			return ErrDeckExhausted
		}

		// 2. 把原始id历史解析成带类别的记录，一次选卡只解析一次
		history := s.resolveHistory(session.PlayedCards)

		// 3. 选卡
		s.rngMu.Lock()
		picked := s.selector.SelectNextCard(history, pool)
		s.rngMu.Unlock()
		if picked == nil {
			return ErrDeckExhausted
		}

		// 4. 条件写入：check-and-set是防止双方同时抽卡的正确性边界
		updates := map[string]interface{}{
			"current_card_id": picked.CardID,
			"turn_state":      TurnStateDrawn,
		}
		if err := s.conditionalUpdate(tx, session, requesterID, TurnStateIdle, updates); err != nil {
			return err
		}

		// 5. 累加目录中的使用次数（软性热度信号）
		if err := card.IncrementUsage(tx, picked.CardID); err != nil {
			return err
		}

		session.CurrentCardID = picked.CardID
		session.TurnState = TurnStateDrawn
		result.Session = session.View()

		info, ok := card.GetCardInfoByID(picked.CardID)
		if !ok {
			return fmt.Errorf("选中的提示卡不在目录中: %s", picked.CardID)
		}
		result.Card = card.CardDTO{
			ID:         picked.CardID,
			Category:   info.Category,
			Prompt:     info.Prompt,
			Difficulty: info.Difficulty,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(Event{Kind: EventSessionUpdated, Session: result.Session})
	return &result, nil
}

// RevealCard 把桌上的卡展示给回合持有者: Drawn -> Revealed。
// 除展示标志外不改变任何数据。
func (s *Service) RevealCard(sessionID, requesterID string) (*SessionView, error) {
	view, err := s.transition(sessionID, requesterID, []TurnState{TurnStateDrawn}, func(_ *gorm.DB, session *GameSession) (map[string]interface{}, error) {
		session.TurnState = TurnStateRevealed
		return map[string]interface{}{"turn_state": TurnStateRevealed}, nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(Event{Kind: EventSessionUpdated, Session: *view})
	return view, nil
}

// CompleteTurn 完成桌上的卡: Revealed -> Idle，回合交给另一方。
// 回应内容本身由上层的回忆相册模块负责存储，这里只把牌堆行标记为已完成。
func (s *Service) CompleteTurn(sessionID, requesterID string) (*SessionView, error) {
	now := time.Now().UTC()
	view, err := s.transition(sessionID, requesterID, []TurnState{TurnStateRevealed}, func(tx *gorm.DB, session *GameSession) (map[string]interface{}, error) {
		cardID := session.CurrentCardID
		if cardID == "" {
			return nil, ErrInvalidStateTransition
		}
		if err := deck.MarkPlayed(tx, session.SessionID, cardID, now); err != nil {
			return nil, err
		}

		nextTurn := session.OtherParticipant(requesterID)
		newPlayed := append(append(CardIDList{}, session.PlayedCards...), cardID)

		session.CurrentCardID = ""
		session.TurnState = TurnStateIdle
		session.CurrentTurn = nextTurn
		session.TotalCardsPlayed++
		session.PlayedCards = newPlayed
		return map[string]interface{}{
			"current_card_id":    "",
			"turn_state":         TurnStateIdle,
			"current_turn":       nextTurn,
			"total_cards_played": session.TotalCardsPlayed,
			"played_cards":       newPlayed,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(Event{Kind: EventDeckUpdated, Session: *view})
	s.publish(Event{Kind: EventSessionUpdated, Session: *view})
	return view, nil
}

// SkipCard 跳过桌上的卡: Drawn/Revealed -> Idle，回合交给另一方。
// 跳过不计入TotalCardsPlayed，且受每位参与者的跳过额度约束。
func (s *Service) SkipCard(sessionID, requesterID string) (*SessionView, error) {
	// 额度先扣后写库；写库失败时归还额度作为补偿
	if err := s.skips.Consume(sessionID, requesterID); err != nil {
		return nil, err
	}

	view, err := s.transition(sessionID, requesterID, []TurnState{TurnStateDrawn, TurnStateRevealed}, func(tx *gorm.DB, session *GameSession) (map[string]interface{}, error) {
		cardID := session.CurrentCardID
		if cardID == "" {
			return nil, ErrInvalidStateTransition
		}
		if err := deck.MarkSkipped(tx, session.SessionID, cardID); err != nil {
			return nil, err
		}

		nextTurn := session.OtherParticipant(requesterID)
		newSkipped := append(append(CardIDList{}, session.SkippedCards...), cardID)

		session.CurrentCardID = ""
		session.TurnState = TurnStateIdle
		session.CurrentTurn = nextTurn
		session.SkippedCards = newSkipped
		return map[string]interface{}{
			"current_card_id": "",
			"turn_state":      TurnStateIdle,
			"current_turn":    nextTurn,
			"skipped_cards":   newSkipped,
		}, nil
	})
	if err != nil {
		if refundErr := s.skips.Refund(sessionID, requesterID); refundErr != nil {
			s.log.Warnf("跳过额度补偿失败 (会话 %s, 参与者 %s): %v", sessionID, requesterID, refundErr)
		}
		return nil, err
	}

	s.publish(Event{Kind: EventDeckUpdated, Session: *view})
	s.publish(Event{Kind: EventSessionUpdated, Session: *view})
	return view, nil
}

// TogglePause 在active和paused之间切换会话。
// 只能从Idle/Revealed进入暂停，恢复时回到暂停前的回合状态。
// 双方参与者都可以操作。
func (s *Service) TogglePause(sessionID, requesterID string) (*SessionView, error) {
	var view SessionView
	err := s.db.Transaction(func(tx *gorm.DB) error {
		session, err := fetchSessionForUpdate(tx, sessionID)
		if err != nil {
			return err
		}
		if err := guardParticipant(session, requesterID); err != nil {
			return err
		}

		switch session.Status {
		case StatusActive:
			if session.TurnState != TurnStateIdle && session.TurnState != TurnStateRevealed {
				return ErrInvalidStateTransition
			}
			result := tx.Model(&GameSession{}).
				Where("session_id = ? AND status = ?", sessionID, StatusActive).
				Updates(map[string]interface{}{
					"status":      StatusPaused,
					"paused_from": session.TurnState,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrInvalidStateTransition
			}
			session.PausedFrom = session.TurnState
			session.Status = StatusPaused
		case StatusPaused:
			result := tx.Model(&GameSession{}).
				Where("session_id = ? AND status = ?", sessionID, StatusPaused).
				Updates(map[string]interface{}{
					"status":     StatusActive,
					"turn_state": session.PausedFrom,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrInvalidStateTransition
			}
			session.TurnState = session.PausedFrom
			session.Status = StatusActive
		default:
			return ErrInvalidStateTransition
		}
		view = session.View()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(Event{Kind: EventSessionUpdated, Session: view})
	return &view, nil
}

// EndGame 结束会话，从任何状态可达，幂等。
func (s *Service) EndGame(sessionID, requesterID string) (*SessionView, error) {
	var view SessionView
	var alreadyEnded bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		session, err := fetchSessionForUpdate(tx, sessionID)
		if err != nil {
			return err
		}
		if err := guardParticipant(session, requesterID); err != nil {
			return err
		}
		if session.Status == StatusCompleted {
			alreadyEnded = true
			view = session.View()
			return nil
		}

		result := tx.Model(&GameSession{}).
			Where("session_id = ? AND status != ?", sessionID, StatusCompleted).
			Updates(map[string]interface{}{
				"status":          StatusCompleted,
				"turn_state":      TurnStateIdle,
				"current_card_id": "",
			})
		if result.Error != nil {
			return result.Error
		}
		session.Status = StatusCompleted
		session.TurnState = TurnStateIdle
		session.CurrentCardID = ""
		view = session.View()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !alreadyEnded {
		s.log.Infof("会话 %s 已结束", sessionID)
		s.publish(Event{Kind: EventSessionUpdated, Session: view})
	}
	return &view, nil
}

// Summary 返回会话的游玩回顾
func (s *Service) Summary(sessionID string) (*SummaryDTO, error) {
	session, err := fetchSession(s.db, sessionID)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[card.Category]int, len(card.Categories))
	for _, c := range card.Categories {
		byCategory[c] = 0
	}
	for _, cardID := range session.PlayedCards {
		if category, ok := card.CategoryOf(cardID); ok {
			byCategory[category]++
		}
	}

	return &SummaryDTO{
		SessionID:        session.SessionID,
		Status:           session.Status,
		TotalCardsPlayed: session.TotalCardsPlayed,
		TotalSkipped:     len(session.SkippedCards),
		DeckSize:         session.DeckSize,
		PlayedByCategory: byCategory,
	}, nil
}

// --- 内部辅助 ---

// transition 封装了“取行加锁 -> 统一守卫 -> 条件写入”的回合转换骨架。
// mutate 返回要写入的列，并同步修改内存中的session以便构造响应快照。
func (s *Service) transition(sessionID, requesterID string, allowed []TurnState, mutate func(tx *gorm.DB, session *GameSession) (map[string]interface{}, error)) (*SessionView, error) {
	var view SessionView
	err := s.db.Transaction(func(tx *gorm.DB) error {
		session, err := fetchSessionForUpdate(tx, sessionID)
		if err != nil {
			return err
		}
		if err := guardTurnMutation(session, requesterID, allowed...); err != nil {
			return err
		}

		priorState := session.TurnState
		updates, err := mutate(tx, session)
		if err != nil {
			return err
		}

		if err := s.conditionalUpdate(tx, session, requesterID, priorState, updates); err != nil {
			return err
		}
		view = session.View()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// conditionalUpdate 执行以(会话id, 回合持有者, 回合状态)为条件的写入。
// 影响行数为0说明另一端在我们读取之后抢先提交了转换，
// 此时重新读取一次行，把失败归类成精确的校验错误返回给调用方。
func (s *Service) conditionalUpdate(tx *gorm.DB, session *GameSession, requesterID string, priorState TurnState, updates map[string]interface{}) error {
	result := tx.Model(&GameSession{}).
		Where("session_id = ? AND current_turn = ? AND turn_state = ? AND status = ?",
			session.SessionID, requesterID, priorState, StatusActive).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.classifyStaleWrite(tx, session.SessionID, requesterID)
	}
	return nil
}

// classifyStaleWrite 在条件写入未命中后重读会话行，判定拒绝原因
func (s *Service) classifyStaleWrite(tx *gorm.DB, sessionID, requesterID string) error {
	current, err := fetchSession(tx, sessionID)
	if err != nil {
		return err
	}
	if current.CurrentTurn != requesterID {
		return ErrNotYourTurn
	}
	return ErrInvalidStateTransition
}

// resolveHistory 把会话的原始id历史解析为带类别的游玩记录
func (s *Service) resolveHistory(playedCards CardIDList) []PlayRecord {
	history := make([]PlayRecord, 0, len(playedCards))
	for _, cardID := range playedCards {
		category, ok := card.CategoryOf(cardID)
		if !ok {
			s.log.Warnf("游玩历史中出现目录外的提示卡id: %s", cardID)
			continue
		}
		history = append(history, PlayRecord{CardID: cardID, Category: category})
	}
	return history
}

// publish 发布事件，失败只记日志。
// 推送通道是at-least-once尽力投递，丢失由同步器的轮询兜底。
func (s *Service) publish(event Event) {
	if err := s.publisher.PublishSessionEvent(database.Ctx, event); err != nil {
		s.log.Warnf("发布会话事件失败 (会话 %s): %v", event.Session.SessionID, err)
	}
}

// fetchSession 按业务id读取会话行
func fetchSession(db *gorm.DB, sessionID string) (*GameSession, error) {
	var session GameSession
	err := db.Where("session_id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("无法读取会话 %s: %w", sessionID, err)
	}
	return &session, nil
}

// fetchSessionForUpdate 在事务中按业务id读取会话行并加行锁
func fetchSessionForUpdate(tx *gorm.DB, sessionID string) (*GameSession, error) {
	var session GameSession
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("session_id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("无法读取会话 %s: %w", sessionID, err)
	}
	return &session, nil
}
