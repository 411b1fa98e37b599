package game

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// Status 定义了会话的生命周期状态
type Status string

const (
	// StatusActive 表示会话正在进行
	StatusActive Status = "active"
	// StatusPaused 表示会话被参与者暂停
	StatusPaused Status = "paused"
	// StatusCompleted 表示会话已结束，是终态
	StatusCompleted Status = "completed"
)

// TurnState 定义了回合状态机的状态
type TurnState string

const (
	// TurnStateIdle 表示桌上无卡，等待回合持有者抽卡
	TurnStateIdle TurnState = "idle"
	// TurnStateDrawn 表示已选出一张卡并挂到会话上，但尚未展示
	TurnStateDrawn TurnState = "drawn"
	// TurnStateRevealed 表示卡已展示给回合持有者
	TurnStateRevealed TurnState = "revealed"
)

// CardIDList 是以JSON文本形式落库的提示卡id有序列表
type CardIDList []string

// Value 实现 driver.Valuer，把列表序列化为JSON文本
func (l CardIDList) Value() (driver.Value, error) {
	if l == nil {
		l = CardIDList{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner，从JSON文本反序列化列表
func (l *CardIDList) Scan(value interface{}) error {
	if value == nil {
		*l = CardIDList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("无法把 %T 解析为CardIDList", value)
	}
	if len(data) == 0 {
		*l = CardIDList{}
		return nil
	}
	return json.Unmarshal(data, l)
}

// GameSession 是一对参与者的一局游戏，每局各占一行。
// 会话行只通过回合协调器的带条件写入被修改，
// (CurrentTurn, TurnState) 这对字段在每次提交的转换后都会变化，
// 因此它们同时充当乐观并发控制的标记。
type GameSession struct {
	gorm.Model

	// SessionID 是会话的业务主键 (UUIDv7)
	SessionID string `gorm:"uniqueIndex;not null"`

	// ParticipantA 是创建会话的参与者
	ParticipantA string `gorm:"not null"`

	// ParticipantB 是受邀的伴侣。占位时为空字符串，伴侣加入后填充。
	ParticipantB string

	// CurrentTurn 等于两位参与者之一，表示当前允许行动的一方
	CurrentTurn string `gorm:"not null"`

	// Status 是会话生命周期状态
	Status Status `gorm:"not null"`

	// TurnState 是回合状态机的当前状态
	TurnState TurnState `gorm:"not null"`

	// PausedFrom 记录暂停前的回合状态，恢复时回到该状态
	PausedFrom TurnState

	// CurrentCardID 是桌上那张卡的id，桌上无卡时为空字符串
	CurrentCardID string

	// TotalCardsPlayed 是已完成的提示卡总数，跳过不计入
	TotalCardsPlayed int

	// PlayedCards 是已完成提示卡的有序列表，是选择器使用的权威游玩历史
	PlayedCards CardIDList `gorm:"type:text"`

	// SkippedCards 是被跳过提示卡的列表
	SkippedCards CardIDList `gorm:"type:text"`

	// DeckSize 是本局牌堆的大小
	DeckSize int
}

// SessionView 是会话行的只读快照，API响应、推送事件和同步器共用。
// 消费方必须把它当作last-write-wins的快照，而不是增量。
type SessionView struct {
	SessionID        string    `json:"session_id"`
	ParticipantA     string    `json:"participant_a"`
	ParticipantB     string    `json:"participant_b"`
	CurrentTurn      string    `json:"current_turn"`
	Status           Status    `json:"status"`
	TurnState        TurnState `json:"turn_state"`
	CurrentCardID    string    `json:"current_card_id,omitempty"`
	TotalCardsPlayed int       `json:"total_cards_played"`
	PlayedCards      []string  `json:"played_cards"`
	SkippedCards     []string  `json:"skipped_cards"`
	DeckSize         int       `json:"deck_size"`
}

// View 从会话行构造快照
func (s *GameSession) View() SessionView {
	return SessionView{
		SessionID:        s.SessionID,
		ParticipantA:     s.ParticipantA,
		ParticipantB:     s.ParticipantB,
		CurrentTurn:      s.CurrentTurn,
		Status:           s.Status,
		TurnState:        s.TurnState,
		CurrentCardID:    s.CurrentCardID,
		TotalCardsPlayed: s.TotalCardsPlayed,
		PlayedCards:      append([]string{}, s.PlayedCards...),
		SkippedCards:     append([]string{}, s.SkippedCards...),
		DeckSize:         s.DeckSize,
	}
}

// OtherParticipant 返回相对于给定参与者的另一方。
// 伴侣尚未加入（占位为空）时返回给定参与者自己，
// 使单人热身模式下回合不会被交给空位。
func (s *GameSession) OtherParticipant(participantID string) string {
	if participantID == s.ParticipantA && s.ParticipantB != "" {
		return s.ParticipantB
	}
	if participantID == s.ParticipantB {
		return s.ParticipantA
	}
	return participantID
}

// HasParticipant 判断给定id是否是会话的参与者之一
func (s *GameSession) HasParticipant(participantID string) bool {
	return participantID != "" && (participantID == s.ParticipantA || participantID == s.ParticipantB)
}
