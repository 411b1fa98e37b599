package game

// guardTurnMutation 是所有回合变更操作共用的前置校验。
// 它把(期望的会话状态, 期望的回合状态, 期望的回合持有者)collapse成
// 一处显式的前置条件检查，代替散落在各调用点的临时判断。
func guardTurnMutation(s *GameSession, requesterID string, allowed ...TurnState) error {
	if s.Status != StatusActive {
		return ErrInvalidStateTransition
	}
	if requesterID != s.CurrentTurn {
		return ErrNotYourTurn
	}
	for _, state := range allowed {
		if s.TurnState == state {
			return nil
		}
	}
	return ErrInvalidStateTransition
}

// guardParticipant 校验请求者是会话的参与者之一。
// 暂停/结束这类管理操作对双方都开放，但不对外人开放。
func guardParticipant(s *GameSession, requesterID string) error {
	if !s.HasParticipant(requesterID) {
		return ErrNotYourTurn
	}
	return nil
}
