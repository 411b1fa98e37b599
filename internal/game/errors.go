package game

import "errors"

// 回合协调器的错误分类。
// 校验类错误 (ErrNotYourTurn / ErrInvalidStateTransition / ErrSkipLimitExceeded)
// 是同步拒绝：不改变任何状态，调用方应当重新拉取会话后再试，引擎不自动重试。
// ErrDeckExhausted 对该次操作是终态，需要上报给用户层而不是静默重试。
var (
	// ErrNotYourTurn 表示非回合持有者尝试了变更操作
	ErrNotYourTurn = errors.New("当前回合不属于该参与者")

	// ErrInvalidStateTransition 表示操作与会话当前状态不符，
	// 例如桌上没有卡时提交完成
	ErrInvalidStateTransition = errors.New("非法的状态转换")

	// ErrDeckExhausted 表示牌堆中已无可抽的提示卡
	ErrDeckExhausted = errors.New("牌堆已耗尽")

	// ErrSkipLimitExceeded 表示参与者的跳过次数已用完
	ErrSkipLimitExceeded = errors.New("跳过次数已用完")

	// ErrSessionNotFound 表示会话不存在
	ErrSessionNotFound = errors.New("会话不存在")

	// ErrInviteInvalid 表示邀请令牌验证失败
	ErrInviteInvalid = errors.New("邀请令牌无效")

	// ErrAlreadyPaired 表示会话的伴侣位已被占用
	ErrAlreadyPaired = errors.New("会话已有两位参与者")
)
