package game

import (
	"math/rand"
	"time"

	"github.com/oursparks/couple-cards-backend/internal/card"
)

// --- 算法常量 ---

const (
	// 类别配额：与牌堆构建器的34/33/33拆分保持一致
	actionTargetFraction = 0.34
	textTargetFraction   = 0.33
	photoTargetFraction  = 0.33

	// minCategoryWeight 是配额寻优权重的下限。
	// 即使某个类别已经超出配额，也保留一点被抽中的概率。
	minCategoryWeight = 0.1

	// maxCategoryStreak 是同一类别允许的最大连抽次数。
	// 最近两次同类别时，第三次会把该类别整体从候选池中剔除。
	maxCategoryStreak = 2
)

// PlayRecord 是一条已解析类别的游玩记录。
// 会话的原始id历史在每次选卡前被解析成这种带类别的形式，
// 避免选择算法内部反复做线性查表。
type PlayRecord struct {
	CardID   string
	Category card.Category
}

// Selector 实现带反连抽约束的配额寻优加权随机选卡。
// 随机源可注入，测试中传入固定种子即可复现选卡序列。
type Selector struct {
	rng *rand.Rand
}

// NewSelector 创建一个使用给定随机源的选择器。
// rng为nil时使用以当前时间为种子的默认随机源。
func NewSelector(rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{rng: rng}
}

// targetFraction 返回指定类别的目标占比
func targetFraction(c card.Category) float64 {
	switch c {
	case card.CategoryAction:
		return actionTargetFraction
	case card.CategoryText:
		return textTargetFraction
	default:
		return photoTargetFraction
	}
}

// SelectNextCard 根据游玩历史从候选池中选出下一张提示卡。
// 返回nil当且仅当候选池为空，调用方将其解释为“牌堆已耗尽”。
//
// 算法分四步：
//  1. 反连抽过滤：最近两次同类别时剔除该类别的所有候选卡；
//     如果剔除会清空候选池，则本次放弃该规则（紧急回退，绝不死锁）。
//  2. 配额寻优权重：每个类别 weight = max(0.1, 目标占比 - 当前占比)，
//     欠账的类别被加权，然后把三个权重归一化。
//  3. 类别抽取：一次均匀随机数落在累积概率区间上，
//     区间按 action、text、photo 的固定顺序排列。
//  4. 卡片抽取：对选中类别的候选卡做Fisher-Yates洗牌取第一张；
//     该类别无候选卡时，回退为对整个候选池均匀洗牌。
func (s *Selector) SelectNextCard(history []PlayRecord, pool []card.Candidate) *card.Candidate {
	if len(pool) == 0 {
		return nil
	}

	// 1. 反连抽过滤
	eligible := pool
	if streaked, streakCategory := hasCategoryStreak(history); streaked {
		filtered := make([]card.Candidate, 0, len(pool))
		for _, c := range pool {
			if c.Category != streakCategory {
				filtered = append(filtered, c)
			}
		}
		// 紧急回退：过滤后为空则忽略规则，本次允许第三次连抽
		if len(filtered) > 0 {
			eligible = filtered
		}
	}

	// 按类别分组，顺便检查候选池是否只剩单一类别
	byCategory := make(map[card.Category][]card.Candidate, len(card.Categories))
	for _, c := range eligible {
		byCategory[c.Category] = append(byCategory[c.Category], c)
	}
	if len(byCategory) == 1 {
		// 只剩一个类别时完全绕过加权
		for _, cards := range byCategory {
			return s.shuffleAndTake(cards)
		}
	}

	// 2. 配额寻优权重
	weights := categoryWeights(history)

	// 3. 类别抽取：单次均匀随机数对累积区间
	chosen := s.drawCategory(weights)

	// 4. 卡片抽取
	if cards := byCategory[chosen]; len(cards) > 0 {
		return s.shuffleAndTake(cards)
	}
	return s.shuffleAndTake(eligible)
}

// hasCategoryStreak 判断最近两条记录是否是同一类别
func hasCategoryStreak(history []PlayRecord) (bool, card.Category) {
	n := len(history)
	if n < maxCategoryStreak {
		return false, ""
	}
	last := history[n-1].Category
	for i := 2; i <= maxCategoryStreak; i++ {
		if history[n-i].Category != last {
			return false, ""
		}
	}
	return true, last
}

// categoryWeights 计算三个类别的归一化抽取权重。
// 历史为空（首抽）时使用相等的默认权重。
func categoryWeights(history []PlayRecord) map[card.Category]float64 {
	weights := make(map[card.Category]float64, len(card.Categories))

	if len(history) == 0 {
		for _, c := range card.Categories {
			weights[c] = 1.0 / float64(len(card.Categories))
		}
		return weights
	}

	counts := make(map[card.Category]int, len(card.Categories))
	for _, record := range history {
		counts[record.Category]++
	}

	total := 0.0
	for _, c := range card.Categories {
		currentFraction := float64(counts[c]) / float64(len(history))
		w := targetFraction(c) - currentFraction
		if w < minCategoryWeight {
			w = minCategoryWeight
		}
		weights[c] = w
		total += w
	}
	for _, c := range card.Categories {
		weights[c] /= total
	}
	return weights
}

// drawCategory 用一次均匀随机数在累积概率区间上抽取类别。
// 区间按固定的类别顺序排列，保证平局裁决是确定的。
func (s *Selector) drawCategory(weights map[card.Category]float64) card.Category {
	r := s.rng.Float64()
	cumulative := 0.0
	for _, c := range card.Categories {
		cumulative += weights[c]
		if r < cumulative {
			return c
		}
	}
	// 浮点累加误差落在区间外时归入最后一个类别
	return card.Categories[len(card.Categories)-1]
}

// shuffleAndTake 对候选卡的副本做Fisher-Yates洗牌并返回第一张
func (s *Selector) shuffleAndTake(cards []card.Candidate) *card.Candidate {
	shuffled := make([]card.Candidate, len(cards))
	copy(shuffled, cards)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return &shuffled[0]
}
