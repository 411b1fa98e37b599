package deck

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/oursparks/couple-cards-backend/internal/card"
	"github.com/oursparks/couple-cards-backend/pkg/tree"
	"gorm.io/gorm"
)

// 类别配额：action/text/photo = 34/33/33
const (
	actionFraction = 0.34
	textFraction   = 0.33
	photoFraction  = 0.33
)

// ErrCatalogInsufficient 表示目录中的可用提示卡不足以构建请求大小的牌堆。
// 构建是原子的：返回此错误时不会留下半成品牌堆。
var ErrCatalogInsufficient = errors.New("目录中的可用提示卡不足")

// quotaFraction 返回指定类别的目标占比
func quotaFraction(c card.Category) float64 {
	switch c {
	case card.CategoryAction:
		return actionFraction
	case card.CategoryText:
		return textFraction
	default:
		return photoFraction
	}
}

// SplitQuota 按34/33/33把牌堆大小拆成每个类别的目标张数。
// 各类别先四舍五入，剩余的差额全部记到最大的类别(action)上，
// 保证三个数的和恰好等于deckSize。
func SplitQuota(deckSize int) map[card.Category]int {
	targets := make(map[card.Category]int, len(card.Categories))
	sum := 0
	for _, c := range card.Categories {
		n := int(math.Round(quotaFraction(c) * float64(deckSize)))
		targets[c] = n
		sum += n
	}
	targets[card.CategoryAction] += deckSize - sum
	return targets
}

// weightForUsage 根据提示卡的已使用次数计算“低使用优先”抽样权重。
// 使用次数越少权重越大，把磨损摊开到整个目录。
func weightForUsage(usage int) float64 {
	return 1.0 / (float64(usage) + 5.0)
}

// CreateDeck 为会话构建一副牌并原子地写入DeckEntry行。
// 流程：拆配额 -> 库存不足时向有富余的类别借额 -> 每个类别按权重无放回抽样
// -> 按比例交错排序 -> 单事务批量插入。
func CreateDeck(db *gorm.DB, sessionID string, deckSize int, rng *rand.Rand) error {
	if deckSize <= 0 {
		return fmt.Errorf("牌堆大小必须为正数: %d", deckSize)
	}

	// 1. 查询目录库存
	inventory, err := card.ActiveCardsByCategory(db)
	if err != nil {
		return err
	}
	totalActive := 0
	for _, c := range card.Categories {
		totalActive += len(inventory[c])
	}
	if totalActive < deckSize {
		return fmt.Errorf("%w: 需要 %d 张，目录仅有 %d 张", ErrCatalogInsufficient, deckSize, totalActive)
	}

	// 2. 拆配额并处理单类别缺口
	targets, err := balanceTargets(SplitQuota(deckSize), inventory)
	if err != nil {
		return err
	}

	// 3. 每个类别按权重无放回抽样
	selected := make(map[card.Category][]string, len(card.Categories))
	for _, c := range card.Categories {
		ids, err := sampleWithoutReplacement(inventory[c], targets[c], rng)
		if err != nil {
			return fmt.Errorf("类别 %s 抽样失败: %w", c, err)
		}
		selected[c] = ids
	}

	// 4. 交错排序，避免开局被单一类别的整块占据
	ordered := interleave(selected, targets, deckSize)

	// 5. 原子写入：要么整副牌入库，要么什么都不留
	entries := make([]DeckEntry, len(ordered))
	for i, id := range ordered {
		entries[i] = DeckEntry{
			SessionID: sessionID,
			CardID:    id,
			Position:  i,
		}
	}
	return db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&DeckEntry{}).Where("session_id = ?", sessionID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("会话 %s 已存在牌堆", sessionID)
		}
		return tx.CreateInBatches(entries, 100).Error
	})
}

// balanceTargets 校验每个类别的库存，缺口借给库存最富余的类别。
// 调用方已保证总库存足够，所以借额总能成功。
func balanceTargets(targets map[card.Category]int, inventory map[card.Category][]card.UsageCandidate) (map[card.Category]int, error) {
	balanced := make(map[card.Category]int, len(targets))
	deficit := 0
	for _, c := range card.Categories {
		available := len(inventory[c])
		if available < targets[c] {
			deficit += targets[c] - available
			balanced[c] = available
		} else {
			balanced[c] = targets[c]
		}
	}

	// 把缺口逐张分给当前富余最多的类别
	for deficit > 0 {
		best := card.Category("")
		bestSurplus := 0
		for _, c := range card.Categories {
			surplus := len(inventory[c]) - balanced[c]
			if surplus > bestSurplus {
				best = c
				bestSurplus = surplus
			}
		}
		if best == "" {
			// 不应发生：总库存已校验过
			return nil, ErrCatalogInsufficient
		}
		balanced[best]++
		deficit--
	}
	return balanced, nil
}

// sampleWithoutReplacement 用线段树完成加权无放回抽样。
// 权重取 1/(usage+5)，使用次数少的卡更容易被发入牌堆。
func sampleWithoutReplacement(candidates []card.UsageCandidate, count int, rng *rand.Rand) ([]string, error) {
	if count == 0 {
		return nil, nil
	}
	if count > len(candidates) {
		return nil, fmt.Errorf("候选数量 %d 少于请求数量 %d", len(candidates), count)
	}

	weights := make([]float64, len(candidates))
	for i, c := range candidates {
		weights[i] = weightForUsage(c.UsageCount)
	}
	segTree, err := tree.NewSegmentTree(len(candidates))
	if err != nil {
		return nil, err
	}
	if err := segTree.Rebuild(weights); err != nil {
		return nil, err
	}

	ids := make([]string, 0, count)
	for len(ids) < count {
		r := rng.Float64() * segTree.TotalSum()
		index, err := segTree.Find(r)
		if err != nil {
			return nil, err
		}
		if _, err := segTree.Take(index); err != nil {
			return nil, err
		}
		ids = append(ids, candidates[index].CardID)
	}
	return ids, nil
}

// interleave 按配额比例把各类别的抽样结果交错成一个序列。
// 每一步给每个类别累加它的目标占比作为“信用”，
// 取信用最高且仍有剩余的类别出一张牌。平局按固定类别顺序裁决。
func interleave(selected map[card.Category][]string, targets map[card.Category]int, deckSize int) []string {
	credits := make(map[card.Category]float64, len(card.Categories))
	taken := make(map[card.Category]int, len(card.Categories))
	ordered := make([]string, 0, deckSize)

	for len(ordered) < deckSize {
		for _, c := range card.Categories {
			credits[c] += float64(targets[c]) / float64(deckSize)
		}
		best := card.Category("")
		for _, c := range card.Categories {
			if taken[c] >= len(selected[c]) {
				continue
			}
			if best == "" || credits[c] > credits[best] {
				best = c
			}
		}
		if best == "" {
			break
		}
		ordered = append(ordered, selected[best][taken[best]])
		taken[best]++
		credits[best] -= 1.0
	}
	return ordered
}
