package game

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/oursparks/couple-cards-backend/internal/card"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePool(perCategory int) []card.Candidate {
	pool := make([]card.Candidate, 0, perCategory*len(card.Categories))
	for _, c := range card.Categories {
		for i := 0; i < perCategory; i++ {
			pool = append(pool, card.Candidate{
				CardID:   fmt.Sprintf("%s-%03d", c, i),
				Category: c,
			})
		}
	}
	return pool
}

func historyOf(categories ...card.Category) []PlayRecord {
	history := make([]PlayRecord, len(categories))
	for i, c := range categories {
		history[i] = PlayRecord{CardID: fmt.Sprintf("h-%d", i), Category: c}
	}
	return history
}

func TestSelectNextCardEmptyPool(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(1)))
	assert.Nil(t, s.SelectNextCard(nil, nil))
	assert.Nil(t, s.SelectNextCard(historyOf(card.CategoryAction), []card.Candidate{}))
}

func TestSelectNextCardEmptyHistory(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(1)))
	picked := s.SelectNextCard(nil, makePool(5))
	require.NotNil(t, picked)
	assert.True(t, picked.Category.Valid())
}

func TestAntiStreakExcludesThirdConsecutive(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(99)))
	history := historyOf(card.CategoryAction, card.CategoryAction)
	pool := makePool(5)

	// 最近两张都是action，第三张绝不能再是action
	for i := 0; i < 500; i++ {
		picked := s.SelectNextCard(history, pool)
		require.NotNil(t, picked)
		assert.NotEqual(t, card.CategoryAction, picked.Category)
	}
}

func TestAntiStreakOnlyTriggersOnTwoInARow(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(3)))
	history := historyOf(card.CategoryAction, card.CategoryText)
	pool := makePool(5)

	// 没有连抽时任何类别都可以出现
	seen := make(map[card.Category]bool)
	for i := 0; i < 500; i++ {
		picked := s.SelectNextCard(history, pool)
		require.NotNil(t, picked)
		seen[picked.Category] = true
	}
	for _, c := range card.Categories {
		assert.True(t, seen[c], "类别 %s 从未被选中", c)
	}
}

func TestAntiStreakEmergencyFallback(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(5)))
	history := historyOf(card.CategoryAction, card.CategoryAction)

	// 候选池只剩action：剔除会清空候选池，规则被放弃
	pool := []card.Candidate{
		{CardID: "action-001", Category: card.CategoryAction},
		{CardID: "action-002", Category: card.CategoryAction},
	}
	picked := s.SelectNextCard(history, pool)
	require.NotNil(t, picked)
	assert.Equal(t, card.CategoryAction, picked.Category)
}

func TestSingleCategoryPoolBypassesWeights(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(8)))
	pool := []card.Candidate{
		{CardID: "text-001", Category: card.CategoryText},
		{CardID: "text-002", Category: card.CategoryText},
	}
	picked := s.SelectNextCard(historyOf(card.CategoryPhoto), pool)
	require.NotNil(t, picked)
	assert.Equal(t, card.CategoryText, picked.Category)
}

func TestQuotaSeekingFavorsUnderRepresented(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(11)))
	// 历史严重偏向action和text，photo一张未出
	history := historyOf(
		card.CategoryAction, card.CategoryText,
		card.CategoryAction, card.CategoryText,
		card.CategoryAction, card.CategoryText,
	)
	pool := makePool(10)

	photoCount := 0
	const trials = 1000
	for i := 0; i < trials; i++ {
		picked := s.SelectNextCard(history, pool)
		require.NotNil(t, picked)
		if picked.Category == card.CategoryPhoto {
			photoCount++
		}
	}
	// photo的欠账权重0.33对其余两个类别各0.1，理论占比约62%
	assert.Greater(t, float64(photoCount)/trials, 0.5)
}

func TestCategoryWeightsNormalized(t *testing.T) {
	weights := categoryWeights(historyOf(card.CategoryAction, card.CategoryAction))
	sum := 0.0
	for _, c := range card.Categories {
		assert.Greater(t, weights[c], 0.0)
		sum += weights[c]
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	// 空历史时三个类别等权
	weights = categoryWeights(nil)
	for _, c := range card.Categories {
		assert.InDelta(t, 1.0/3.0, weights[c], 1e-9)
	}
}

func TestHasCategoryStreak(t *testing.T) {
	streaked, _ := hasCategoryStreak(nil)
	assert.False(t, streaked)

	streaked, _ = hasCategoryStreak(historyOf(card.CategoryAction))
	assert.False(t, streaked)

	streaked, category := hasCategoryStreak(historyOf(card.CategoryText, card.CategoryAction, card.CategoryAction))
	assert.True(t, streaked)
	assert.Equal(t, card.CategoryAction, category)

	streaked, _ = hasCategoryStreak(historyOf(card.CategoryAction, card.CategoryText))
	assert.False(t, streaked)
}

func TestSelectionDeterministicWithFixedSeed(t *testing.T) {
	history := historyOf(card.CategoryAction)
	pool := makePool(5)

	first := NewSelector(rand.New(rand.NewSource(123)))
	second := NewSelector(rand.New(rand.NewSource(123)))
	for i := 0; i < 50; i++ {
		a := first.SelectNextCard(history, pool)
		b := second.SelectNextCard(history, pool)
		require.NotNil(t, a)
		require.NotNil(t, b)
		assert.Equal(t, a.CardID, b.CardID)
	}
}
