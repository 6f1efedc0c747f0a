package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htluong/smart-study-backend/models"
)

func TestApplyReviewSequence(t *testing.T) {
	now := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	card := &models.Flashcard{EasinessFactor: 2.5}

	// Lượt 1: trả lời hoàn hảo
	require.NoError(t, ApplyReview(card, 5, now))
	assert.Equal(t, 1, card.Repetitions)
	assert.Equal(t, 1, card.IntervalDays)
	assert.InDelta(t, 2.6, card.EasinessFactor, 1e-9)
	require.NotNil(t, card.NextReviewAt)
	assert.Equal(t, now.AddDate(0, 0, 1), *card.NextReviewAt)

	// Lượt 2: đúng, hơi do dự
	require.NoError(t, ApplyReview(card, 4, now))
	assert.Equal(t, 2, card.Repetitions)
	assert.Equal(t, 6, card.IntervalDays)
	assert.InDelta(t, 2.6, card.EasinessFactor, 1e-9)

	// Lượt 3: đúng nhưng khó khăn
	require.NoError(t, ApplyReview(card, 3, now))
	assert.Equal(t, 3, card.Repetitions)
	assert.InDelta(t, 2.46, card.EasinessFactor, 1e-9)
	assert.Equal(t, 15, card.IntervalDays) // round(6 * 2.46)

	// Lượt 4: sai, chuỗi bị đặt lại nhưng EF giữ nguyên
	require.NoError(t, ApplyReview(card, 2, now))
	assert.Equal(t, 0, card.Repetitions)
	assert.Equal(t, 1, card.IntervalDays)
	assert.InDelta(t, 2.46, card.EasinessFactor, 1e-9)

	assert.Equal(t, 4, card.TotalReviews)
	assert.Equal(t, 3, card.CorrectReviews)
	assert.InDelta(t, 75.0, card.Accuracy(), 1e-9) // % lượt đúng
}

func TestApplyReviewEasinessFloor(t *testing.T) {
	now := time.Now()
	card := &models.Flashcard{EasinessFactor: 1.3}

	// Trả lời q=3 liên tục không được kéo EF xuống dưới 1.3
	for i := 0; i < 10; i++ {
		require.NoError(t, ApplyReview(card, 3, now))
		assert.GreaterOrEqual(t, card.EasinessFactor, 1.3)
	}
	assert.InDelta(t, 1.3, card.EasinessFactor, 1e-9)
}

func TestApplyReviewQualityBounds(t *testing.T) {
	now := time.Now()
	card := &models.Flashcard{EasinessFactor: 2.5}

	assert.Error(t, ApplyReview(card, -1, now))
	assert.Error(t, ApplyReview(card, 6, now))
	assert.Equal(t, 0, card.TotalReviews)
}

func TestIsDueAndDueFlashcards(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(48 * time.Hour)

	fresh := models.Flashcard{}
	due := models.Flashcard{NextReviewAt: &past}
	notDue := models.Flashcard{NextReviewAt: &future}

	// Thẻ chưa ôn lần nào luôn đến hạn
	assert.True(t, fresh.IsDue(now))
	assert.True(t, due.IsDue(now))
	assert.False(t, notDue.IsDue(now))

	got := DueFlashcards([]models.Flashcard{fresh, due, notDue}, now)
	assert.Len(t, got, 2)
}
