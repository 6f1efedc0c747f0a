package services

import (
	"fmt"
	"math"
	"time"

	"github.com/htluong/smart-study-backend/models"
)

const minEasinessFactor = 1.3

// ApplyReview cập nhật lịch ôn tập của một flashcard theo thuật toán SM-2.
// quality: 0..5, >=3 tính là trả lời đúng.
//
// quality < 3: đặt lại chuỗi (repetitions=0, interval=1 ngày), giữ nguyên EF.
// quality >= 3: tăng repetitions, cập nhật EF (chặn dưới 1.3) rồi tính interval:
// lần 1 -> 1 ngày, lần 2 -> 6 ngày, từ lần 3 -> round(interval cũ * EF).
func ApplyReview(f *models.Flashcard, quality int, now time.Time) error {
	if quality < 0 || quality > 5 {
		return fmt.Errorf("quality phải trong khoảng 0..5, nhận %d", quality)
	}

	if quality < 3 {
		f.Repetitions = 0
		f.IntervalDays = 1
	} else {
		f.Repetitions++

		q := float64(quality)
		ef := f.EasinessFactor + (0.1 - (5-q)*(0.08+(5-q)*0.02))
		if ef < minEasinessFactor {
			ef = minEasinessFactor
		}
		f.EasinessFactor = ef

		switch f.Repetitions {
		case 1:
			f.IntervalDays = 1
		case 2:
			f.IntervalDays = 6
		default:
			f.IntervalDays = int(math.Round(float64(f.IntervalDays) * f.EasinessFactor))
		}
	}

	f.TotalReviews++
	if quality >= 3 {
		f.CorrectReviews++
	}

	next := now.AddDate(0, 0, f.IntervalDays)
	f.NextReviewAt = &next
	f.LastReviewedAt = &now
	return nil
}

// DueFlashcards lọc ra các thẻ đến hạn ôn tại thời điểm now
func DueFlashcards(cards []models.Flashcard, now time.Time) []models.Flashcard {
	due := make([]models.Flashcard, 0, len(cards))
	for _, c := range cards {
		if c.IsDue(now) {
			due = append(due, c)
		}
	}
	return due
}
