package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Flashcard struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TopicID uuid.UUID `gorm:"type:uuid;not null;index" json:"topic_id"`

	FrontText string `gorm:"type:text;not null" json:"front_text"`
	BackText  string `gorm:"type:text;not null" json:"back_text"`
	Hint      string `gorm:"type:text" json:"hint"`

	// Trạng thái lặp lại ngắt quãng (SM-2)
	EasinessFactor float64    `gorm:"default:2.5" json:"easiness_factor"`
	IntervalDays   int        `gorm:"default:1" json:"interval_days"`
	Repetitions    int        `gorm:"default:0" json:"repetitions"`
	NextReviewAt   *time.Time `json:"next_review_at"`
	LastReviewedAt *time.Time `json:"last_reviewed_at"`

	TotalReviews   int `gorm:"default:0" json:"total_reviews"`
	CorrectReviews int `gorm:"default:0" json:"correct_reviews"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (f *Flashcard) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// IsDue: thẻ chưa ôn lần nào luôn đến hạn
func (f *Flashcard) IsDue(now time.Time) bool {
	if f.NextReviewAt == nil {
		return true
	}
	return !now.Before(*f.NextReviewAt)
}

// Accuracy trả về % lượt trả lời đúng (0..100)
func (f *Flashcard) Accuracy() float64 {
	if f.TotalReviews == 0 {
		return 0
	}
	return float64(f.CorrectReviews) / float64(f.TotalReviews) * 100
}
