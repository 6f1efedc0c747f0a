package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SessionInProgress = "Đang học"
	SessionCompleted  = "Hoàn thành"
	SessionArchived   = "Đã lưu trữ"
)

type StudySession struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User   User      `gorm:"constraint:OnDelete:CASCADE;" json:"-"`

	Title   string `gorm:"size:255;not null" json:"title"`
	Slug    string `gorm:"size:255;index" json:"slug"`
	Subject string `gorm:"size:255" json:"subject"` // chủ đề chính (category đầu tiên)

	StudyContent string `gorm:"type:text" json:"-"` // văn bản đã trích xuất, giữ lại để sinh thêm câu hỏi
	ContentHash  string `gorm:"size:64;index" json:"content_hash"`
	FileURL      string `gorm:"type:text" json:"file_url"`
	FileType     string `gorm:"size:20" json:"file_type"` // pdf|docx|txt|text

	QuestionsPerTopic int    `gorm:"default:5" json:"questions_per_topic"`
	RequestedTopics   int    `gorm:"default:0" json:"requested_topics"` // số leaf người dùng yêu cầu, 0 = tự động
	ProgressiveLoad   bool   `gorm:"default:true" json:"progressive_load"`
	TopicsCount       int    `json:"topics_count"` // tổng số leaf của cây (kể cả chưa có nội dung)
	Progress          int    `gorm:"default:0" json:"progress"`
	Status            string `gorm:"size:30;default:'Đang học'" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Topics []Topic `gorm:"constraint:OnDelete:CASCADE;" json:"topics,omitempty"`
}

func (s *StudySession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
