package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Question struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TopicID uuid.UUID `gorm:"type:uuid;not null;index" json:"topic_id"`

	QuestionText  string         `gorm:"type:text;not null" json:"question_text"`
	Options       datatypes.JSON `gorm:"not null" json:"options"` // mảng 4 đáp án
	CorrectAnswer int            `gorm:"not null" json:"correct_answer"`
	Explanation   string         `gorm:"type:text" json:"explanation"`

	SourceText *string `gorm:"type:text" json:"source_text"` // đoạn tài liệu gốc (trích dẫn)
	SourcePage *int    `json:"source_page"`
	OrderIndex int     `json:"order_index"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

func (q *Question) OptionList() []string {
	var opts []string
	_ = json.Unmarshal(q.Options, &opts)
	return opts
}

func (q *Question) SetOptions(opts []string) error {
	data, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	q.Options = datatypes.JSON(data)
	return nil
}
