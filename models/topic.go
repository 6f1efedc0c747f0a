package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Các trạng thái của một leaf topic trong workflow học tập.
// Thứ tự chỉ tiến, không lùi: locked -> quiz_available -> flashcard_review -> completed
const (
	StageLocked          = "locked"
	StageQuizAvailable   = "quiz_available"
	StageFlashcardReview = "flashcard_review"
	StageCompleted       = "completed"
)

type Topic struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StudySessionID uuid.UUID  `gorm:"type:uuid;not null;index" json:"study_session_id"`
	ParentTopicID  *uuid.UUID `gorm:"type:uuid;index" json:"parent_topic_id"`

	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	OrderIndex  int    `json:"order_index"`
	IsCategory  bool   `gorm:"default:false" json:"is_category"` // true = node nhóm, không có câu hỏi

	WorkflowStage        string         `gorm:"size:30;default:'locked'" json:"workflow_stage"`
	PrerequisiteTopicIDs datatypes.JSON `json:"prerequisite_topic_ids"` // mảng uuid, tham chiếu mềm

	// Tọa độ hiển thị trên sơ đồ workflow (frontend tự do ghi đè)
	PositionX float64 `json:"position_x"`
	PositionY float64 `json:"position_y"`

	Score                *int `json:"score"` // điểm quiz gần nhất (%), nil = chưa làm
	CurrentQuestionIndex int  `gorm:"default:0" json:"current_question_index"`
	Completed            bool `gorm:"default:false" json:"completed"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Questions  []Question  `gorm:"constraint:OnDelete:CASCADE;" json:"questions,omitempty"`
	Flashcards []Flashcard `gorm:"constraint:OnDelete:CASCADE;" json:"flashcards,omitempty"`
	Subtopics  []Topic     `gorm:"foreignKey:ParentTopicID" json:"subtopics,omitempty"`
}

func (t *Topic) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// PrerequisiteIDs giải mã cột JSON thành danh sách uuid.
// ID không parse được sẽ bị bỏ qua (tham chiếu mềm).
func (t *Topic) PrerequisiteIDs() []uuid.UUID {
	if len(t.PrerequisiteTopicIDs) == 0 {
		return nil
	}
	var raw []string
	if err := json.Unmarshal(t.PrerequisiteTopicIDs, &raw); err != nil {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (t *Topic) SetPrerequisiteIDs(ids []uuid.UUID) error {
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	t.PrerequisiteTopicIDs = datatypes.JSON(data)
	return nil
}

// HasContent = leaf đã được sinh câu hỏi (đã "filled")
func (t *Topic) HasContent() bool {
	return len(t.Questions) > 0
}
