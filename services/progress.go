package services

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/htluong/smart-study-backend/models"
)

// SessionTopicTree trả về cây chủ đề cha-con của một phiên, kèm câu hỏi
// và flashcard của từng leaf
func SessionTopicTree(db *gorm.DB, sessionID uuid.UUID) ([]models.Topic, error) {
	var topics []models.Topic
	if err := db.Preload("Questions", func(q *gorm.DB) *gorm.DB { return q.Order("order_index") }).
		Preload("Flashcards").
		Where("study_session_id = ?", sessionID).
		Order("order_index").Find(&topics).Error; err != nil {
		return nil, err
	}

	children := make(map[string][]models.Topic)
	var roots []models.Topic
	for _, t := range topics {
		if t.ParentTopicID == nil {
			roots = append(roots, t)
		} else {
			key := t.ParentTopicID.String()
			children[key] = append(children[key], t)
		}
	}

	var attach func(t models.Topic) models.Topic
	attach = func(t models.Topic) models.Topic {
		for _, kid := range children[t.ID.String()] {
			t.Subtopics = append(t.Subtopics, attach(kid))
		}
		return t
	}

	out := make([]models.Topic, 0, len(roots))
	for _, root := range roots {
		out = append(out, attach(root))
	}
	return out, nil
}

// RecalcSessionProgress tính lại % leaf đã hoàn thành và cập nhật vào
// bản ghi phiên. Leaf chưa được sinh nội dung vẫn tính vào mẫu số.
func RecalcSessionProgress(tx *gorm.DB, sessionID uuid.UUID) (int, error) {
	var total, done int64
	if err := tx.Model(&models.Topic{}).
		Where("study_session_id = ? AND is_category = ?", sessionID, false).
		Count(&total).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&models.Topic{}).
		Where("study_session_id = ? AND is_category = ? AND workflow_stage = ?", sessionID, false, models.StageCompleted).
		Count(&done).Error; err != nil {
		return 0, err
	}

	progress := 0
	if total > 0 {
		progress = int(done * 100 / total)
	}

	updates := map[string]interface{}{"progress": progress}
	if progress >= 100 {
		updates["status"] = models.SessionCompleted
	}
	if err := tx.Model(&models.StudySession{}).Where("id = ?", sessionID).
		Updates(updates).Error; err != nil {
		return 0, err
	}
	return progress, nil
}

// SessionOverview gom số liệu tiến độ cho màn hình danh sách / chi tiết
type SessionOverview struct {
	SessionID       uuid.UUID  `json:"session_id"`
	Progress        int        `json:"progress"`
	TotalTopics     int        `json:"total_topics"`
	CompletedTopics int        `json:"completed_topics"`
	UnlockedTopics  int        `json:"unlocked_topics"`
	PendingTopics   int        `json:"pending_topics"` // leaf chưa có nội dung
	TotalQuestions  int        `json:"total_questions"`
	TotalFlashcards int        `json:"total_flashcards"`
	DueFlashcards   int        `json:"due_flashcards"`
	AverageScore    *float64   `json:"average_score"`
	LastActivity    *time.Time `json:"last_activity"`
}

// BuildSessionOverview tổng hợp tiến độ của một phiên
func BuildSessionOverview(db *gorm.DB, sessionID uuid.UUID, now time.Time) (*SessionOverview, error) {
	var topics []models.Topic
	if err := db.Preload("Questions").Preload("Flashcards").
		Where("study_session_id = ? AND is_category = ?", sessionID, false).
		Find(&topics).Error; err != nil {
		return nil, err
	}

	ov := &SessionOverview{SessionID: sessionID, TotalTopics: len(topics)}
	scoreSum, scoreCount := 0, 0

	for _, t := range topics {
		switch t.WorkflowStage {
		case models.StageCompleted:
			ov.CompletedTopics++
		case models.StageQuizAvailable, models.StageFlashcardReview:
			ov.UnlockedTopics++
		}
		if len(t.Questions) == 0 {
			ov.PendingTopics++
		}
		ov.TotalQuestions += len(t.Questions)
		ov.TotalFlashcards += len(t.Flashcards)
		for _, f := range t.Flashcards {
			if f.IsDue(now) {
				ov.DueFlashcards++
			}
			if f.LastReviewedAt != nil && (ov.LastActivity == nil || f.LastReviewedAt.After(*ov.LastActivity)) {
				ov.LastActivity = f.LastReviewedAt
			}
		}
		if t.Score != nil {
			scoreSum += *t.Score
			scoreCount++
		}
	}

	if ov.TotalTopics > 0 {
		ov.Progress = ov.CompletedTopics * 100 / ov.TotalTopics
	}
	if scoreCount > 0 {
		avg := float64(scoreSum) / float64(scoreCount)
		ov.AverageScore = &avg
	}
	return ov, nil
}
