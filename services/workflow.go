package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/htluong/smart-study-backend/models"
)

// Điểm quiz tối thiểu (%) để chuyển sang giai đoạn ôn flashcard
const QuizPassScore = 70

// ErrStageTransition: yêu cầu chuyển trạng thái không hợp lệ
// (làm quiz khi còn khóa, hoàn thành flashcard khi chưa qua quiz...)
type ErrStageTransition struct {
	From, To string
}

func (e *ErrStageTransition) Error() string {
	return fmt.Sprintf("không thể chuyển từ %s sang %s", e.From, e.To)
}

// ErrFlashcardsNotReviewed: còn flashcard chưa ôn lần nào nên chưa thể
// đánh dấu topic hoàn thành.
var ErrFlashcardsNotReviewed = fmt.Errorf("còn flashcard chưa được ôn")

// PrerequisitesMet kiểm tra mọi topic tiên quyết của t đã hoàn thành.
// completed là tập ID các topic đã completed trong phiên.
func PrerequisitesMet(t *models.Topic, completed map[uuid.UUID]bool) bool {
	for _, pre := range t.PrerequisiteIDs() {
		if !completed[pre] {
			return false
		}
	}
	return true
}

// CompleteQuiz ghi nhận kết quả quiz của một leaf.
// Đạt >= QuizPassScore thì chuyển quiz_available -> flashcard_review,
// chưa đạt thì giữ nguyên để làm lại.
func CompleteQuiz(db *gorm.DB, topicID uuid.UUID, score int) (*models.Topic, error) {
	if score < 0 || score > 100 {
		return nil, fmt.Errorf("điểm phải trong khoảng 0..100")
	}

	var topic models.Topic
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&topic, "id = ?", topicID).Error; err != nil {
			return err
		}
		if topic.WorkflowStage != models.StageQuizAvailable {
			return &ErrStageTransition{From: topic.WorkflowStage, To: models.StageFlashcardReview}
		}

		updates := map[string]interface{}{"score": score}
		if score >= QuizPassScore {
			updates["workflow_stage"] = models.StageFlashcardReview
			topic.WorkflowStage = models.StageFlashcardReview
		}
		s := score
		topic.Score = &s
		return tx.Model(&models.Topic{}).Where("id = ?", topicID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &topic, nil
}

// CompleteFlashcards đánh dấu leaf hoàn thành và mở khóa các topic phụ
// thuộc trong CÙNG một transaction: hoặc tất cả cùng mở, hoặc không gì cả.
// Trả về danh sách topic vừa được mở khóa.
func CompleteFlashcards(db *gorm.DB, topicID uuid.UUID) ([]models.Topic, error) {
	var unlocked []models.Topic

	err := db.Transaction(func(tx *gorm.DB) error {
		var topic models.Topic
		if err := tx.First(&topic, "id = ?", topicID).Error; err != nil {
			return err
		}
		if topic.WorkflowStage != models.StageFlashcardReview {
			return &ErrStageTransition{From: topic.WorkflowStage, To: models.StageCompleted}
		}

		// Mỗi flashcard phải được ôn ít nhất một lần trước khi chốt topic
		var unreviewed int64
		if err := tx.Model(&models.Flashcard{}).
			Where("topic_id = ? AND last_reviewed_at IS NULL", topicID).
			Count(&unreviewed).Error; err != nil {
			return err
		}
		if unreviewed > 0 {
			return ErrFlashcardsNotReviewed
		}

		if err := tx.Model(&models.Topic{}).Where("id = ?", topicID).Updates(map[string]interface{}{
			"workflow_stage": models.StageCompleted,
			"completed":      true,
		}).Error; err != nil {
			return err
		}

		var err error
		unlocked, err = RefreshUnlocks(tx, topic.StudySessionID)
		if err != nil {
			return err
		}

		_, err = RecalcSessionProgress(tx, topic.StudySessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return unlocked, nil
}

// RefreshUnlocks quét toàn phiên, mở khóa mọi topic đang locked mà toàn
// bộ tiên quyết đã hoàn thành. Gọi bên trong transaction.
func RefreshUnlocks(tx *gorm.DB, sessionID uuid.UUID) ([]models.Topic, error) {
	var all []models.Topic
	if err := tx.Where("study_session_id = ?", sessionID).Find(&all).Error; err != nil {
		return nil, err
	}

	completed := make(map[uuid.UUID]bool, len(all))
	for _, t := range all {
		if t.WorkflowStage == models.StageCompleted {
			completed[t.ID] = true
		}
	}

	var unlocked []models.Topic
	for _, t := range all {
		if t.IsCategory || t.WorkflowStage != models.StageLocked {
			continue
		}
		if !PrerequisitesMet(&t, completed) {
			continue
		}
		if err := tx.Model(&models.Topic{}).Where("id = ?", t.ID).
			Update("workflow_stage", models.StageQuizAvailable).Error; err != nil {
			return nil, err
		}
		t.WorkflowStage = models.StageQuizAvailable
		unlocked = append(unlocked, t)
	}
	return unlocked, nil
}
