package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/htluong/smart-study-backend/models"
	"github.com/htluong/smart-study-backend/services"
)

// lấy topic và kiểm tra quyền sở hữu qua phiên học chứa nó
func findOwnedTopic(c *gin.Context, db *gorm.DB) (*models.Topic, bool) {
	userIDStr := c.GetString("user_id")
	topicID := c.Param("id")

	var topic models.Topic
	if err := db.First(&topic, "id = ?", topicID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy chủ đề"})
		return nil, false
	}

	var session models.StudySession
	if err := db.Select("user_id").First(&session, "id = ?", topic.StudySessionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy phiên học"})
		return nil, false
	}
	if session.UserID.String() != userIDStr {
		c.JSON(http.StatusForbidden, gin.H{"error": "Bạn không có quyền truy cập chủ đề này"})
		return nil, false
	}
	return &topic, true
}

// GetTopicFlashcards trả về flashcard của một chủ đề, thẻ đến hạn ôn
// được đánh dấu riêng
func GetTopicFlashcards(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	topic, ok := findOwnedTopic(c, db)
	if !ok {
		return
	}

	var cards []models.Flashcard
	if err := db.Where("topic_id = ?", topic.ID).Order("created_at").Find(&cards).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không tải được flashcard"})
		return
	}

	now := time.Now()
	c.JSON(http.StatusOK, gin.H{
		"topic_id":   topic.ID,
		"flashcards": cards,
		"due":        services.DueFlashcards(cards, now),
	})
}

type ReviewInput struct {
	Quality *int `json:"quality" binding:"required"`
}

// ReviewFlashcard ghi nhận một lượt ôn thẻ, cập nhật lịch SM-2
func ReviewFlashcard(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	userIDStr := c.GetString("user_id")

	var input ReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thiếu trường quality (0..5)"})
		return
	}

	cardID := c.Param("id")
	var card models.Flashcard
	if err := db.First(&card, "id = ?", cardID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy flashcard"})
		return
	}

	// Kiểm tra quyền sở hữu qua topic -> session
	var topic models.Topic
	if err := db.Select("study_session_id").First(&topic, "id = ?", card.TopicID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy chủ đề"})
		return
	}
	var session models.StudySession
	if err := db.Select("user_id").First(&session, "id = ?", topic.StudySessionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy phiên học"})
		return
	}
	if session.UserID.String() != userIDStr {
		c.JSON(http.StatusForbidden, gin.H{"error": "Bạn không có quyền ôn thẻ này"})
		return
	}

	if err := services.ApplyReview(&card, *input.Quality, time.Now()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := db.Save(&card).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không lưu được kết quả ôn tập"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Đã ghi nhận lượt ôn",
		"flashcard": card,
		"accuracy":  card.Accuracy(),
	})
}

// CompleteTopicFlashcards kết thúc giai đoạn ôn flashcard của một chủ
// đề: đánh dấu hoàn thành và mở khóa các chủ đề phụ thuộc
func CompleteTopicFlashcards(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	topic, ok := findOwnedTopic(c, db)
	if !ok {
		return
	}

	unlocked, err := services.CompleteFlashcards(db, topic.ID)
	if err != nil {
		var stageErr *services.ErrStageTransition
		if errors.As(err, &stageErr) {
			c.JSON(http.StatusConflict, gin.H{"error": stageErr.Error()})
			return
		}
		if errors.Is(err, services.ErrFlashcardsNotReviewed) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không hoàn thành được chủ đề"})
		return
	}

	var session models.StudySession
	_ = db.Select("progress").First(&session, "id = ?", topic.StudySessionID).Error

	unlockedIDs := make([]uuid.UUID, 0, len(unlocked))
	for _, t := range unlocked {
		unlockedIDs = append(unlockedIDs, t.ID)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Chủ đề đã hoàn thành",
		"unlocked_topics": unlockedIDs,
		"progress":        session.Progress,
	})
}
