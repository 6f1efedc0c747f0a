package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/htluong/smart-study-backend/models"
	"github.com/htluong/smart-study-backend/services"
)

// WorkflowNode / WorkflowEdge: dữ liệu vẽ sơ đồ lộ trình học ở frontend
type WorkflowNode struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	IsCategory    bool    `json:"is_category"`
	WorkflowStage string  `json:"workflow_stage"`
	HasContent    bool    `json:"has_content"`
	Score         *int    `json:"score"`
	PositionX     float64 `json:"position_x"`
	PositionY     float64 `json:"position_y"`
	ParentID      *string `json:"parent_id"`
}

type WorkflowEdge struct {
	From string `json:"from"` // topic tiên quyết
	To   string `json:"to"`
	Type string `json:"type"` // hierarchy|prerequisite
}

// GetSessionWorkflow trả về node + cạnh của sơ đồ workflow một phiên
func GetSessionWorkflow(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	session, ok := findOwnedSession(c, db)
	if !ok {
		return
	}

	var topics []models.Topic
	if err := db.Preload("Questions").
		Where("study_session_id = ?", session.ID).
		Order("order_index").Find(&topics).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không tải được cây chủ đề"})
		return
	}

	nodes := make([]WorkflowNode, 0, len(topics))
	var edges []WorkflowEdge
	for _, t := range topics {
		var parentID *string
		if t.ParentTopicID != nil {
			p := t.ParentTopicID.String()
			parentID = &p
			edges = append(edges, WorkflowEdge{From: p, To: t.ID.String(), Type: "hierarchy"})
		}
		for _, pre := range t.PrerequisiteIDs() {
			edges = append(edges, WorkflowEdge{From: pre.String(), To: t.ID.String(), Type: "prerequisite"})
		}
		nodes = append(nodes, WorkflowNode{
			ID:            t.ID.String(),
			Title:         t.Title,
			IsCategory:    t.IsCategory,
			WorkflowStage: t.WorkflowStage,
			HasContent:    t.HasContent(),
			Score:         t.Score,
			PositionX:     t.PositionX,
			PositionY:     t.PositionY,
			ParentID:      parentID,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"progress":   session.Progress,
		"nodes":      nodes,
		"edges":      edges,
	})
}

type QuizResultInput struct {
	Score *int `json:"score" binding:"required"`
}

// SubmitQuizResult ghi điểm quiz của một chủ đề. Đạt chuẩn thì chuyển
// sang giai đoạn ôn flashcard, chưa đạt thì làm lại.
func SubmitQuizResult(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	topic, ok := findOwnedTopic(c, db)
	if !ok {
		return
	}

	var input QuizResultInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thiếu trường score (0..100)"})
		return
	}

	updated, err := services.CompleteQuiz(db, topic.ID, *input.Score)
	if err != nil {
		var stageErr *services.ErrStageTransition
		if errors.As(err, &stageErr) {
			c.JSON(http.StatusConflict, gin.H{"error": stageErr.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	passed := *input.Score >= services.QuizPassScore
	message := "Chưa đạt, hãy làm lại quiz"
	if passed {
		message = "Đạt! Chuyển sang ôn flashcard"
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        message,
		"passed":         passed,
		"workflow_stage": updated.WorkflowStage,
		"score":          *input.Score,
	})
}
