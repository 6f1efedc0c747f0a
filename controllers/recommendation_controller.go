package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/htluong/smart-study-backend/models"
	"github.com/htluong/smart-study-backend/services"
)

// RecommendationHealth kiểm tra model service gợi ý còn sống không
func RecommendationHealth(c *gin.Context) {
	if err := services.RecommenderHealth(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetRecommendations gom các môn user đã học rồi proxy sang model service
func GetRecommendations(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	userIDStr := c.GetString("user_id")

	var subjects []string
	if err := db.Model(&models.StudySession{}).
		Where("user_id = ? AND subject <> ''", userIDStr).
		Distinct().Pluck("subject", &subjects).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không tải được lịch sử học"})
		return
	}

	result, err := services.Recommend(c.Request.Context(), services.RecommendRequest{
		Subjects: subjects,
		Limit:    10,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
