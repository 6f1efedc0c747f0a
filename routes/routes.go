package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/htluong/smart-study-backend/controllers"
	"github.com/htluong/smart-study-backend/middleware"
	"github.com/htluong/smart-study-backend/models"
	"github.com/htluong/smart-study-backend/ws"
	"gorm.io/gorm"
)

func SetupRouter(r *gin.Engine, db *gorm.DB) *gin.Engine {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/health", controllers.HealthCheck)

	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", controllers.Register)
		auth.POST("/login", controllers.Login)
		auth.POST("/logingoogle", controllers.GoogleLogin)
	}

	sessions := api.Group("/study-sessions")
	{
		sessions.Use(middleware.AuthMiddleware(), middleware.DBMiddleware(db))

		// Phân tích tài liệu trước khi tạo phiên
		sessions.POST("/analyze", controllers.AnalyzeContent)

		// Tạo phiên + quản lý phiên
		sessions.POST("", controllers.CreateStudySession)
		sessions.POST("/upload", controllers.CreateStudySessionFromFile)
		sessions.GET("", controllers.GetStudySessions)
		sessions.GET("/:id", controllers.GetStudySession)
		sessions.DELETE("/:id", controllers.DeleteStudySession)
		sessions.PATCH("/:id/archive", controllers.ArchiveStudySession)

		// Sinh nội dung dần + sơ đồ workflow
		sessions.POST("/:id/generate-more", controllers.GenerateMoreQuestions)
		sessions.GET("/:id/workflow", controllers.GetSessionWorkflow)
	}

	topics := api.Group("/topics")
	{
		topics.Use(middleware.AuthMiddleware(), middleware.DBMiddleware(db))

		topics.POST("/:id/quiz-result", controllers.SubmitQuizResult)
		topics.GET("/:id/flashcards", controllers.GetTopicFlashcards)
		topics.POST("/:id/complete-flashcards", controllers.CompleteTopicFlashcards)
	}

	flashcards := api.Group("/flashcards")
	{
		flashcards.Use(middleware.AuthMiddleware(), middleware.DBMiddleware(db))

		flashcards.POST("/:id/review", controllers.ReviewFlashcard)
	}

	recommendations := api.Group("/recommendations")
	{
		recommendations.Use(middleware.AuthMiddleware(), middleware.DBMiddleware(db))

		// Trạng thái model service chỉ dành cho quản trị
		recommendations.GET("/health", middleware.RequireRoles(string(models.RoleAdmin)), controllers.RecommendationHealth)
		recommendations.GET("", controllers.GetRecommendations)
	}

	r.GET("/ws/session/:id", ws.HandleSessionWebSocket)
	r.GET("/ws/status", ws.HandleGlobalWebSocket)

	return r
}
