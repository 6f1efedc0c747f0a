package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/htluong/smart-study-backend/models"
	"github.com/htluong/smart-study-backend/services"
	"github.com/htluong/smart-study-backend/utils"
	"github.com/htluong/smart-study-backend/ws"
)

// cho phép test thay orchestrator bằng bản dùng backend giả
var newOrchestrator = services.NewOrchestrator

// lấy session và kiểm tra quyền sở hữu
func findOwnedSession(c *gin.Context, db *gorm.DB) (*models.StudySession, bool) {
	userIDStr := c.GetString("user_id")
	sessionID := c.Param("id")

	var session models.StudySession
	if err := db.First(&session, "id = ?", sessionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy phiên học"})
		return nil, false
	}
	if session.UserID.String() != userIDStr {
		c.JSON(http.StatusForbidden, gin.H{"error": "Bạn không có quyền truy cập phiên học này"})
		return nil, false
	}
	return &session, true
}

type AnalyzeInput struct {
	Content string `json:"content" binding:"required"`
}

// AnalyzeContent trả về độ phức tạp + gợi ý tham số trước khi tạo phiên
func AnalyzeContent(c *gin.Context) {
	var input AnalyzeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	text, fileType, err := services.DetectAndExtract(input.Content)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	analysis := services.AnalyzeContent(text)
	c.JSON(http.StatusOK, gin.H{
		"file_type":       fileType,
		"analysis":        analysis,
		"suggested_title": services.SmartTitle(text),
	})
}

// CreateStudySession tạo phiên học mới từ nội dung (text hoặc base64 file).
// Cây chủ đề được tạo đầy đủ, nội dung chỉ sinh cho vài leaf đầu.
func CreateStudySession(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	userIDStr := c.GetString("user_id")

	userUUID, err := uuid.Parse(userIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id không hợp lệ"})
		return
	}

	var input services.CreateSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orch := newOrchestrator(db)
	session, err := orch.CreateSession(c.Request.Context(), userUUID, input)
	if err != nil {
		var genErr *services.GenerationError
		if errors.As(err, &genErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "AI không sinh được nội dung, vui lòng thử lại", "detail": genErr.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws.BroadcastSessionListChanged()
	respondCreatedSession(c, db, session)
}

// respondCreatedSession trả về phiên vừa tạo kèm cây chủ đề đầy đủ và
// số leaf chưa được sinh nội dung
func respondCreatedSession(c *gin.Context, db *gorm.DB, session *models.StudySession) {
	topics, err := services.SessionTopicTree(db, session.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không tải được cây chủ đề"})
		return
	}
	overview, err := services.BuildSessionOverview(db, session.ID, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không tính được tiến độ"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":             "Tạo phiên học thành công",
		"session":             session,
		"topics":              topics,
		"overview":            overview,
		"questions_remaining": overview.PendingTopics,
	})
}

// CreateStudySessionFromFile nhận file multipart (pdf/docx/txt), upload
// lên Supabase rồi tạo phiên như bình thường
func CreateStudySessionFromFile(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	userIDStr := c.GetString("user_id")

	userUUID, err := uuid.Parse(userIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id không hợp lệ"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thiếu file upload"})
		return
	}

	var text string
	switch {
	case strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf"):
		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Không mở được file"})
			return
		}
		defer f.Close()
		text, err = services.ExtractTextFromPDF(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	case strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".docx"):
		text, err = services.ExtractTextFromDOCX(fileHeader)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	case strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".txt"):
		text, err = services.ExtractTextFromTXT(fileHeader)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Chỉ hỗ trợ file .pdf, .docx, .txt"})
		return
	}

	// Upload file gốc để xem lại sau, lỗi upload không chặn tạo phiên
	fileURL := ""
	if url, err := utils.UploadFileToSupabase(fileHeader, uuid.New().String()); err == nil {
		fileURL = url
	}

	input := services.CreateSessionInput{
		Content: text,
		Title:   c.PostForm("title"),
		FileURL: fileURL,
	}
	if qpt := c.PostForm("questions_per_topic"); qpt != "" {
		fmt.Sscanf(qpt, "%d", &input.QuestionsPerTopic)
	}
	if nt := c.PostForm("num_topics"); nt != "" {
		fmt.Sscanf(nt, "%d", &input.NumTopics)
	}

	orch := newOrchestrator(db)
	session, err := orch.CreateSession(c.Request.Context(), userUUID, input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws.BroadcastSessionListChanged()
	respondCreatedSession(c, db, session)
}

// GetStudySessions liệt kê phiên học của user hiện tại
func GetStudySessions(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	userIDStr := c.GetString("user_id")

	query := db.Where("user_id = ?", userIDStr).Order("updated_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	} else {
		query = query.Where("status <> ?", models.SessionArchived)
	}

	var sessions []models.StudySession
	if err := query.Find(&sessions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không tải được danh sách phiên học"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetStudySession trả về chi tiết phiên kèm cây chủ đề đầy đủ
func GetStudySession(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	session, ok := findOwnedSession(c, db)
	if !ok {
		return
	}

	topics, err := services.SessionTopicTree(db, session.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không tải được cây chủ đề"})
		return
	}

	overview, err := services.BuildSessionOverview(db, session.ID, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không tính được tiến độ"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":  session,
		"topics":   topics,
		"overview": overview,
	})
}

// GenerateMoreQuestions sinh nội dung cho cụm leaf tiếp theo chưa có câu hỏi
func GenerateMoreQuestions(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	session, ok := findOwnedSession(c, db)
	if !ok {
		return
	}

	sessionID := session.ID.String()
	ws.SendGenerationProgress(sessionID, "generating", nil, 0, session.Progress, "")

	orch := newOrchestrator(db)
	result, err := orch.GenerateMore(c.Request.Context(), session.ID)
	if err != nil {
		ws.SendGenerationProgress(sessionID, "error", nil, 0, session.Progress, err.Error())
		var genErr *services.GenerationError
		if errors.As(err, &genErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "AI không sinh được nội dung, vui lòng thử lại", "detail": genErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ws.SendGenerationProgress(sessionID, "done", result.GeneratedTopics, result.RemainingTopics, session.Progress, "")
	c.JSON(http.StatusOK, gin.H{
		"message": "Sinh nội dung thành công",
		"result":  result,
	})
}

// ArchiveStudySession chuyển phiên sang trạng thái lưu trữ
func ArchiveStudySession(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	session, ok := findOwnedSession(c, db)
	if !ok {
		return
	}

	if err := db.Model(session).Update("status", models.SessionArchived).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không lưu trữ được phiên học"})
		return
	}

	ws.BroadcastSessionListChanged()
	c.JSON(http.StatusOK, gin.H{"message": "Đã lưu trữ phiên học"})
}

// DeleteStudySession xóa phiên học cùng toàn bộ cây chủ đề
func DeleteStudySession(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	session, ok := findOwnedSession(c, db)
	if !ok {
		return
	}

	// Xóa file gốc trên Supabase nếu có, lỗi chỉ bỏ qua
	if session.FileURL != "" {
		_ = utils.DeleteFileFromSupabase(session.FileURL)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var topicIDs []uuid.UUID
		if err := tx.Model(&models.Topic{}).Where("study_session_id = ?", session.ID).
			Pluck("id", &topicIDs).Error; err != nil {
			return err
		}
		if len(topicIDs) > 0 {
			if err := tx.Where("topic_id IN ?", topicIDs).Delete(&models.Question{}).Error; err != nil {
				return err
			}
			if err := tx.Where("topic_id IN ?", topicIDs).Delete(&models.Flashcard{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("study_session_id = ?", session.ID).Delete(&models.Topic{}).Error; err != nil {
			return err
		}
		return tx.Delete(session).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không xóa được phiên học"})
		return
	}

	services.ForgetSessionLock(session.ID)
	ws.BroadcastSessionListChanged()
	c.JSON(http.StatusOK, gin.H{"message": "Đã xóa phiên học"})
}
