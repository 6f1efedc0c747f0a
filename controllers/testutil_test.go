package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/htluong/smart-study-backend/models"
	"github.com/htluong/smart-study-backend/services"
)

func newControllerDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// :memory: tạo DB mới cho mỗi connection, giới hạn 1 để dùng chung
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.StudySession{},
		&models.Topic{},
		&models.Question{},
		&models.Flashcard{},
	))
	return db
}

// newTestRouter dựng router trần với db + user đã đăng nhập sẵn trong context
func newTestRouter(db *gorm.DB, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("db", db)
		c.Set("user_id", userID)
	})
	return r
}

func createControllerUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{FullName: "Người học", Email: fmt.Sprintf("%d@test.local", time.Now().UnixNano()), Password: "x"}
	require.NoError(t, db.Create(user).Error)
	return user
}

var topicKeyRe = regexp.MustCompile(`topic-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// stubGen giả lập backend AI: cây đề xuất cố định, 2 câu hỏi + 1 flashcard
// cho mỗi topic xuất hiện trong prompt
type stubGen struct {
	proposal services.ProposalRoot
}

func (g *stubGen) Generate(ctx context.Context, prompt string, firstBatch bool, schemaName string) (string, error) {
	if schemaName == services.SchemaProposal {
		data, err := json.Marshal(g.proposal)
		return string(data), err
	}

	subtopics := map[string]interface{}{}
	for _, key := range topicKeyRe.FindAllString(prompt, -1) {
		subtopics[key] = map[string]interface{}{
			"questions": []map[string]interface{}{
				{"question": "Câu hỏi 1 của " + key + "?", "options": []string{"A", "B", "C", "D"}, "correctAnswer": 0, "explanation": "giải thích"},
				{"question": "Câu hỏi 2 của " + key + "?", "options": []string{"A", "B", "C", "D"}, "correctAnswer": 1, "explanation": "giải thích"},
			},
			"flashcards": []map[string]interface{}{
				{"front": "Thuật ngữ " + key, "back": "Định nghĩa"},
			},
		}
	}
	data, err := json.Marshal(map[string]interface{}{"subtopics": subtopics})
	return string(data), err
}

// useStubOrchestrator thay orchestrator thật bằng bản dùng backend giả
func useStubOrchestrator(t *testing.T, gen *stubGen) {
	t.Helper()
	orig := newOrchestrator
	newOrchestrator = func(db *gorm.DB) *services.Orchestrator {
		return &services.Orchestrator{DB: db, Adapter: gen, Cache: services.DefaultCache()}
	}
	t.Cleanup(func() { newOrchestrator = orig })
}
