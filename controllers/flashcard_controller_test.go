package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/htluong/smart-study-backend/models"
)

func seedFlashcard(t *testing.T, db *gorm.DB, userID uuid.UUID) *models.Flashcard {
	t.Helper()

	session := &models.StudySession{UserID: userID, Title: "Phiên ôn tập", StudyContent: "nội dung"}
	require.NoError(t, db.Create(session).Error)

	topic := &models.Topic{StudySessionID: session.ID, Title: "Chủ đề", WorkflowStage: models.StageFlashcardReview}
	require.NoError(t, db.Create(topic).Error)

	card := &models.Flashcard{TopicID: topic.ID, FrontText: "Khái niệm", BackText: "Định nghĩa", EasinessFactor: 2.5}
	require.NoError(t, db.Create(card).Error)
	return card
}

func TestReviewFlashcardReturnsAccuracy(t *testing.T) {
	db := newControllerDB(t)
	user := createControllerUser(t, db)
	card := seedFlashcard(t, db, user.ID)

	r := newTestRouter(db, user.ID.String())
	r.POST("/api/flashcards/:id/review", ReviewFlashcard)

	do := func(quality string) map[string]interface{} {
		req := httptest.NewRequest(http.MethodPost, "/api/flashcards/"+card.ID.String()+"/review",
			strings.NewReader(`{"quality": `+quality+`}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	// Lượt đầu trả lời đúng: chính xác 100%
	resp := do("5")
	assert.InDelta(t, 100.0, resp["accuracy"], 1e-9)

	// Lượt hai trả lời sai: còn 50%
	resp = do("1")
	assert.InDelta(t, 50.0, resp["accuracy"], 1e-9)
}
