package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htluong/smart-study-backend/models"
	"github.com/htluong/smart-study-backend/services"
)

func TestCreateStudySessionReturnsTopicTree(t *testing.T) {
	db := newControllerDB(t)
	user := createControllerUser(t, db)

	gen := &stubGen{proposal: services.ProposalRoot{Categories: []services.TopicProposal{
		{Title: "Mạng máy tính", Subtopics: []services.TopicProposal{
			{Title: "Mô hình OSI", Description: "mô tả"},
			{Title: "Giao thức TCP", Description: "mô tả"},
			{Title: "Định tuyến IP", Description: "mô tả"},
			{Title: "Bảo mật tầng ứng dụng", Description: "mô tả"},
		}},
	}}}
	useStubOrchestrator(t, gen)

	r := newTestRouter(db, user.ID.String())
	r.POST("/api/study-sessions", CreateStudySession)

	body, err := json.Marshal(gin.H{"content": strings.Repeat("Tài liệu ôn tập về mạng máy tính và giao thức truyền tin. ", 10)})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/study-sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Session            models.StudySession       `json:"session"`
		Topics             []models.Topic            `json:"topics"`
		Overview           *services.SessionOverview `json:"overview"`
		QuestionsRemaining int                       `json:"questions_remaining"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	// Cây chủ đề trả về đầy đủ ngay khi tạo: 1 category, 4 leaf lồng bên trong
	require.Len(t, resp.Topics, 1)
	require.Len(t, resp.Topics[0].Subtopics, 4)

	// 3 leaf đầu đã có nội dung, leaf cuối chờ sinh thêm
	filled := 0
	for _, leaf := range resp.Topics[0].Subtopics {
		if len(leaf.Questions) > 0 {
			filled++
		}
	}
	assert.Equal(t, 3, filled)
	assert.Equal(t, 1, resp.QuestionsRemaining)

	require.NotNil(t, resp.Overview)
	assert.Equal(t, 1, resp.Overview.PendingTopics)
	assert.Equal(t, 4, resp.Overview.TotalTopics)
	assert.Equal(t, 4, resp.Session.TopicsCount)
}
