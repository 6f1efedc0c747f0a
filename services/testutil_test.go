package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/htluong/smart-study-backend/models"
)

func newTestDB(t *testing.T) *gorm.DB {
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

// memCache: CacheStore trong bộ nhớ cho test
type memCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemCache() *memCache {
	return &memCache{m: make(map[string]string)}
}

func (c *memCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.m[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return val, nil
}

func (c *memCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

var topicKeyRe = regexp.MustCompile(`topic-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// fakeGen giả lập ProviderAdapter: trả cây cố định cho đề xuất, và
// sinh nội dung cho đúng các topic xuất hiện trong prompt
type fakeGen struct {
	mu            sync.Mutex
	proposal      ProposalRoot
	proposalCalls int
	batchCalls    int
	batchKeys     [][]string // key của từng lượt sinh nội dung, theo thứ tự
	skipKeys      int        // số key đầu mỗi lượt bị bỏ khỏi JSON trả về
}

func (g *fakeGen) Generate(ctx context.Context, prompt string, firstBatch bool, schemaName string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if schemaName == SchemaProposal {
		g.proposalCalls++
		data, err := json.Marshal(g.proposal)
		return string(data), err
	}

	g.batchCalls++
	keys := topicKeyRe.FindAllString(prompt, -1)
	g.batchKeys = append(g.batchKeys, keys)

	payload := map[string]interface{}{}
	subtopics := map[string]interface{}{}
	for i, key := range keys {
		if i < g.skipKeys {
			continue
		}
		questions := []map[string]interface{}{}
		for n := 0; n < 3; n++ {
			questions = append(questions, map[string]interface{}{
				"question":      fmt.Sprintf("Câu hỏi %d của %s?", n, key),
				"options":       []string{"A", "B", "C", "D"},
				"correctAnswer": n % 4,
				"explanation":   "giải thích",
			})
		}
		subtopics[key] = map[string]interface{}{
			"questions": questions,
			"flashcards": []map[string]interface{}{
				{"front": "Thuật ngữ " + key, "back": "Định nghĩa"},
				{"front": "Khái niệm " + key, "back": "Giải thích", "hint": "gợi ý"},
			},
		}
	}
	payload["subtopics"] = subtopics
	data, err := json.Marshal(payload)
	return string(data), err
}

func (g *fakeGen) totalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.proposalCalls + g.batchCalls
}

// proposalWithLeaves tạo cây đề xuất có đúng n leaf, chia đều 2 category
func proposalWithLeaves(n int) ProposalRoot {
	half := (n + 1) / 2
	var cats []TopicProposal
	cat := TopicProposal{Title: "Phần nền tảng"}
	for i := 0; i < n; i++ {
		if i == half {
			cats = append(cats, cat)
			cat = TopicProposal{Title: "Phần nâng cao"}
		}
		cat.Subtopics = append(cat.Subtopics, TopicProposal{
			Title:       fmt.Sprintf("Chủ đề số %02d", i+1),
			Description: "mô tả",
		})
	}
	cats = append(cats, cat)
	return ProposalRoot{Categories: cats}
}

// văn bản đủ dài để qua kiểm tra độ dài tối thiểu
func sampleContent(seed string) string {
	out := ""
	for i := 0; i < 30; i++ {
		out += fmt.Sprintf("Đây là đoạn văn %s số %d nói về kiến thức cần học. ", seed, i)
	}
	return out
}

func createTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{FullName: "Người học", Email: fmt.Sprintf("%d@test.local", time.Now().UnixNano()), Password: "x"}
	require.NoError(t, db.Create(user).Error)
	return user
}
