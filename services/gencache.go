package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/htluong/smart-study-backend/config"
	"github.com/htluong/smart-study-backend/models"
)

// Cache kết quả sinh nội dung theo hash tài liệu: cùng một tài liệu với
// cùng tham số thì trả lại cây đã sinh, không tốn thêm lượt gọi AI.
// Cache chỉ là lớp phụ: miss hay Redis chết đều không chặn luồng chính.

const sessionCacheTTL = 24 * time.Hour

var ErrCacheMiss = errors.New("cache miss")

type CacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type redisStore struct {
	client *redis.Client
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return val, err
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

type noopStore struct{}

func (noopStore) Get(ctx context.Context, key string) (string, error) { return "", ErrCacheMiss }
func (noopStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return nil
}

// DefaultCache dùng Redis nếu đã kết nối, ngược lại cache tắt
func DefaultCache() CacheStore {
	if config.RDB == nil {
		return noopStore{}
	}
	return &redisStore{client: config.RDB}
}

// ContentHash: sha256 của văn bản, dùng cho cả cache key lẫn cột content_hash
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// SessionCacheKey: ai_session:<sha256[:16]>:<num_topics>:<questions_per_topic>
func SessionCacheKey(text string, numTopics, questionsPerTopic int) string {
	return fmt.Sprintf("ai_session:%s:%d:%d", ContentHash(text)[:16], numTopics, questionsPerTopic)
}

// CachedTree là bản chụp toàn bộ cây chủ đề + nội dung đã sinh,
// đủ để dựng lại một phiên học mới mà không gọi AI
type CachedTree struct {
	Title      string        `json:"title"`
	Subject    string        `json:"subject"`
	Categories []CachedTopic `json:"categories"`
}

type CachedTopic struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	IsCategory  bool              `json:"is_category"`
	Questions   []CachedQuestion  `json:"questions,omitempty"`
	Flashcards  []CachedFlashcard `json:"flashcards,omitempty"`
	Subtopics   []CachedTopic     `json:"subtopics,omitempty"`
}

type CachedQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
	SourceText    *string  `json:"sourceText,omitempty"`
	SourcePage    *int     `json:"sourcePage,omitempty"`
}

type CachedFlashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
	Hint  string `json:"hint,omitempty"`
}

// LookupSessionTree trả về cây đã cache, ok=false nếu miss hoặc lỗi
func LookupSessionTree(ctx context.Context, store CacheStore, key string) (*CachedTree, bool) {
	raw, err := store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			log.Println("đọc cache lỗi:", err)
		}
		return nil, false
	}
	var tree CachedTree
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		log.Println("cache hỏng, bỏ qua:", err)
		return nil, false
	}
	return &tree, true
}

// StoreSessionTree ghi cây vào cache, lỗi chỉ log không trả về
func StoreSessionTree(ctx context.Context, store CacheStore, key string, tree *CachedTree) {
	data, err := json.Marshal(tree)
	if err != nil {
		log.Println("marshal cache lỗi:", err)
		return
	}
	if err := store.Set(ctx, key, string(data), sessionCacheTTL); err != nil {
		log.Println("ghi cache lỗi:", err)
	}
}

// SnapshotSessionTree chụp lại cây của một phiên từ DB để đưa vào cache
func SnapshotSessionTree(db *gorm.DB, session *models.StudySession) (*CachedTree, error) {
	var roots []models.Topic
	if err := db.Preload("Questions").Preload("Flashcards").
		Where("study_session_id = ? AND parent_topic_id IS NULL", session.ID).
		Order("order_index").Find(&roots).Error; err != nil {
		return nil, err
	}

	var all []models.Topic
	if err := db.Preload("Questions").Preload("Flashcards").
		Where("study_session_id = ?", session.ID).
		Order("order_index").Find(&all).Error; err != nil {
		return nil, err
	}

	children := make(map[string][]models.Topic)
	for _, t := range all {
		if t.ParentTopicID != nil {
			key := t.ParentTopicID.String()
			children[key] = append(children[key], t)
		}
	}

	var snap func(t models.Topic) CachedTopic
	snap = func(t models.Topic) CachedTopic {
		ct := CachedTopic{
			Title:       t.Title,
			Description: t.Description,
			IsCategory:  t.IsCategory,
		}
		for _, q := range t.Questions {
			ct.Questions = append(ct.Questions, CachedQuestion{
				Question:      q.QuestionText,
				Options:       q.OptionList(),
				CorrectAnswer: q.CorrectAnswer,
				Explanation:   q.Explanation,
				SourceText:    q.SourceText,
				SourcePage:    q.SourcePage,
			})
		}
		for _, f := range t.Flashcards {
			ct.Flashcards = append(ct.Flashcards, CachedFlashcard{
				Front: f.FrontText,
				Back:  f.BackText,
				Hint:  f.Hint,
			})
		}
		for _, sub := range children[t.ID.String()] {
			ct.Subtopics = append(ct.Subtopics, snap(sub))
		}
		return ct
	}

	tree := &CachedTree{Title: session.Title, Subject: session.Subject}
	for _, root := range roots {
		tree.Categories = append(tree.Categories, snap(root))
	}
	return tree, nil
}
