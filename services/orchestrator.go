package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/htluong/smart-study-backend/models"
)

const (
	// Lượt đầu chỉ sinh nội dung cho 3 leaf để người dùng học ngay,
	// các lượt sau sinh thêm từng cụm 2 leaf
	InitialLeafBatch = 3
	MoreLeafBatch    = 2

	minContentChars = 50
	proposalRetries = 3
)

// Generator trừu tượng hóa ProviderAdapter để test thay bằng backend giả
type Generator interface {
	Generate(ctx context.Context, prompt string, firstBatch bool, schemaName string) (string, error)
}

// Orchestrator điều phối toàn bộ luồng tạo phiên học:
// trích xuất -> phân tích -> cache -> đề xuất cây -> sinh nội dung dần
type Orchestrator struct {
	DB      *gorm.DB
	Adapter Generator
	Cache   CacheStore
}

func NewOrchestrator(db *gorm.DB) *Orchestrator {
	return &Orchestrator{
		DB:      db,
		Adapter: DefaultAdapter(),
		Cache:   DefaultCache(),
	}
}

// Mỗi phiên một mutex: hai request sinh thêm cùng lúc trên cùng phiên
// phải nối đuôi nhau, không được sinh trùng leaf
var sessionLocks sync.Map

func lockSession(id uuid.UUID) *sync.Mutex {
	mu, _ := sessionLocks.LoadOrStore(id.String(), &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ForgetSessionLock bỏ mutex của phiên đã xóa khỏi bảng khóa
func ForgetSessionLock(id uuid.UUID) {
	sessionLocks.Delete(id.String())
}

type CreateSessionInput struct {
	Content           string `json:"content" binding:"required"`
	Title             string `json:"title"`
	NumTopics         int    `json:"num_topics"` // 0 = theo gợi ý từ phân tích tài liệu
	QuestionsPerTopic int    `json:"questions_per_topic"`
	ProgressiveLoad   *bool  `json:"progressive_load"`
	FileURL           string `json:"file_url"`
}

// CreateSession tạo phiên học mới từ nội dung người dùng gửi lên.
// Nếu tài liệu này (cùng tham số) đã sinh trước đó, dựng lại từ cache
// mà không gọi AI lần nào.
func (o *Orchestrator) CreateSession(ctx context.Context, userID uuid.UUID, input CreateSessionInput) (*models.StudySession, error) {
	text, fileType, err := DetectAndExtract(input.Content)
	if err != nil {
		return nil, err
	}
	if len([]rune(strings.TrimSpace(text))) < minContentChars {
		return nil, fmt.Errorf("tài liệu quá ngắn để tạo phiên học")
	}

	analysis := AnalyzeContent(text)
	if input.NumTopics > 0 {
		analysis.RecommendedTopics = input.NumTopics
	}
	questionsPerTopic := input.QuestionsPerTopic
	if questionsPerTopic <= 0 {
		questionsPerTopic = analysis.QuestionsPerTopic
	}
	progressive := true
	if input.ProgressiveLoad != nil {
		progressive = *input.ProgressiveLoad
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = SmartTitle(text)
	}

	session := &models.StudySession{
		UserID:            userID,
		Title:             title,
		Slug:              slug.Make(title),
		StudyContent:      text,
		ContentHash:       ContentHash(text),
		FileURL:           input.FileURL,
		FileType:          fileType,
		QuestionsPerTopic: questionsPerTopic,
		RequestedTopics:   input.NumTopics,
		ProgressiveLoad:   progressive,
	}

	cacheKey := SessionCacheKey(text, analysis.RecommendedTopics, questionsPerTopic)
	if tree, ok := LookupSessionTree(ctx, o.Cache, cacheKey); ok {
		log.Println("cache hit, dựng lại phiên không gọi AI:", cacheKey)
		if err := o.rebuildFromCache(session, tree); err != nil {
			return nil, err
		}
		return session, nil
	}

	categories, err := o.proposeHierarchy(ctx, text, analysis)
	if err != nil {
		return nil, err
	}

	var leaves []models.Topic
	err = o.DB.Transaction(func(tx *gorm.DB) error {
		if len(categories) > 0 {
			session.Subject = categories[0].Title
		}
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		leaves, err = persistTree(tx, session, categories)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Sinh nội dung cho batch đầu bằng backend nhanh
	firstBatch := leaves
	if progressive && len(firstBatch) > InitialLeafBatch {
		firstBatch = firstBatch[:InitialLeafBatch]
	}
	if len(firstBatch) > 0 {
		if err := o.fillLeaves(ctx, session, firstBatch, true); err != nil {
			// Phiên đã có cây, trả lỗi để client thử sinh lại sau
			return nil, err
		}
	}

	o.refreshCache(ctx, session, cacheKey)
	return session, nil
}

// proposeHierarchy gọi AI đề xuất cây, tối đa 3 lượt:
// lượt 2 dùng prompt nghiêm hơn, lượt cuối chấp nhận cây kèm warning
func (o *Orchestrator) proposeHierarchy(ctx context.Context, text string, analysis ContentAnalysis) ([]*TopicNode, error) {
	var lastErr error
	for attempt := 0; attempt < proposalRetries; attempt++ {
		strictPrompt := attempt > 0
		lenient := attempt == proposalRetries-1

		raw, err := o.Adapter.Generate(ctx, BuildProposalPrompt(text, analysis, strictPrompt), true, SchemaProposal)
		if err != nil {
			return nil, err
		}

		var root ProposalRoot
		if err := json.Unmarshal([]byte(raw), &root); err != nil {
			lastErr = err
			continue
		}

		categories, warnings, verr := BuildHierarchy(root, !lenient)
		for _, w := range warnings {
			log.Println("cây chủ đề:", w)
		}
		if verr == nil {
			return categories, nil
		}
		log.Printf("cây chủ đề bị từ chối (lượt %d): %v", attempt+1, verr)
		lastErr = verr
	}
	return nil, lastErr
}

// persistTree lưu cây chủ đề, trả về danh sách leaf theo thứ tự duyệt.
// Leaf đầu tiên mở sẵn quiz, các leaf sau khóa và phụ thuộc leaf liền trước.
func persistTree(tx *gorm.DB, session *models.StudySession, categories []*TopicNode) ([]models.Topic, error) {
	var leaves []models.Topic
	row := 0

	var create func(node *TopicNode, parent *uuid.UUID, depth, order int) error
	create = func(node *TopicNode, parent *uuid.UUID, depth, order int) error {
		topic := models.Topic{
			StudySessionID: session.ID,
			ParentTopicID:  parent,
			Title:          node.Title,
			Description:    node.Description,
			OrderIndex:     order,
			IsCategory:     node.IsCategory,
			WorkflowStage:  models.StageLocked,
			PositionX:      float64(depth) * 260,
			PositionY:      float64(row) * 140,
		}
		row++
		if err := tx.Create(&topic).Error; err != nil {
			return err
		}
		if !node.IsCategory {
			leaves = append(leaves, topic)
		}
		for i, child := range node.Children {
			if err := create(child, &topic.ID, depth+1, i); err != nil {
				return err
			}
		}
		return nil
	}

	for i, cat := range categories {
		if err := create(cat, nil, 0, i); err != nil {
			return nil, err
		}
	}

	// Chuỗi phụ thuộc tuần tự theo thứ tự duyệt
	for i := range leaves {
		if i == 0 {
			leaves[i].WorkflowStage = models.StageQuizAvailable
		} else {
			if err := leaves[i].SetPrerequisiteIDs([]uuid.UUID{leaves[i-1].ID}); err != nil {
				return nil, err
			}
		}
		if err := tx.Model(&models.Topic{}).Where("id = ?", leaves[i].ID).Updates(map[string]interface{}{
			"workflow_stage":         leaves[i].WorkflowStage,
			"prerequisite_topic_ids": leaves[i].PrerequisiteTopicIDs,
		}).Error; err != nil {
			return nil, err
		}
	}

	if err := ValidatePrerequisites(leaves); err != nil {
		return nil, err
	}

	session.TopicsCount = len(leaves)
	if err := tx.Model(session).Update("topics_count", len(leaves)).Error; err != nil {
		return nil, err
	}
	return leaves, nil
}

// batchPayload là JSON backend trả về cho một lượt sinh nội dung
type batchPayload struct {
	Subtopics map[string]struct {
		Questions  []CachedQuestion  `json:"questions"`
		Flashcards []CachedFlashcard `json:"flashcards"`
	} `json:"subtopics"`
}

// fillLeaves sinh câu hỏi + flashcard cho một nhóm leaf và lưu trong
// một transaction
func (o *Orchestrator) fillLeaves(ctx context.Context, session *models.StudySession, leaves []models.Topic, firstBatch bool) error {
	prompt := BuildBatchPrompt(session.StudyContent, leaves, session.QuestionsPerTopic)
	raw, err := o.Adapter.Generate(ctx, prompt, firstBatch, SchemaBatch)
	if err != nil {
		return err
	}

	var payload batchPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("parse JSON nội dung lỗi: %w", err)
	}

	return o.DB.Transaction(func(tx *gorm.DB) error {
		seen, err := existingQuestionTexts(tx, session.ID)
		if err != nil {
			return err
		}

		for _, leaf := range leaves {
			entry, ok := payload.Subtopics["topic-"+leaf.ID.String()]
			if !ok {
				log.Println("backend bỏ sót chủ đề:", leaf.Title)
				continue
			}

			order := 0
			for _, cq := range entry.Questions {
				if len(cq.Options) != 4 || cq.CorrectAnswer < 0 || cq.CorrectAnswer > 3 {
					continue
				}
				key := strings.ToLower(strings.TrimSpace(cq.Question))
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}

				q := models.Question{
					TopicID:       leaf.ID,
					QuestionText:  cq.Question,
					CorrectAnswer: cq.CorrectAnswer,
					Explanation:   cq.Explanation,
					SourceText:    cq.SourceText,
					SourcePage:    cq.SourcePage,
					OrderIndex:    order,
				}
				if err := q.SetOptions(cq.Options); err != nil {
					return err
				}
				if err := tx.Create(&q).Error; err != nil {
					return err
				}
				order++
			}

			for _, cf := range entry.Flashcards {
				f := models.Flashcard{
					TopicID:   leaf.ID,
					FrontText: cf.Front,
					BackText:  cf.Back,
					Hint:      cf.Hint,
				}
				if err := tx.Create(&f).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func existingQuestionTexts(tx *gorm.DB, sessionID uuid.UUID) (map[string]struct{}, error) {
	var texts []string
	err := tx.Model(&models.Question{}).
		Joins("JOIN topics ON topics.id = questions.topic_id").
		Where("topics.study_session_id = ?", sessionID).
		Pluck("questions.question_text", &texts).Error
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(texts))
	for _, t := range texts {
		seen[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return seen, nil
}

// LeavesInOrder trả về danh sách leaf theo thứ tự duyệt cây (DFS,
// anh em theo order_index). Đây là thứ tự sinh nội dung và mở khóa.
func (o *Orchestrator) LeavesInOrder(sessionID uuid.UUID) ([]models.Topic, error) {
	var all []models.Topic
	if err := o.DB.Preload("Questions").
		Where("study_session_id = ?", sessionID).
		Order("order_index").Find(&all).Error; err != nil {
		return nil, err
	}

	children := make(map[string][]models.Topic)
	var roots []models.Topic
	for _, t := range all {
		if t.ParentTopicID == nil {
			roots = append(roots, t)
		} else {
			key := t.ParentTopicID.String()
			children[key] = append(children[key], t)
		}
	}

	var leaves []models.Topic
	var walk func(t models.Topic)
	walk = func(t models.Topic) {
		kids := children[t.ID.String()]
		if len(kids) == 0 && !t.IsCategory {
			leaves = append(leaves, t)
			return
		}
		for _, kid := range kids {
			walk(kid)
		}
	}
	for _, root := range roots {
		walk(root)
	}
	return leaves, nil
}

type GenerateMoreResult struct {
	GeneratedTopics []string `json:"generated_topics"`
	NewQuestions    int      `json:"new_questions"`
	NewFlashcards   int      `json:"new_flashcards"`
	TotalQuestions  int      `json:"total_questions"`
	TotalFlashcards int      `json:"total_flashcards"`
	RemainingTopics int      `json:"remaining_topics"`
	HasMore         bool     `json:"has_more"`
}

// GenerateMore sinh nội dung cho cụm leaf chưa có câu hỏi tiếp theo.
// Mutex theo phiên bảo đảm hai request song song không sinh trùng.
func (o *Orchestrator) GenerateMore(ctx context.Context, sessionID uuid.UUID) (*GenerateMoreResult, error) {
	mu := lockSession(sessionID)
	mu.Lock()
	defer mu.Unlock()

	var session models.StudySession
	if err := o.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		return nil, err
	}

	leaves, err := o.LeavesInOrder(sessionID)
	if err != nil {
		return nil, err
	}

	var unfilled []models.Topic
	for _, leaf := range leaves {
		if len(leaf.Questions) == 0 {
			unfilled = append(unfilled, leaf)
		}
	}
	if len(unfilled) == 0 {
		counts, err := o.countContent(sessionID)
		if err != nil {
			return nil, err
		}
		return &GenerateMoreResult{
			TotalQuestions:  counts.questions,
			TotalFlashcards: counts.flashcards,
			HasMore:         false,
		}, nil
	}

	batch := unfilled
	if len(batch) > MoreLeafBatch {
		batch = batch[:MoreLeafBatch]
	}

	before, err := o.countContent(sessionID)
	if err != nil {
		return nil, err
	}

	if err := o.fillLeaves(ctx, &session, batch, false); err != nil {
		return nil, err
	}

	// Leaf vừa được sinh có thể đã đủ điều kiện mở khóa từ trước
	if err := o.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := RefreshUnlocks(tx, sessionID); err != nil {
			return err
		}
		_, err := RecalcSessionProgress(tx, sessionID)
		return err
	}); err != nil {
		return nil, err
	}

	after, err := o.countContent(sessionID)
	if err != nil {
		return nil, err
	}

	o.refreshCacheBestEffort(ctx, &session)

	// Quét lại sau khi lưu: leaf nào backend bỏ sót vẫn tính là chưa sinh,
	// lượt gọi sau sẽ thử lại đúng leaf đó
	leaves, err = o.LeavesInOrder(sessionID)
	if err != nil {
		return nil, err
	}
	stillEmpty := make(map[uuid.UUID]bool)
	remaining := 0
	for _, leaf := range leaves {
		if len(leaf.Questions) == 0 {
			stillEmpty[leaf.ID] = true
			remaining++
		}
	}

	result := &GenerateMoreResult{
		NewQuestions:    after.questions - before.questions,
		NewFlashcards:   after.flashcards - before.flashcards,
		TotalQuestions:  after.questions,
		TotalFlashcards: after.flashcards,
		RemainingTopics: remaining,
		HasMore:         remaining > 0,
	}
	for _, leaf := range batch {
		if !stillEmpty[leaf.ID] {
			result.GeneratedTopics = append(result.GeneratedTopics, leaf.Title)
		}
	}
	return result, nil
}

type contentCount struct {
	questions  int
	flashcards int
}

func (o *Orchestrator) countContent(sessionID uuid.UUID) (contentCount, error) {
	var qc, fc int64
	err := o.DB.Model(&models.Question{}).
		Joins("JOIN topics ON topics.id = questions.topic_id").
		Where("topics.study_session_id = ?", sessionID).
		Count(&qc).Error
	if err != nil {
		return contentCount{}, err
	}
	err = o.DB.Model(&models.Flashcard{}).
		Joins("JOIN topics ON topics.id = flashcards.topic_id").
		Where("topics.study_session_id = ?", sessionID).
		Count(&fc).Error
	if err != nil {
		return contentCount{}, err
	}
	return contentCount{questions: int(qc), flashcards: int(fc)}, nil
}

// rebuildFromCache dựng lại toàn bộ phiên từ bản chụp trong cache
func (o *Orchestrator) rebuildFromCache(session *models.StudySession, tree *CachedTree) error {
	return o.DB.Transaction(func(tx *gorm.DB) error {
		if tree.Subject != "" {
			session.Subject = tree.Subject
		}
		if err := tx.Create(session).Error; err != nil {
			return err
		}

		var nodes []*TopicNode
		var leafContent []CachedTopic // nội dung leaf theo thứ tự duyệt cây

		var convert func(ct CachedTopic) *TopicNode
		convert = func(ct CachedTopic) *TopicNode {
			node := &TopicNode{
				Title:       ct.Title,
				Description: ct.Description,
				IsCategory:  ct.IsCategory || len(ct.Subtopics) > 0,
			}
			if !node.IsCategory {
				leafContent = append(leafContent, ct)
			}
			for _, sub := range ct.Subtopics {
				node.Children = append(node.Children, convert(sub))
			}
			return node
		}
		for _, cat := range tree.Categories {
			nodes = append(nodes, convert(cat))
		}

		leaves, err := persistTree(tx, session, nodes)
		if err != nil {
			return err
		}

		// Nối lại nội dung theo vị trí trong thứ tự duyệt: hai leaf trùng
		// tiêu đề ở hai nhánh khác nhau không được lẫn nội dung của nhau
		if len(leafContent) != len(leaves) {
			return fmt.Errorf("bản chụp cache lệch cây: %d nội dung / %d leaf", len(leafContent), len(leaves))
		}
		for idx, leaf := range leaves {
			ct := leafContent[idx]
			for i, cq := range ct.Questions {
				q := models.Question{
					TopicID:       leaf.ID,
					QuestionText:  cq.Question,
					CorrectAnswer: cq.CorrectAnswer,
					Explanation:   cq.Explanation,
					SourceText:    cq.SourceText,
					SourcePage:    cq.SourcePage,
					OrderIndex:    i,
				}
				if err := q.SetOptions(cq.Options); err != nil {
					return err
				}
				if err := tx.Create(&q).Error; err != nil {
					return err
				}
			}
			for _, cf := range ct.Flashcards {
				f := models.Flashcard{
					TopicID:   leaf.ID,
					FrontText: cf.Front,
					BackText:  cf.Back,
					Hint:      cf.Hint,
				}
				if err := tx.Create(&f).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// refreshCache chụp phiên hiện tại và ghi vào cache theo key đã biết
func (o *Orchestrator) refreshCache(ctx context.Context, session *models.StudySession, key string) {
	tree, err := SnapshotSessionTree(o.DB, session)
	if err != nil {
		log.Println("chụp phiên để cache lỗi:", err)
		return
	}
	StoreSessionTree(ctx, o.Cache, key, tree)
}

func (o *Orchestrator) refreshCacheBestEffort(ctx context.Context, session *models.StudySession) {
	numTopics := session.RequestedTopics
	if numTopics <= 0 {
		numTopics = AnalyzeContent(session.StudyContent).RecommendedTopics
	}
	key := SessionCacheKey(session.StudyContent, numTopics, session.QuestionsPerTopic)
	o.refreshCache(ctx, session, key)
}
