package services

import (
	"strings"
	"unicode"
)

// ContentAnalysis mô tả độ phức tạp của tài liệu, dùng để gợi ý số
// chủ đề và số câu hỏi mỗi chủ đề trước khi sinh nội dung.
type ContentAnalysis struct {
	WordCount          int     `json:"word_count"`
	SentenceCount      int     `json:"sentence_count"`
	UniqueWordRatio    float64 `json:"unique_word_ratio"`
	AvgWordLength      float64 `json:"avg_word_length"`
	AvgSentenceLength  float64 `json:"avg_sentence_length"`
	ComplexityScore    float64 `json:"complexity_score"` // 0..100
	ComplexityLevel    string  `json:"complexity_level"` // Cơ bản|Trung bình|Nâng cao
	RecommendedTopics  int     `json:"recommended_topics"`
	QuestionsPerTopic  int     `json:"questions_per_topic"`
	ReadingTimeMinutes int     `json:"reading_time_minutes"`
}

func AnalyzeContent(text string) ContentAnalysis {
	words := strings.Fields(text)
	wordCount := len(words)

	unique := make(map[string]struct{}, wordCount)
	totalLen := 0
	for _, w := range words {
		cleaned := strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		}))
		if cleaned != "" {
			unique[cleaned] = struct{}{}
		}
		totalLen += len([]rune(w))
	}

	sentenceCount := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			sentenceCount++
		}
	}
	if sentenceCount == 0 {
		sentenceCount = 1
	}

	a := ContentAnalysis{
		WordCount:     wordCount,
		SentenceCount: sentenceCount,
	}
	if wordCount > 0 {
		a.UniqueWordRatio = float64(len(unique)) / float64(wordCount)
		a.AvgWordLength = float64(totalLen) / float64(wordCount)
		a.AvgSentenceLength = float64(wordCount) / float64(sentenceCount)
	}

	// Điểm tổng hợp: từ vựng đa dạng + câu dài + từ dài => khó hơn
	score := a.UniqueWordRatio*40 + a.AvgWordLength*5 + a.AvgSentenceLength
	if score > 100 {
		score = 100
	}
	a.ComplexityScore = score

	switch {
	case score < 40:
		a.ComplexityLevel = "Cơ bản"
		a.QuestionsPerTopic = 4
	case score < 65:
		a.ComplexityLevel = "Trung bình"
		a.QuestionsPerTopic = 5
	default:
		a.ComplexityLevel = "Nâng cao"
		a.QuestionsPerTopic = 6
	}

	// Số chủ đề gợi ý theo độ dài tài liệu
	switch {
	case wordCount < 300:
		a.RecommendedTopics = 3
	case wordCount < 1000:
		a.RecommendedTopics = 5
	case wordCount < 3000:
		a.RecommendedTopics = 8
	default:
		a.RecommendedTopics = 12
	}

	// ~200 từ/phút
	a.ReadingTimeMinutes = (wordCount + 199) / 200
	return a
}

// SmartTitle rút gọn câu đầu tiên của tài liệu làm tiêu đề phiên học
func SmartTitle(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "Phiên học mới"
	}

	line := trimmed
	if idx := strings.IndexAny(trimmed, "\n.!?"); idx > 0 {
		line = trimmed[:idx]
	}
	line = strings.TrimSpace(line)

	runes := []rune(line)
	if len(runes) > 80 {
		line = string(runes[:80]) + "…"
	}
	if line == "" {
		return "Phiên học mới"
	}
	return line
}
