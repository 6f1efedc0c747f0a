package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeContentScalesWithLength(t *testing.T) {
	short := AnalyzeContent("Một đoạn rất ngắn. Chỉ vài câu thôi.")
	assert.Equal(t, 3, short.RecommendedTopics)
	assert.Equal(t, 1, short.ReadingTimeMinutes)

	long := AnalyzeContent(strings.Repeat("Đây là một câu dài nói về kiến thức chuyên sâu của môn học. ", 120))
	assert.Greater(t, long.WordCount, 1000)
	assert.Equal(t, 8, long.RecommendedTopics)
	assert.Contains(t, []int{4, 5, 6}, long.QuestionsPerTopic)
	assert.NotEmpty(t, long.ComplexityLevel)
}

func TestAnalyzeContentEmpty(t *testing.T) {
	a := AnalyzeContent("")
	assert.Zero(t, a.WordCount)
	assert.Equal(t, 3, a.RecommendedTopics)
}

func TestSmartTitle(t *testing.T) {
	assert.Equal(t, "Giáo trình Mạng máy tính", SmartTitle("Giáo trình Mạng máy tính. Chương 1 nói về..."))
	assert.Equal(t, "Dòng đầu tiên", SmartTitle("Dòng đầu tiên\nDòng thứ hai"))
	assert.Equal(t, "Phiên học mới", SmartTitle("   "))

	long := SmartTitle(strings.Repeat("a", 200))
	assert.LessOrEqual(t, len([]rune(long)), 81)
	assert.True(t, strings.HasSuffix(long, "…"))
}

func TestDetectAndExtractPlainText(t *testing.T) {
	text, fileType, err := DetectAndExtract("Nội dung thuần văn bản để tạo phiên học.")
	require.NoError(t, err)
	assert.Equal(t, "text", fileType)
	assert.Contains(t, text, "thuần văn bản")
}

func TestContentHashDeterministic(t *testing.T) {
	h1 := ContentHash("cùng một nội dung")
	h2 := ContentHash("cùng một nội dung")
	h3 := ContentHash("nội dung khác")
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}
