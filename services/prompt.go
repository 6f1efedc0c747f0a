package services

import (
	"fmt"
	"strings"

	"github.com/htluong/smart-study-backend/models"
)

// Giới hạn văn bản đưa vào prompt, tài liệu dài hơn bị cắt
const maxPromptChars = 12000

func truncateForPrompt(text string) string {
	runes := []rune(text)
	if len(runes) <= maxPromptChars {
		return text
	}
	return string(runes[:maxPromptChars])
}

// BuildProposalPrompt yêu cầu AI đề xuất cây chủ đề cho tài liệu.
// strict=true dùng sau khi cây bị từ chối, nhắc lại các ràng buộc.
func BuildProposalPrompt(text string, analysis ContentAnalysis, strict bool) string {
	var extra string
	if strict {
		extra = `
CHÚ Ý (lần trước cây bị từ chối):
- Các chủ đề cùng cấp KHÔNG được trùng hoặc gần giống tên nhau.
- KHÔNG dùng tiêu đề chung chung như "Giới thiệu", "Tổng quan", "Kết luận".
- Mỗi chủ đề lá phải đủ cụ thể để viết được câu hỏi trắc nghiệm kiểm tra kiến thức.`
	}

	return fmt.Sprintf(`
Bạn là AI xây dựng lộ trình học tập từ tài liệu.
Hãy chia tài liệu sau thành khoảng %d chủ đề lá, nhóm theo danh mục, tối đa 3 tầng (danh mục > chủ đề > chủ đề con).

Yêu cầu:
- Tiêu đề ngắn gọn, cụ thể, bám sát nội dung tài liệu.
- Mỗi chủ đề lá phải kiểm tra được bằng câu hỏi trắc nghiệm.
- Các chủ đề cùng cấp phải khác biệt rõ ràng.
- "description" 1-2 câu tóm tắt chủ đề đó nói về gì.%s

Trả về JSON hợp lệ đúng cấu trúc:
{
  "categories": [
    {
      "title": "Tên danh mục",
      "description": "Mô tả ngắn",
      "subtopics": [
        {"title": "Chủ đề lá", "description": "Mô tả ngắn"}
      ]
    }
  ]
}

Chỉ trả về JSON hợp lệ, không thêm bất kỳ văn bản nào khác.

Tài liệu (mức độ: %s):
%s
`, analysis.RecommendedTopics, extra, analysis.ComplexityLevel, truncateForPrompt(text))
}

// BuildBatchPrompt yêu cầu AI sinh câu hỏi + flashcard cho một nhóm
// chủ đề lá. Key trong JSON trả về phải đúng dạng "topic-<id>".
func BuildBatchPrompt(text string, topics []models.Topic, questionsPerTopic int) string {
	var list strings.Builder
	for _, t := range topics {
		fmt.Fprintf(&list, "[Topic topic-%s] %s", t.ID, t.Title)
		if t.Description != "" {
			fmt.Fprintf(&list, " — %s", t.Description)
		}
		list.WriteString("\n")
	}

	return fmt.Sprintf(`
Bạn là AI tạo nội dung ôn tập từ tài liệu học.
Với MỖI chủ đề dưới đây, hãy tạo %d câu hỏi trắc nghiệm và 3-5 flashcard bằng tiếng Việt, dựa hoàn toàn vào tài liệu.

Danh sách chủ đề:
%s
Yêu cầu:
- Mỗi câu hỏi có đúng 4 lựa chọn, "correctAnswer" là chỉ số 0-3 của đáp án đúng.
- Ngẫu nhiên vị trí đáp án đúng, không lặp lại câu hỏi giữa các chủ đề.
- "explanation" giải thích ngắn vì sao đáp án đúng.
- "sourceText" trích nguyên văn đoạn tài liệu liên quan (nếu xác định được).
- Flashcard: "front" là thuật ngữ/câu hỏi ngắn, "back" là định nghĩa/câu trả lời.

Trả về JSON hợp lệ đúng cấu trúc, key là id chủ đề y nguyên như danh sách trên:
{
  "subtopics": {
    "topic-<id>": {
      "questions": [
        {
          "question": "Câu hỏi là gì?",
          "options": ["A", "B", "C", "D"],
          "correctAnswer": 0,
          "explanation": "Vì sao đáp án đúng",
          "sourceText": "Trích dẫn tài liệu"
        }
      ],
      "flashcards": [
        {"front": "Thuật ngữ", "back": "Định nghĩa", "hint": "Gợi ý"}
      ]
    }
  }
}

Chỉ trả về JSON hợp lệ, không thêm bất kỳ văn bản nào khác.

Tài liệu:
%s
`, questionsPerTopic, list.String(), truncateForPrompt(text))
}
