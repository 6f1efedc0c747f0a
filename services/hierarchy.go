package services

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/gosimple/unidecode"

	"github.com/htluong/smart-study-backend/models"
)

// MaxTopicDepth: category (1) -> topic (2) -> subtopic (3).
// Node sâu hơn bị "là phẳng" lên mức 3.
const MaxTopicDepth = 3

// TopicProposal là một node trong cây chủ đề do AI đề xuất
type TopicProposal struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Subtopics   []TopicProposal `json:"subtopics,omitempty"`
}

type ProposalRoot struct {
	Categories []TopicProposal `json:"categories"`
}

// TopicNode là node đã chuẩn hóa, sẵn sàng lưu vào DB
type TopicNode struct {
	Title       string
	Description string
	IsCategory  bool
	Children    []*TopicNode
}

// ValidationError gom mọi lỗi chất lượng của cây đề xuất,
// dùng để quyết định có gọi lại AI với prompt nghiêm hơn không.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "cây chủ đề không đạt: " + strings.Join(e.Problems, "; ")
}

// Các tiêu đề quá chung chung, không ra được câu hỏi kiểm tra kiến thức
var genericLeafTitles = map[string]struct{}{
	"gioi thieu": {}, "introduction": {}, "intro": {},
	"tong quan": {}, "overview": {},
	"ket luan": {}, "conclusion": {},
	"tom tat": {}, "summary": {},
	"mo dau": {}, "noi dung": {}, "content": {},
	"khac": {}, "other": {}, "misc": {},
}

// BuildHierarchy chuẩn hóa cây đề xuất:
//   - node vượt quá độ sâu 3 được nâng lên làm leaf mức 3
//   - trùng tiêu đề tuyệt đối giữa anh em: bỏ bản sau
//   - tiêu đề anh em gần giống nhau hoặc leaf quá chung chung:
//     strict=true trả *ValidationError, strict=false giữ lại kèm warning
func BuildHierarchy(root ProposalRoot, strict bool) ([]*TopicNode, []string, error) {
	if len(root.Categories) == 0 {
		return nil, nil, &ValidationError{Problems: []string{"không có category nào"}}
	}

	var warnings []string
	var problems []string

	categories := normalizeLevel(root.Categories, 1, &warnings)
	checkSiblings(categories, "gốc", &problems, &warnings, strict)

	for _, cat := range categories {
		cat.IsCategory = len(cat.Children) > 0
		validateSubtree(cat, &problems, &warnings, strict)
	}

	if strict && len(problems) > 0 {
		return nil, warnings, &ValidationError{Problems: problems}
	}
	return categories, warnings, nil
}

func validateSubtree(node *TopicNode, problems, warnings *[]string, strict bool) {
	if len(node.Children) == 0 {
		if !leafQuestionWorthy(node.Title) {
			msg := fmt.Sprintf("leaf %q quá chung chung, không sinh được câu hỏi", node.Title)
			if strict {
				*problems = append(*problems, msg)
			} else {
				*warnings = append(*warnings, msg)
			}
		}
		return
	}
	node.IsCategory = true
	checkSiblings(node.Children, node.Title, problems, warnings, strict)
	for _, child := range node.Children {
		validateSubtree(child, problems, warnings, strict)
	}
}

// normalizeLevel chuyển một mức của cây đề xuất thành []*TopicNode,
// bỏ trùng tuyệt đối và là phẳng các node vượt quá MaxTopicDepth
func normalizeLevel(proposals []TopicProposal, depth int, warnings *[]string) []*TopicNode {
	seen := make(map[string]struct{})
	nodes := make([]*TopicNode, 0, len(proposals))

	for _, p := range proposals {
		title := strings.TrimSpace(p.Title)
		if title == "" {
			continue
		}
		key := normalizeTitle(title)
		if _, ok := seen[key]; ok {
			*warnings = append(*warnings, fmt.Sprintf("bỏ chủ đề trùng %q", title))
			continue
		}
		seen[key] = struct{}{}

		node := &TopicNode{Title: title, Description: strings.TrimSpace(p.Description)}
		if depth < MaxTopicDepth {
			node.Children = normalizeLevel(p.Subtopics, depth+1, warnings)
		} else if len(p.Subtopics) > 0 {
			// Node mức 3 vẫn còn con: nâng toàn bộ leaf con lên làm anh em mức 3
			*warnings = append(*warnings, fmt.Sprintf("cây quá sâu tại %q, nâng các chủ đề con lên", title))
			nodes = append(nodes, node)
			for _, leaf := range collectLeaves(p.Subtopics) {
				lk := normalizeTitle(leaf.Title)
				if _, ok := seen[lk]; ok {
					continue
				}
				seen[lk] = struct{}{}
				nodes = append(nodes, &TopicNode{
					Title:       strings.TrimSpace(leaf.Title),
					Description: strings.TrimSpace(leaf.Description),
				})
			}
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func collectLeaves(proposals []TopicProposal) []TopicProposal {
	var leaves []TopicProposal
	for _, p := range proposals {
		if len(p.Subtopics) == 0 {
			if strings.TrimSpace(p.Title) != "" {
				leaves = append(leaves, p)
			}
			continue
		}
		leaves = append(leaves, collectLeaves(p.Subtopics)...)
	}
	return leaves
}

// checkSiblings báo lỗi khi hai anh em có tiêu đề gần giống nhau
// (trùng tuyệt đối đã bị loại từ trước)
func checkSiblings(nodes []*TopicNode, parent string, problems, warnings *[]string, strict bool) {
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			if titlesTooSimilar(nodes[i].Title, nodes[j].Title) {
				msg := fmt.Sprintf("hai chủ đề %q và %q dưới %q gần như trùng nhau", nodes[i].Title, nodes[j].Title, parent)
				if strict {
					*problems = append(*problems, msg)
				} else {
					*warnings = append(*warnings, msg)
				}
			}
		}
	}
}

func leafQuestionWorthy(title string) bool {
	key := normalizeTitle(title)
	if len([]rune(key)) < 3 {
		return false
	}
	_, generic := genericLeafTitles[key]
	return !generic
}

// normalizeTitle hạ chữ thường, chuyển về ASCII không dấu và bỏ ký tự
// không phải chữ/số
func normalizeTitle(s string) string {
	var b strings.Builder
	for _, r := range unidecode.Unidecode(strings.ToLower(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// titlesTooSimilar: trùng tiền tố dài hoặc tập từ giao nhau quá lớn
func titlesTooSimilar(a, b string) bool {
	na, nb := normalizeTitle(a), normalizeTitle(b)
	if na == nb {
		return true
	}

	wa, wb := strings.Fields(na), strings.Fields(nb)
	if len(wa) == 0 || len(wb) == 0 {
		return false
	}

	set := make(map[string]struct{}, len(wa))
	for _, w := range wa {
		set[w] = struct{}{}
	}
	common := 0
	for _, w := range wb {
		if _, ok := set[w]; ok {
			common++
		}
	}
	smaller := len(wa)
	if len(wb) < smaller {
		smaller = len(wb)
	}
	// Toàn bộ từ của tiêu đề ngắn nằm trong tiêu đề dài => coi như trùng
	return common == smaller && smaller >= 2
}

// ValidatePrerequisites phát hiện vòng phụ thuộc giữa các topic bằng Kahn.
// Tham chiếu tới topic không tồn tại được bỏ qua (tham chiếu mềm).
func ValidatePrerequisites(topics []models.Topic) error {
	present := make(map[uuid.UUID]bool, len(topics))
	for _, t := range topics {
		present[t.ID] = true
	}

	indegree := make(map[uuid.UUID]int, len(topics))
	dependents := make(map[uuid.UUID][]uuid.UUID)
	for _, t := range topics {
		indegree[t.ID] += 0
		for _, pre := range t.PrerequisiteIDs() {
			if !present[pre] {
				continue
			}
			indegree[t.ID]++
			dependents[pre] = append(dependents[pre], t.ID)
		}
	}

	queue := make([]uuid.UUID, 0, len(topics))
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if visited != len(topics) {
		return fmt.Errorf("phát hiện vòng phụ thuộc giữa các chủ đề")
	}
	return nil
}
