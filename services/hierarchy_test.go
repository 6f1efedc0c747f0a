package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htluong/smart-study-backend/models"
)

func leaf(title string) TopicProposal {
	return TopicProposal{Title: title, Description: "mô tả " + title}
}

func TestBuildHierarchyBasic(t *testing.T) {
	root := ProposalRoot{Categories: []TopicProposal{
		{Title: "Mạng máy tính", Subtopics: []TopicProposal{
			leaf("Mô hình OSI"),
			leaf("Giao thức TCP"),
		}},
	}}

	cats, warnings, err := BuildHierarchy(root, true)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, cats, 1)
	assert.True(t, cats[0].IsCategory)
	assert.Len(t, cats[0].Children, 2)
	assert.False(t, cats[0].Children[0].IsCategory)
}

func TestBuildHierarchyRejectsEmpty(t *testing.T) {
	_, _, err := BuildHierarchy(ProposalRoot{}, true)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestBuildHierarchyFlattensDeepTree(t *testing.T) {
	// Tầng 4 phải được nâng lên thành leaf tầng 3
	root := ProposalRoot{Categories: []TopicProposal{
		{Title: "Cơ sở dữ liệu", Subtopics: []TopicProposal{
			{Title: "SQL", Subtopics: []TopicProposal{
				{Title: "Truy vấn JOIN", Subtopics: []TopicProposal{
					leaf("INNER JOIN chi tiết"),
					leaf("OUTER JOIN chi tiết"),
				}},
			}},
		}},
	}}

	cats, warnings, err := BuildHierarchy(root, true)
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)

	sql := cats[0].Children[0]
	require.Len(t, sql.Children, 3) // "Truy vấn JOIN" + 2 leaf được nâng lên
	for _, child := range sql.Children {
		assert.Empty(t, child.Children)
	}
}

func TestBuildHierarchyDropsExactDuplicates(t *testing.T) {
	root := ProposalRoot{Categories: []TopicProposal{
		{Title: "Lập trình Go", Subtopics: []TopicProposal{
			leaf("Goroutine và Channel"),
			leaf("Goroutine và Channel"), // trùng tuyệt đối -> bỏ im lặng
			leaf("Interface trong Go"),
		}},
	}}

	cats, warnings, err := BuildHierarchy(root, true)
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
	assert.Len(t, cats[0].Children, 2)
}

func TestBuildHierarchyNearDuplicateSiblings(t *testing.T) {
	root := ProposalRoot{Categories: []TopicProposal{
		{Title: "Hệ điều hành", Subtopics: []TopicProposal{
			leaf("Quản lý bộ nhớ"),
			leaf("Quản lý bộ nhớ ảo"), // gần trùng với leaf trên
		}},
	}}

	// strict: từ chối
	_, _, err := BuildHierarchy(root, true)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	// lenient: chấp nhận kèm warning
	cats, warnings, err := BuildHierarchy(root, false)
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
	assert.Len(t, cats[0].Children, 2)
}

func TestBuildHierarchyGenericLeaf(t *testing.T) {
	root := ProposalRoot{Categories: []TopicProposal{
		{Title: "Kinh tế vi mô", Subtopics: []TopicProposal{
			leaf("Giới thiệu"), // quá chung chung
			leaf("Cung cầu và giá cân bằng"),
		}},
	}}

	_, _, err := BuildHierarchy(root, true)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, warnings, err := BuildHierarchy(root, false)
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
}

func TestNormalizeTitleStripsVietnameseTones(t *testing.T) {
	// Nguyên âm mang cả dấu mũ/móc lẫn thanh điệu phải về ASCII trơn
	cases := map[string]string{
		"Giới thiệu":           "gioi thieu",
		"Tổng quan":            "tong quan",
		"Kết luận":             "ket luan",
		"Phương pháp đo lường": "phuong phap do luong",
		"Đặc điểm nổi bật":     "dac diem noi bat",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeTitle(in), in)
	}
}

func TestBuildHierarchyNearDuplicateTonedTitles(t *testing.T) {
	root := ProposalRoot{Categories: []TopicProposal{
		{Title: "Nghiên cứu khoa học", Subtopics: []TopicProposal{
			leaf("Phương pháp đo lường"),
			leaf("Các phương pháp đo lường"), // chứa trọn tiêu đề trên
			leaf("Thiết kế thí nghiệm"),
		}},
	}}

	_, _, err := BuildHierarchy(root, true)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestValidatePrerequisitesDetectsCycle(t *testing.T) {
	a := models.Topic{ID: uuid.New()}
	b := models.Topic{ID: uuid.New()}
	c := models.Topic{ID: uuid.New()}

	require.NoError(t, a.SetPrerequisiteIDs([]uuid.UUID{c.ID}))
	require.NoError(t, b.SetPrerequisiteIDs([]uuid.UUID{a.ID}))
	require.NoError(t, c.SetPrerequisiteIDs([]uuid.UUID{b.ID}))

	err := ValidatePrerequisites([]models.Topic{a, b, c})
	require.Error(t, err)
}

func TestValidatePrerequisitesChainAndSoftRefs(t *testing.T) {
	a := models.Topic{ID: uuid.New()}
	b := models.Topic{ID: uuid.New()}
	require.NoError(t, b.SetPrerequisiteIDs([]uuid.UUID{a.ID, uuid.New()})) // ref lạ bị bỏ qua

	require.NoError(t, ValidatePrerequisites([]models.Topic{a, b}))
}
