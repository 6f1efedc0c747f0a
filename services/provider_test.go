package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validProposalJSON = `{"categories":[{"title":"Chương 1","description":"Nền tảng","subtopics":[{"title":"Khái niệm cơ bản"}]}]}`

// scriptedBackend trả lần lượt các phản hồi đã định sẵn
type scriptedBackend struct {
	name      string
	responses []string
	errs      []error
	calls     int
}

func (b *scriptedBackend) Name() string { return b.name }

func (b *scriptedBackend) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	i := b.calls
	b.calls++
	if i >= len(b.responses) {
		return "", fmt.Errorf("backend %s hết phản hồi", b.name)
	}
	if b.errs != nil && b.errs[i] != nil {
		return "", b.errs[i]
	}
	return b.responses[i], nil
}

func TestRepairJSON(t *testing.T) {
	cases := []struct{ in, want string }{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`Đây là kết quả: {"a":1} mong bạn hài lòng`, `{"a":1}`},
		{`{"a":{"b":2}}`, `{"a":{"b":2}}`},
		{"không có JSON nào", "không có JSON nào"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, RepairJSON(c.in))
	}
}

func TestGenerateUsesFastBackendForFirstBatch(t *testing.T) {
	fast := &scriptedBackend{name: "fast", responses: []string{validProposalJSON}}
	bulk := &scriptedBackend{name: "bulk", responses: []string{validProposalJSON}}
	adapter := &ProviderAdapter{Fast: fast, Bulk: bulk}

	out, err := adapter.Generate(context.Background(), "prompt", true, SchemaProposal)
	require.NoError(t, err)
	assert.JSONEq(t, validProposalJSON, out)
	assert.Equal(t, 1, fast.calls)
	assert.Zero(t, bulk.calls)
}

func TestGenerateUsesBulkBackendForLaterBatches(t *testing.T) {
	fast := &scriptedBackend{name: "fast", responses: []string{validProposalJSON}}
	bulk := &scriptedBackend{name: "bulk", responses: []string{validProposalJSON}}
	adapter := &ProviderAdapter{Fast: fast, Bulk: bulk}

	_, err := adapter.Generate(context.Background(), "prompt", false, SchemaProposal)
	require.NoError(t, err)
	assert.Zero(t, fast.calls)
	assert.Equal(t, 1, bulk.calls)
}

func TestGenerateRetriesThenFailsOver(t *testing.T) {
	// Backend chính lỗi 2 lượt liên tiếp -> chuyển backend kia
	fast := &scriptedBackend{
		name:      "fast",
		responses: []string{"", ""},
		errs:      []error{errors.New("timeout"), errors.New("timeout")},
	}
	bulk := &scriptedBackend{name: "bulk", responses: []string{validProposalJSON}}
	adapter := &ProviderAdapter{Fast: fast, Bulk: bulk}

	out, err := adapter.Generate(context.Background(), "prompt", true, SchemaProposal)
	require.NoError(t, err)
	assert.JSONEq(t, validProposalJSON, out)
	assert.Equal(t, 2, fast.calls)
	assert.Equal(t, 1, bulk.calls)
}

func TestGenerateInvalidSchemaCountsAsFailure(t *testing.T) {
	// JSON hợp lệ nhưng sai cấu trúc (categories rỗng) vẫn phải thử lại
	fast := &scriptedBackend{
		name:      "fast",
		responses: []string{`{"categories":[]}`, validProposalJSON},
	}
	bulk := &scriptedBackend{name: "bulk"}
	adapter := &ProviderAdapter{Fast: fast, Bulk: bulk}

	out, err := adapter.Generate(context.Background(), "prompt", true, SchemaProposal)
	require.NoError(t, err)
	assert.JSONEq(t, validProposalJSON, out)
	assert.Equal(t, 2, fast.calls)
	assert.Zero(t, bulk.calls)
}

func TestGenerateAllBackendsFail(t *testing.T) {
	fast := &scriptedBackend{name: "fast"}
	bulk := &scriptedBackend{name: "bulk"}
	adapter := &ProviderAdapter{Fast: fast, Bulk: bulk}

	_, err := adapter.Generate(context.Background(), "prompt", true, SchemaProposal)
	require.Error(t, err)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.ElementsMatch(t, []string{"fast", "bulk"}, genErr.Backends)
	assert.Equal(t, 2, fast.calls)
	assert.Equal(t, 1, bulk.calls)
}

func TestGenerateSingleBackendNoDuplicateFailover(t *testing.T) {
	// Khi bulk trỏ về cùng backend với fast thì chỉ thử đúng 2 lượt
	fast := &scriptedBackend{name: "fast"}
	adapter := &ProviderAdapter{Fast: fast, Bulk: fast}

	_, err := adapter.Generate(context.Background(), "prompt", true, SchemaProposal)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, []string{"fast"}, genErr.Backends)
	assert.Equal(t, 2, fast.calls)
}

func TestGenerateRepairsFencedOutput(t *testing.T) {
	fast := &scriptedBackend{
		name:      "fast",
		responses: []string{"```json\n" + validProposalJSON + "\n```"},
	}
	adapter := &ProviderAdapter{Fast: fast, Bulk: fast}

	out, err := adapter.Generate(context.Background(), "prompt", true, SchemaProposal)
	require.NoError(t, err)
	assert.JSONEq(t, validProposalJSON, out)
}

func TestValidateJSONBatchSchema(t *testing.T) {
	valid := `{"subtopics":{"topic-x":{"questions":[{"question":"1+1?","options":["1","2","3","4"],"correctAnswer":1}],"flashcards":[{"front":"a","back":"b"}]}}}`
	require.NoError(t, ValidateJSON(SchemaBatch, valid))

	// Thiếu options thứ 4
	invalid := `{"subtopics":{"topic-x":{"questions":[{"question":"1+1?","options":["1","2","3"],"correctAnswer":1}]}}}`
	require.Error(t, ValidateJSON(SchemaBatch, invalid))

	// correctAnswer ngoài khoảng
	invalid = `{"subtopics":{"topic-x":{"questions":[{"question":"1+1?","options":["1","2","3","4"],"correctAnswer":4}]}}}`
	require.Error(t, ValidateJSON(SchemaBatch, invalid))
}
