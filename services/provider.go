package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// GenBackend là một model AI có thể sinh JSON từ prompt
type GenBackend interface {
	Name() string
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// GenerationError: cả backend chính lẫn backend dự phòng đều thất bại
type GenerationError struct {
	Backends []string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("sinh nội dung thất bại (đã thử %s): %v", strings.Join(e.Backends, ", "), e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ProviderAdapter điều phối hai backend:
// Fast (đắt, chất lượng cao) cho lượt sinh đầu tiên để người dùng
// bắt đầu học ngay; Bulk (rẻ) cho các lượt sinh thêm về sau.
type ProviderAdapter struct {
	Fast GenBackend
	Bulk GenBackend
}

var (
	adapterOnce    sync.Once
	defaultAdapter *ProviderAdapter
)

// DefaultAdapter đọc API key từ env, chọn backend theo cấu hình.
// FAST_PROVIDER=gemini để dùng Gemini thay Claude cho lượt đầu.
func DefaultAdapter() *ProviderAdapter {
	adapterOnce.Do(func() {
		var fast GenBackend
		if os.Getenv("FAST_PROVIDER") == "gemini" {
			fast = NewGeminiBackend()
		} else {
			fast = NewClaudeBackend()
		}
		bulk := GenBackend(NewDeepSeekBackend())
		if os.Getenv("DEEPSEEK_API_KEY") == "" {
			// Không có backend rẻ thì dùng luôn backend nhanh
			bulk = fast
		}
		defaultAdapter = &ProviderAdapter{Fast: fast, Bulk: bulk}
	})
	return defaultAdapter
}

func maxTokensFor(schemaName string) int {
	if schemaName == SchemaProposal {
		return 4096
	}
	return 8192
}

// Generate gọi backend phù hợp, sửa và kiểm tra JSON trả về.
// Thứ tự khi lỗi: thử lại backend đó 1 lần, chuyển backend kia 1 lần,
// sau đó trả *GenerationError. JSON sai cấu trúc cũng tính là lỗi.
func (p *ProviderAdapter) Generate(ctx context.Context, prompt string, firstBatch bool, schemaName string) (string, error) {
	primary, secondary := p.Bulk, p.Fast
	if firstBatch {
		primary, secondary = p.Fast, p.Bulk
	}

	maxTokens := maxTokensFor(schemaName)
	tried := []string{}
	var lastErr error

	attempt := func(backend GenBackend) (string, error) {
		raw, err := backend.Generate(ctx, prompt, maxTokens)
		if err != nil {
			return "", err
		}
		repaired := RepairJSON(raw)
		if err := ValidateJSON(schemaName, repaired); err != nil {
			return "", err
		}
		return repaired, nil
	}

	// backend chính: 2 lượt, backend phụ: 1 lượt
	plan := []GenBackend{primary, primary}
	if secondary != nil && secondary.Name() != primary.Name() {
		plan = append(plan, secondary)
	}

	for i, backend := range plan {
		if i > 0 {
			log.Printf("sinh nội dung lỗi trên %s, thử lại: %v", plan[i-1].Name(), lastErr)
		}
		out, err := attempt(backend)
		if err == nil {
			return out, nil
		}
		lastErr = err
		tried = append(tried, backend.Name())
	}

	return "", &GenerationError{Backends: dedupeStrings(tried), Err: lastErr}
}

// RepairJSON dọn output của model: bỏ rào ```json, cắt phần thừa
// trước '{' đầu tiên và sau '}' cuối cùng
func RepairJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
