package services

import (
	"regexp"
	"strings"
)

var (
	reTOC          = regexp.MustCompile(`(?im)^(.*mục lục.*|.*table of contents.*)$`)
	rePageNumber   = regexp.MustCompile(`(?im)^\s*(trang|page)[^\d\n]*\d+\s*$`)
	reSpecialLines = regexp.MustCompile(`(?m)^[\s\W\d]*$`)
	reMultiNewLine = regexp.MustCompile(`\n{2,}`)
)

// PreCleanText xử lý thô văn bản trích xuất từ pdf/docx trước khi đưa
// vào prompt: loại mục lục, số trang, dòng rác, khoảng trắng thừa
func PreCleanText(text string) string {
	cleaned := text

	// Xoá các dòng chứa "Mục lục" hoặc "Table of Contents"
	cleaned = reTOC.ReplaceAllString(cleaned, "")

	// Xoá các dòng chỉ là "Trang X" hoặc "Page X"
	cleaned = rePageNumber.ReplaceAllString(cleaned, "")

	// Xoá dòng chỉ có số, ký tự đặc biệt hoặc khoảng trắng
	cleaned = reSpecialLines.ReplaceAllString(cleaned, "")

	// Xoá nhiều dòng trống liên tiếp
	cleaned = reMultiNewLine.ReplaceAllString(cleaned, "\n")

	return strings.TrimSpace(cleaned)
}
