package services

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/ledongthuc/pdf"
)

func ExtractTextFromPDF(file multipart.File) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		return "", fmt.Errorf("lỗi đọc file PDF: %w", err)
	}
	return ExtractTextFromPDFBytes(buf.Bytes())
}

func ExtractTextFromPDFBytes(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("không thể tạo reader PDF: %w", err)
	}

	var textBuilder bytes.Buffer
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		textBuilder.WriteString(content)
	}

	return textBuilder.String(), nil
}

func ExtractTextFromDOCX(fileHeader *multipart.FileHeader) (string, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, src); err != nil {
		return "", err
	}
	return ExtractTextFromDOCXBytes(buf.Bytes())
}

func ExtractTextFromDOCXBytes(data []byte) (string, error) {
	// .docx là file zip!
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	// Tìm file document.xml
	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("file docx không chứa word/document.xml")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	// Đọc XML & trích xuất <w:t> tag (văn bản)
	var buf bytes.Buffer
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "t" { // <w:t>
				var text string
				if err := decoder.DecodeElement(&text, &se); err == nil {
					buf.WriteString(text + " ")
				}
			}
		}
	}

	return strings.TrimSpace(buf.String()), nil
}

func ExtractTextFromTXT(fileHeader *multipart.FileHeader) (string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(file)
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}

// DetectAndExtract nhận nội dung client gửi lên (text thuần hoặc base64 của
// file pdf/docx) và trả về (văn bản, loại file).
// Client web gửi file dưới dạng base64 khi không dùng multipart.
func DetectAndExtract(content string) (string, string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", "", fmt.Errorf("nội dung rỗng")
	}

	if data, ok := decodeBase64(trimmed); ok {
		switch {
		case bytes.HasPrefix(data, []byte("%PDF")):
			text, err := ExtractTextFromPDFBytes(data)
			if err != nil {
				return "", "", fmt.Errorf("không trích xuất được PDF: %w", err)
			}
			return PreCleanText(text), "pdf", nil
		case bytes.HasPrefix(data, []byte("PK")):
			// docx là zip, bắt đầu bằng "PK"
			text, err := ExtractTextFromDOCXBytes(data)
			if err != nil {
				return "", "", fmt.Errorf("không trích xuất được DOCX: %w", err)
			}
			return PreCleanText(text), "docx", nil
		}
	}

	return trimmed, "text", nil
}

// decodeBase64 thử giải mã; chuỗi ngắn hoặc có khoảng trắng coi là text thường
func decodeBase64(s string) ([]byte, bool) {
	if len(s) < 100 || strings.ContainsAny(s[:100], " \n\t") {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return data, true
}
