package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client gọi sang model service gợi ý chủ đề học tiếp theo
// (service Python riêng, cấu hình qua MODEL_SERVICE_URL)

var recommenderHTTP = &http.Client{Timeout: 10 * time.Second}

func recommenderBaseURL() (string, error) {
	baseURL := os.Getenv("MODEL_SERVICE_URL")
	if baseURL == "" {
		return "", fmt.Errorf("MODEL_SERVICE_URL is not set")
	}
	return baseURL, nil
}

func RecommenderHealth(ctx context.Context) error {
	baseURL, err := recommenderBaseURL()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := recommenderHTTP.Do(req)
	if err != nil {
		return fmt.Errorf("model service không phản hồi: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model service trả status %d", resp.StatusCode)
	}
	return nil
}

type RecommendRequest struct {
	Subjects []string `json:"subjects"` // các môn người dùng đã học
	Limit    int      `json:"limit"`
}

// Recommend gửi lịch sử học sang model service, nhận về danh sách
// chủ đề gợi ý
func Recommend(ctx context.Context, reqBody RecommendRequest) (map[string]interface{}, error) {
	baseURL, err := recommenderBaseURL()
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/recommend", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := recommenderHTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("recommend failed (%d): %s", resp.StatusCode, string(bodyBytes))
	}

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %v", err)
	}
	return result, nil
}
