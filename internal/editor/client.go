package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Corphon/SceneScribe/internal/models"
)

// ClientError 服务端返回的非 2xx 响应
type ClientError struct {
	Status  int
	Code    string
	Message string
}

func (e *ClientError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("scribe api %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("scribe api %d: %s", e.Status, e.Message)
}

// AIClient 调用 SceneScribe HTTP 接口的客户端
type AIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAIClient 创建客户端；token 为空时不带认证头
func NewAIClient(baseURL, token string) *AIClient {
	return &AIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// WithHTTPClient 替换底层 http.Client
func (c *AIClient) WithHTTPClient(hc *http.Client) *AIClient {
	c.http = hc
	return c
}

// Transform 实现 Transformer
func (c *AIClient) Transform(ctx context.Context, req models.TransformationRequest) (string, error) {
	var resp models.TransformationResponse
	if err := c.do(ctx, http.MethodPost, "/api/ai/transform", req, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &ClientError{Status: http.StatusOK, Message: "transform reported failure"}
	}
	return resp.TransformedText, nil
}

// Generate 实现 ContentGenerator
func (c *AIClient) Generate(ctx context.Context, req models.GenerationRequest) (string, error) {
	var resp models.GenerationResponse
	if err := c.do(ctx, http.MethodPost, "/api/ai/generate", req, &resp); err != nil {
		return "", err
	}
	return resp.GeneratedContent, nil
}

// Ingest 同步摄取一条笔记
func (c *AIClient) Ingest(ctx context.Context, req models.IngestRequest) (*models.IngestResult, error) {
	var resp models.IngestResult
	if err := c.do(ctx, http.MethodPost, "/api/notes/ingest", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChapterContext 读取服务端为章节组装的上下文文本
func (c *AIClient) ChapterContext(ctx context.Context, chapterID string) (string, error) {
	var resp struct {
		Data struct {
			Context string `json:"context"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chapters/"+url.PathEscape(chapterID)+"/context", nil, &resp); err != nil {
		return "", err
	}
	return resp.Data.Context, nil
}

func (c *AIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ce := &ClientError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var envelope struct {
			Error *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error != nil {
			ce.Code = envelope.Error.Code
			ce.Message = envelope.Error.Message
		}
		return ce
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
