package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured 未配置 API Key
var ErrNotConfigured = errors.New("AI API 未配置")

// LLMConfig OpenAI 兼容接口配置（DeepSeek / OpenAI / 本地网关）
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
}

// ChatOptions 单次请求参数
type ChatOptions struct {
	Temperature float32
	MaxTokens   int
	// JSON 要求模型输出 JSON 对象
	JSON bool
}

// ChatCompleter 分析器依赖的最小聊天接口
type ChatCompleter interface {
	ChatWithOptions(ctx context.Context, messages []openai.ChatCompletionMessage, opts ChatOptions) (string, error)
	IsConfigured() bool
}

// LLMClient 基于 go-openai 的客户端
type LLMClient struct {
	client         *openai.Client
	apiKey         string
	model          string
	embeddingModel string
}

// NewLLMClient 创建客户端
func NewLLMClient(cfg *LLMConfig) *LLMClient {
	if cfg == nil {
		cfg = &LLMConfig{}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.deepseek.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "deepseek-chat"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	conf := openai.DefaultConfig(cfg.APIKey)
	conf.BaseURL = baseURL
	conf.HTTPClient = &http.Client{Timeout: timeout}

	return &LLMClient{
		client:         openai.NewClientWithConfig(conf),
		apiKey:         cfg.APIKey,
		model:          model,
		embeddingModel: cfg.EmbeddingModel,
	}
}

// IsConfigured 检查是否已配置
func (c *LLMClient) IsConfigured() bool {
	return c != nil && c.apiKey != ""
}

// Model 当前聊天模型
func (c *LLMClient) Model() string {
	return c.model
}

// Chat 默认参数的聊天请求
func (c *LLMClient) Chat(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	return c.ChatWithOptions(ctx, messages, ChatOptions{Temperature: 0.3, MaxTokens: 2000})
}

// ChatWithOptions 带参数的聊天请求，不做重试
func (c *LLMClient) ChatWithOptions(ctx context.Context, messages []openai.ChatCompletionMessage, opts ChatOptions) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			slog.Error("LLM API 错误", "status", apiErr.HTTPStatusCode, "message", apiErr.Message)
		}
		return "", fmt.Errorf("LLM 请求失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("无响应内容")
	}

	slog.Debug("LLM API 调用成功",
		"tokens", resp.Usage.TotalTokens,
		"model", c.model,
		"elapsed", time.Since(start),
	)

	return resp.Choices[0].Message.Content, nil
}

// CanEmbed 是否配置了嵌入模型
func (c *LLMClient) CanEmbed() bool {
	return c.IsConfigured() && c.embeddingModel != ""
}

// Embed 批量生成向量
func (c *LLMClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !c.CanEmbed() {
		return nil, ErrNotConfigured
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("生成嵌入失败: %w", err)
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	return out, nil
}
