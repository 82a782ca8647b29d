package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"github.com/yuqie6/lifemap/internal/model"
)

var (
	// ErrNoExperiences 没有可分析的经历，不会发出请求
	ErrNoExperiences = errors.New("没有可分析的经历")
	// ErrUnsupportedFile 文件类型无法交给模型
	ErrUnsupportedFile = errors.New("不支持的文件类型")
)

// ChecklistPlaceholder 清单生成失败时的占位项
const ChecklistPlaceholder = "데이터를 불러오는 중 오류가 발생했습니다."

const maxInlineTextRunes = 20000

const systemPrompt = "당신은 한국 대학생의 커리어와 인생 설계를 돕는 전문 상담가이자 심리학자입니다. 항상 유효한 JSON만 출력합니다."

// InsightAnalyzer 远端洞察网关：分析、清单、经历提取
type InsightAnalyzer struct {
	chat    ChatCompleter
	fetcher *PageFetcher
}

// NewInsightAnalyzer 创建分析器
func NewInsightAnalyzer(chat ChatCompleter, fetcher *PageFetcher) *InsightAnalyzer {
	if fetcher == nil {
		fetcher = NewPageFetcher(0)
	}
	return &InsightAnalyzer{chat: chat, fetcher: fetcher}
}

// Analyze 生成自我洞察报告；空输入直接失败
func (a *InsightAnalyzer) Analyze(ctx context.Context, experiences []model.ExperienceBrief) (*model.AnalysisResult, error) {
	if len(experiences) == 0 {
		return nil, ErrNoExperiences
	}
	if !a.chat.IsConfigured() {
		return nil, ErrNotConfigured
	}

	payload, err := json.MarshalIndent(experiences, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("序列化经历失败: %w", err)
	}

	prompt := fmt.Sprintf(analyzePrompt, string(payload))
	response, err := a.chat.ChatWithOptions(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}, ChatOptions{Temperature: 0.7, MaxTokens: 4000, JSON: true})
	if err != nil {
		return nil, err
	}

	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(cleanJSONResponse(response)), &result); err != nil {
		slog.Warn("解析分析结果失败", "error", err, "response", truncateRunes(response, 500))
		return nil, fmt.Errorf("解析分析结果失败: %w", err)
	}
	result.Normalize()

	slog.Info("洞察分析完成",
		"experiences", len(experiences),
		"strengths", len(result.Strengths),
		"relationships", len(result.Relationships),
	)
	return &result, nil
}

// GenerateChecklist 为行动计划生成 5 项清单；任何失败返回占位项
func (a *InsightAnalyzer) GenerateChecklist(ctx context.Context, action string, related []string) []string {
	items, err := a.generateChecklist(ctx, action, related)
	if err != nil {
		slog.Warn("清单生成失败，返回占位项", "action", action, "error", err)
		return []string{ChecklistPlaceholder}
	}
	return items
}

func (a *InsightAnalyzer) generateChecklist(ctx context.Context, action string, titles []string) ([]string, error) {
	if !a.chat.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if titles == nil {
		titles = []string{}
	}
	payload, err := json.MarshalIndent(titles, "", "  ")
	if err != nil {
		return nil, err
	}

	response, err := a.chat.ChatWithOptions(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(checklistPrompt, action, string(payload))},
	}, ChatOptions{Temperature: 0.5, MaxTokens: 1000, JSON: true})
	if err != nil {
		return nil, err
	}

	items, err := decodeChecklist(response)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("清单为空")
	}
	return out, nil
}

// ExtractFromFile 从文件中提取经历
// 文本、HTML 与 PDF 文本直接内联，图片以 data URL 发送，其余类型不支持
func (a *InsightAnalyzer) ExtractFromFile(ctx context.Context, data []byte, mimeType string) ([]model.ExtractedExperience, error) {
	if !a.chat.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("文件为空")
	}

	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	var user openai.ChatCompletionMessage
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		user = openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: fileExtractPrompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
					Detail: openai.ImageURLDetailAuto,
				}},
			},
		}
	case mimeType == "application/pdf":
		text, err := ExtractPDFText(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedFile, err)
		}
		user = textExtractMessage(fileExtractPrompt, text)
	case strings.Contains(mimeType, "html"):
		title, text, err := ExtractHTMLText(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		user = textExtractMessage(fileExtractPrompt, "제목: "+title+"\n\n"+text)
	case isTextual(mimeType):
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%w: 非 UTF-8 文本", ErrUnsupportedFile)
		}
		user = textExtractMessage(fileExtractPrompt, string(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, mimeType)
	}

	return a.extract(ctx, user)
}

// ExtractFromURL 抓取网页后提取经历；页面不可达或拒绝访问时失败
func (a *InsightAnalyzer) ExtractFromURL(ctx context.Context, rawURL string) ([]model.ExtractedExperience, error) {
	if !a.chat.IsConfigured() {
		return nil, ErrNotConfigured
	}
	page, err := a.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", page.URL)
	if page.Title != "" {
		fmt.Fprintf(&b, "제목: %s\n", page.Title)
	}
	if page.Description != "" {
		fmt.Fprintf(&b, "설명: %s\n", page.Description)
	}
	b.WriteString("\n")
	b.WriteString(page.Text)

	return a.extract(ctx, textExtractMessage(urlExtractPrompt, b.String()))
}

func (a *InsightAnalyzer) extract(ctx context.Context, user openai.ChatCompletionMessage) ([]model.ExtractedExperience, error) {
	response, err := a.chat.ChatWithOptions(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		user,
	}, ChatOptions{Temperature: 0.2, MaxTokens: 4000, JSON: true})
	if err != nil {
		return nil, err
	}

	items, err := decodeExtracted(response)
	if err != nil {
		slog.Warn("解析提取结果失败", "error", err, "response", truncateRunes(response, 500))
		return nil, err
	}

	out := make([]model.ExtractedExperience, 0, len(items))
	for _, it := range items {
		if it.isEmpty() {
			continue
		}
		out = append(out, model.ExtractedExperience{
			Title:       string(it.Title),
			StartDate:   string(it.StartDate),
			EndDate:     string(it.EndDate),
			Description: string(it.Description),
			Category:    string(it.Category),
		})
	}
	slog.Info("经历提取完成", "count", len(out))
	return out, nil
}

func textExtractMessage(prompt, content string) openai.ChatCompletionMessage {
	content = truncateRunes(content, maxInlineTextRunes)
	return openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt + "\n\n---\n" + content,
	}
}

func isTextual(mimeType string) bool {
	switch {
	case strings.HasPrefix(mimeType, "text/"):
		return true
	case mimeType == "application/json", mimeType == "application/xml",
		mimeType == "application/x-yaml", mimeType == "application/yaml":
		return true
	}
	return false
}
