package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrAccessDenied 页面需要登录或被拒绝访问（401/403/451）
	ErrAccessDenied = errors.New("页面拒绝访问")
	// ErrEmptyPage 页面没有可读文本
	ErrEmptyPage = errors.New("页面没有可读内容")
	// ErrUnsupportedContent 非 HTML/文本内容
	ErrUnsupportedContent = errors.New("不支持的页面类型")
)

const (
	defaultMaxPageBytes = 4 << 20
	defaultMaxPageRunes = 20000
	fetchUserAgent      = "Mozilla/5.0 (compatible; lifemap/1.0)"
)

// Page 抓取到的网页正文
type Page struct {
	URL         string
	Title       string
	Description string
	Text        string
}

// PageFetcher 抓取网页并抽取正文
type PageFetcher struct {
	client   *http.Client
	maxBytes int64
	maxRunes int
}

// NewPageFetcher 创建抓取器
func NewPageFetcher(timeout time.Duration) *PageFetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &PageFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: defaultMaxPageBytes,
		maxRunes: defaultMaxPageRunes,
	}
}

// Fetch 获取页面；不可达或拒绝访问时返回错误（不降级）
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求页面失败: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusUnavailableForLegalReasons:
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, resp.Status)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("页面返回异常状态: %s", resp.Status)
	}

	body := io.LimitReader(resp.Body, f.maxBytes)
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))

	page := &Page{URL: rawURL}
	switch {
	case contentType == "" || strings.Contains(contentType, "html"):
		doc, err := goquery.NewDocumentFromReader(body)
		if err != nil {
			return nil, fmt.Errorf("解析页面失败: %w", err)
		}
		page.Title, page.Description, page.Text = ExtractDocumentText(doc)
	case strings.HasPrefix(contentType, "text/"):
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("读取页面失败: %w", err)
		}
		page.Text = collapseSpaces(string(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}

	page.Text = truncateRunes(page.Text, f.maxRunes)
	if page.Text == "" {
		return nil, ErrEmptyPage
	}

	slog.Debug("页面抓取完成", "url", rawURL, "title", page.Title, "chars", utf8.RuneCountInString(page.Text))
	return page, nil
}

// ExtractHTMLText 从 HTML 字节中抽取正文
func ExtractHTMLText(r io.Reader) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", fmt.Errorf("解析 HTML 失败: %w", err)
	}
	title, _, text = ExtractDocumentText(doc)
	return title, text, nil
}

// ExtractDocumentText 去掉脚本、样式与导航后取可读文本
func ExtractDocumentText(doc *goquery.Document) (title, description, text string) {
	title = collapseSpaces(doc.Find("title").First().Text())
	if v, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		description = collapseSpaces(v)
	} else if v, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		description = collapseSpaces(v)
	}

	doc.Find("script, style, noscript, iframe, svg, nav, footer, form").Remove()

	root := doc.Find("main, article").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	var parts []string
	root.Find("h1, h2, h3, h4, p, li, td, dt, dd, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		if t := collapseSpaces(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		text = collapseSpaces(root.Text())
	} else {
		text = strings.Join(dedupeAdjacent(parts), "\n")
	}
	return title, description, text
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// dedupeAdjacent 嵌套元素（li 内的 p）会重复出现，去掉包含关系的相邻项
func dedupeAdjacent(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if n := len(out); n > 0 && strings.Contains(out[n-1], p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
