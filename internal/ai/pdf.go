package ai

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrEmptyPDF PDF 中没有可提取的文本（扫描件等）
var ErrEmptyPDF = errors.New("PDF 中没有可识别的文本")

// ExtractPDFText 按页顺序提取 PDF 纯文本
func ExtractPDFText(data []byte) (text string, err error) {
	// 畸形文件会让解析器 panic
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("解析 PDF 失败: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("打开 PDF 失败: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("提取 PDF 文本失败: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("读取 PDF 文本失败: %w", err)
	}

	text = strings.TrimSpace(string(bytes.ToValidUTF8(raw, nil)))
	if text == "" {
		return "", ErrEmptyPDF
	}
	return text, nil
}
