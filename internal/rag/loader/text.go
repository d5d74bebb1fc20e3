package loader

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// TextExtractor 纯文本抽取器
type TextExtractor struct{}

// NewTextExtractor 创建纯文本抽取器
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract 读取纯文本文件
func (e *TextExtractor) Extract(path string) ([]Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}

	if !utf8.Valid(data) {
		return nil, fmt.Errorf("无效的 UTF-8 编码: %s", path)
	}

	text := strings.TrimSpace(string(data))
	return []Section{{
		Content:  text,
		Metadata: map[string]any{},
	}}, nil
}

// SupportedExtensions 支持的扩展名
func (e *TextExtractor) SupportedExtensions() []string {
	return []string{".txt"}
}

// MarkdownExtractor Markdown 抽取器。
// 保留原始标记, 层级分块策略依赖标题行。
type MarkdownExtractor struct{}

// NewMarkdownExtractor 创建 Markdown 抽取器
func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{}
}

// Extract 读取 Markdown 文件并提取标题元数据
func (e *MarkdownExtractor) Extract(path string) ([]Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}

	text := strings.TrimSpace(string(data))

	meta := map[string]any{"format": "markdown"}
	if title := firstHeading(text); title != "" {
		meta["title"] = title
	}

	return []Section{{Content: text, Metadata: meta}}, nil
}

// SupportedExtensions 支持的扩展名
func (e *MarkdownExtractor) SupportedExtensions() []string {
	return []string{".md", ".markdown"}
}

// firstHeading 返回第一个一级标题
func firstHeading(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}
