package loader

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// HTMLExtractor HTML 抽取器, 去除标签保留正文
type HTMLExtractor struct{}

// NewHTMLExtractor 创建 HTML 抽取器
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

var (
	scriptRegex = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRegex  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	titleRegex  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	blockRegex  = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|section|article)>|<br\s*/?>`)
	tagRegex    = regexp.MustCompile(`<[^>]+>`)
)

// Extract 抽取 HTML 正文
func (e *HTMLExtractor) Extract(path string) ([]Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}

	html := string(data)

	meta := map[string]any{"format": "html"}
	if m := titleRegex.FindStringSubmatch(html); len(m) > 1 {
		if title := strings.TrimSpace(m[1]); title != "" {
			meta["title"] = title
		}
	}

	text := stripHTML(html)
	if text == "" {
		return nil, fmt.Errorf("HTML 内容为空: %s", path)
	}

	return []Section{{Content: text, Metadata: meta}}, nil
}

// SupportedExtensions 支持的扩展名
func (e *HTMLExtractor) SupportedExtensions() []string {
	return []string{".html", ".htm"}
}

// stripHTML 去除脚本/样式与标签, 块级标签结尾转换行
func stripHTML(html string) string {
	html = scriptRegex.ReplaceAllString(html, " ")
	html = styleRegex.ReplaceAllString(html, " ")
	html = blockRegex.ReplaceAllString(html, "\n")
	html = tagRegex.ReplaceAllString(html, " ")

	// HTML 实体的最小集合
	replacer := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
	html = replacer.Replace(html)

	// 逐行清理多余空白, 保留段落换行
	lines := strings.Split(html, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	return strings.Join(cleaned, "\n")
}
