package loader

import (
	"fmt"
	"strings"

	"github.com/dslipak/pdf"
)

// PDFExtractor PDF 抽取器, 每页一个片段
type PDFExtractor struct{}

// NewPDFExtractor 创建 PDF 抽取器
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract 逐页抽取 PDF 文本
func (e *PDFExtractor) Extract(path string) ([]Section, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开 PDF 失败: %w", err)
	}

	numPages := r.NumPage()
	sections := make([]Section, 0, numPages)

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// 跳过无法解析的页面, 继续处理其余页
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		sections = append(sections, Section{
			Content:  text,
			Metadata: map[string]any{"page": i, "total_pages": numPages},
		})
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("PDF 内容为空或无法解析文本: %s", path)
	}

	return sections, nil
}

// SupportedExtensions 支持的扩展名
func (e *PDFExtractor) SupportedExtensions() []string {
	return []string{".pdf"}
}
