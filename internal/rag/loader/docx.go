package loader

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// DocxExtractor Word 文档抽取器 (.docx / .doc)。
// .docx 本质是 ZIP 压缩包, 正文位于 word/document.xml。
type DocxExtractor struct{}

// NewDocxExtractor 创建 Word 抽取器
func NewDocxExtractor() *DocxExtractor {
	return &DocxExtractor{}
}

// Extract 抽取 Word 文档文本
func (e *DocxExtractor) Extract(path string) ([]Section, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("打开 DOCX 失败: %w", err)
	}
	defer zr.Close()

	var documentXML []byte
	for _, file := range zr.File {
		if file.Name == "word/document.xml" {
			rc, err := file.Open()
			if err != nil {
				return nil, fmt.Errorf("打开 document.xml 失败: %w", err)
			}
			documentXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("读取 document.xml 失败: %w", err)
			}
			break
		}
	}

	if documentXML == nil {
		return nil, fmt.Errorf("无效的 DOCX 文件: 找不到 document.xml")
	}

	text := extractDocxText(documentXML)
	if text == "" {
		return nil, fmt.Errorf("Word 文档内容为空: %s", path)
	}

	return []Section{{
		Content:  text,
		Metadata: map[string]any{"format": "docx"},
	}}, nil
}

// SupportedExtensions 支持的扩展名
func (e *DocxExtractor) SupportedExtensions() []string {
	return []string{".docx", ".doc"}
}

// extractDocxText 从 Word XML 中提取按段落分行的纯文本
func extractDocxText(xmlData []byte) string {
	type Text struct {
		Content string `xml:",chardata"`
	}
	type Run struct {
		Text []Text `xml:"t"`
	}
	type Paragraph struct {
		Runs []Run `xml:"r"`
	}
	type Body struct {
		Paragraphs []Paragraph `xml:"p"`
	}
	type Document struct {
		XMLName xml.Name `xml:"document"`
		Body    Body     `xml:"body"`
	}

	var doc Document
	if err := xml.Unmarshal(xmlData, &doc); err != nil {
		// 结构化解析失败时退回正则提取
		return extractDocxTextByRegex(xmlData)
	}

	var result strings.Builder
	for _, para := range doc.Body.Paragraphs {
		var paraText strings.Builder
		for _, run := range para.Runs {
			for _, t := range run.Text {
				paraText.WriteString(t.Content)
			}
		}
		text := strings.TrimSpace(paraText.String())
		if text != "" {
			if result.Len() > 0 {
				result.WriteString("\n")
			}
			result.WriteString(text)
		}
	}

	return result.String()
}

var docxTextRegex = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// extractDocxTextByRegex 备用方法: 直接正则提取 <w:t> 文本
func extractDocxTextByRegex(xmlData []byte) string {
	matches := docxTextRegex.FindAllStringSubmatch(string(xmlData), -1)

	var texts []string
	for _, m := range matches {
		if len(m) > 1 && m[1] != "" {
			texts = append(texts, m[1])
		}
	}

	return strings.TrimSpace(strings.Join(texts, " "))
}
