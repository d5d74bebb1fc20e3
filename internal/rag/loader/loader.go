package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound 源文件不存在
	ErrNotFound = errors.New("file not found")

	// ErrUnsupportedFormat 无法识别的文件扩展名
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Section 文档中的一个片段 (如 PDF 的一页)
type Section struct {
	Content  string
	Metadata map[string]any
}

// Document 抽取后的文档: 全文 + 合并后的元数据
type Document struct {
	Content  string
	Metadata map[string]any
}

// Extractor 按格式抽取文本的接口
type Extractor interface {
	// Extract 从文件中抽取片段列表
	Extract(path string) ([]Section, error)

	// SupportedExtensions 支持的扩展名 (如 ".pdf")
	SupportedExtensions() []string
}

// Loader 按扩展名分发到具体抽取器
type Loader struct {
	extractors map[string]Extractor
}

// New 创建带默认抽取器的 Loader
func New() *Loader {
	l := &Loader{extractors: make(map[string]Extractor)}

	l.Register(NewTextExtractor())
	l.Register(NewMarkdownExtractor())
	l.Register(NewPDFExtractor())
	l.Register(NewDocxExtractor())
	l.Register(NewHTMLExtractor())

	return l
}

// Register 注册抽取器, 同扩展名后注册者覆盖先注册者
func (l *Loader) Register(e Extractor) {
	for _, ext := range e.SupportedExtensions() {
		l.extractors[strings.ToLower(ext)] = e
	}
}

// Load 抽取文件全文与元数据。
// 多片段来源 (多页 PDF 等) 以空行拼接正文, 元数据按片段顺序合并,
// 后出现的键覆盖先出现的, 最后补充文件名/类型/大小。
func (l *Loader) Load(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("读取文件信息失败: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	extractor, ok := l.extractors[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	sections, err := extractor.Extract(path)
	if err != nil {
		return nil, err
	}

	parts := make([]string, 0, len(sections))
	merged := make(map[string]any)
	for _, sec := range sections {
		if strings.TrimSpace(sec.Content) != "" {
			parts = append(parts, sec.Content)
		}
		for k, v := range sec.Metadata {
			merged[k] = v
		}
	}

	merged["file_name"] = filepath.Base(path)
	merged["file_type"] = strings.TrimPrefix(ext, ".")
	merged["file_size"] = info.Size()

	return &Document{
		Content:  strings.Join(parts, "\n\n"),
		Metadata: merged,
	}, nil
}

// Supported 是否支持指定扩展名
func (l *Loader) Supported(ext string) bool {
	_, ok := l.extractors[strings.ToLower(ext)]
	return ok
}
