package splitter

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Chunk 一个有序分块。Index 从 0 开始, 在所属文档内唯一。
type Chunk struct {
	Content     string
	Index       int
	TokenCount  int            // 近似 token 数
	ContentHash string         // 内容 SHA256
	Metadata    map[string]any // 策略特有标签 (如标题路径)
}

// Splitter 分块策略接口。同一 (content, config) 必须产出相同序列。
type Splitter interface {
	Split(content string) ([]Chunk, error)
}

// New 按配置选择分块策略, 配置非法立即返回 ConfigValidationError
func New(cfg Config) (Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case ModeHierarchical:
		return &headerSplitter{}, nil
	case ModeCustom:
		return newRecursiveSplitter(cfg.MaxSize, cfg.OverlapChars(), cfg.Separators), nil
	default: // ModeAuto
		return newRecursiveSplitter(cfg.MaxSize, cfg.OverlapChars(), DefaultSeparators), nil
	}
}

// newChunk 构造带 token 估算与内容哈希的分块
func newChunk(content string, index int, metadata map[string]any) Chunk {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Chunk{
		Content:     content,
		Index:       index,
		TokenCount:  estimateTokenCount(content),
		ContentHash: hashContent(content),
		Metadata:    metadata,
	}
}

// estimateTokenCount 估算 Token 数量。
// 英文按单词数, 中文按字符数/1.5。
func estimateTokenCount(text string) int {
	wordCount := len(strings.Fields(text))

	chineseCount := 0
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FA5 {
			chineseCount++
		}
	}

	return wordCount + int(float64(chineseCount)/1.5)
}

// hashContent 计算内容哈希
func hashContent(content string) string {
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}
