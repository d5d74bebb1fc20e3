package embedding

import (
	"context"
	"fmt"
)

// EmbeddingError 向量化服务调用失败 (超时/远端错误)。
// 这里不做重试, 重试策略由调用方决定。
type EmbeddingError struct {
	Provider string
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("向量化失败 (%s): %v", e.Provider, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Provider 抽象不同向量模型/服务的统一接口。
// EmbedBatch 保证返回与输入等长且顺序一致的向量列表。
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension 返回向量维度。未知模型通过嵌入一段样例文本探测。
	Dimension(ctx context.Context) (int, error)

	Model() string
	ProviderName() string
}
