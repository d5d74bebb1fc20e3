package embedding

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAI API 单次请求的输入上限
const maxBatchSize = 2048

// 维度探测用的样例文本
const probeText = "dimension probe"

// OpenAIProvider 基于 OpenAI 协议的向量化服务提供者。
// 通过 BaseURL 同样适配自建的兼容服务。
type OpenAIProvider struct {
	client *openai.Client
	model  string

	mu  sync.Mutex
	dim int // 已探测的维度, 0 表示未知
}

// OpenAIOptions 初始化配置
type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewOpenAIProvider 创建 OpenAI 向量化提供者
func NewOpenAIProvider(opts OpenAIOptions) *OpenAIProvider {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	model := opts.Model
	if model == "" {
		model = string(openai.SmallEmbedding3) // text-embedding-3-small
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Embed 将单条文本转换为向量
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, &EmbeddingError{Provider: p.ProviderName(), Err: fmt.Errorf("文本不能为空")}
	}

	vectors, err := p.embedRequest(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 批量向量化, 保持与输入相同的顺序和长度。
// 超过单次请求上限时分批发送。
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := p.embedRequest(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, vectors...)
	}

	return all, nil
}

// Dimension 返回向量维度。已知模型直接查表,
// 未知模型通过嵌入样例文本探测一次并缓存。
func (p *OpenAIProvider) Dimension(ctx context.Context) (int, error) {
	p.mu.Lock()
	if p.dim > 0 {
		dim := p.dim
		p.mu.Unlock()
		return dim, nil
	}
	p.mu.Unlock()

	if dim := knownDimension(p.model); dim > 0 {
		p.mu.Lock()
		p.dim = dim
		p.mu.Unlock()
		return dim, nil
	}

	vec, err := p.Embed(ctx, probeText)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	p.dim = len(vec)
	p.mu.Unlock()
	return len(vec), nil
}

// Model 获取当前使用的模型
func (p *OpenAIProvider) Model() string { return p.model }

// ProviderName 获取提供商名称
func (p *OpenAIProvider) ProviderName() string { return "openai" }

// embedRequest 发送一次 Embeddings 请求
func (p *OpenAIProvider) embedRequest(ctx context.Context, texts []string) ([][]float32, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, &EmbeddingError{Provider: p.ProviderName(), Err: err}
	}

	if len(resp.Data) != len(texts) {
		return nil, &EmbeddingError{
			Provider: p.ProviderName(),
			Err:      fmt.Errorf("返回向量数量不匹配: 期望 %d, 实际 %d", len(texts), len(resp.Data)),
		}
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vectors[i] = data.Embedding
	}
	return vectors, nil
}

// knownDimension 常见模型的维度表
func knownDimension(model string) int {
	switch model {
	case string(openai.LargeEmbedding3):
		return 3072
	case string(openai.SmallEmbedding3), string(openai.AdaEmbeddingV2):
		return 1536
	default:
		return 0
	}
}
