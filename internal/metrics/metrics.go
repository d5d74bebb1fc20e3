package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 文档摄取指标
var (
	// DocumentsProcessedTotal 文档处理总数
	DocumentsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowbase_documents_processed_total",
			Help: "文档摄取任务总数",
		},
		[]string{"status"},
	)

	// IngestDuration 单文档摄取耗时（秒）
	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "knowbase_ingest_duration_seconds",
			Help:    "文档摄取耗时分布",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"collection"},
	)

	// ChunksStoredTotal 写入向量存储的分块总数
	ChunksStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowbase_chunks_stored_total",
			Help: "写入向量存储的分块总数",
		},
		[]string{"collection"},
	)
)

// 检索指标
var (
	// SearchesTotal 检索请求总数
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowbase_searches_total",
			Help: "向量检索请求总数",
		},
		[]string{"collection", "status"},
	)

	// SearchDuration 检索耗时（秒）
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "knowbase_search_duration_seconds",
			Help:    "向量检索耗时分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)
)
