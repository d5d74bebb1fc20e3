package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Log         LogConfig         `mapstructure:"log"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	Splitter    SplitterConfig    `mapstructure:"splitter"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Storage     StorageConfig     `mapstructure:"storage"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 关系库配置 (Document / DocumentSettings 元数据)
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	Path            string `mapstructure:"path"` // sqlite 文件路径
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// RedisConfig Redis 配置 (任务队列 broker + 任务状态存储)
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// EmbeddingConfig 向量化服务配置
type EmbeddingConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"` // 兼容 OpenAI 协议的自建服务
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// VectorStoreConfig 向量存储配置
type VectorStoreConfig struct {
	Type     string         `mapstructure:"type"` // milvus, pgvector
	Milvus   MilvusConfig   `mapstructure:"milvus"`
	PGVector PGVectorConfig `mapstructure:"pgvector"`
}

// MilvusConfig Milvus REST 接口配置
type MilvusConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	Token          string `mapstructure:"token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	IndexType      string `mapstructure:"index_type"` // 默认 IVF_FLAT
	Metric         string `mapstructure:"metric"`     // 默认 L2
	NList          int    `mapstructure:"nlist"`      // 默认 1024
	NProbe         int    `mapstructure:"nprobe"`     // 默认 10
}

// PGVectorConfig pgvector 后端配置 (复用 database 连接)
type PGVectorConfig struct {
	Lists int `mapstructure:"lists"` // ivfflat 索引分区数, 默认 1024
}

// SplitterConfig 文档分块默认配置
type SplitterConfig struct {
	Mode         string  `mapstructure:"mode"`          // hierarchical, custom, auto
	MaxSize      int     `mapstructure:"max_size"`      // 字符数
	OverlapRatio float64 `mapstructure:"overlap_ratio"` // [0,1) 或 0-100 百分比
}

// WorkerConfig 任务执行配置
type WorkerConfig struct {
	Concurrency    int `mapstructure:"concurrency"`     // 并发 worker 数
	TimeoutMinutes int `mapstructure:"timeout_minutes"` // 单任务超时
	JobTTLHours    int `mapstructure:"job_ttl_hours"`   // 任务状态保留时间
}

// StorageConfig 上传文件根目录 (外部文件存储层解析出的落盘路径)
type StorageConfig struct {
	UploadDir string `mapstructure:"upload_dir"`
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称 (dev, prod, test)
// configPath: 配置文件路径 (可选)
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 读取环境变量 (优先级高于配置文件)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // APP_DATABASE_HOST

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	globalConfig = &cfg
	return &cfg, nil
}

// applyDefaults 填充未配置项的默认值
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Splitter.Mode == "" {
		cfg.Splitter.Mode = "auto"
	}
	if cfg.Splitter.MaxSize == 0 {
		cfg.Splitter.MaxSize = 1000
	}
	if cfg.Splitter.OverlapRatio == 0 {
		cfg.Splitter.OverlapRatio = 0.2
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 4
	}
	if cfg.Worker.TimeoutMinutes == 0 {
		cfg.Worker.TimeoutMinutes = 60
	}
	if cfg.Worker.JobTTLHours == 0 {
		cfg.Worker.JobTTLHours = 24
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "milvus"
	}
	if cfg.VectorStore.Milvus.IndexType == "" {
		cfg.VectorStore.Milvus.IndexType = "IVF_FLAT"
	}
	if cfg.VectorStore.Milvus.Metric == "" {
		cfg.VectorStore.Milvus.Metric = "L2"
	}
	if cfg.VectorStore.Milvus.NList == 0 {
		cfg.VectorStore.Milvus.NList = 1024
	}
	if cfg.VectorStore.Milvus.NProbe == 0 {
		cfg.VectorStore.Milvus.NProbe = 10
	}
	if cfg.VectorStore.PGVector.Lists == 0 {
		cfg.VectorStore.PGVector.Lists = 1024
	}
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
