package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到 stdout
}

// SupabaseConfig 定义 Supabase 上游配置（财务数据与认证代理）
type SupabaseConfig struct {
	URL        string // 项目地址，如 https://xyz.supabase.co；留空禁用代理
	AnonKey    string // anon key，随请求以 apikey 头转发
	ServiceKey string // service role key，服务端直查时使用（可选）
}

// N8NConfig 定义 n8n 自动化 webhook 上游配置
type N8NConfig struct {
	PublishDraftURL string // 发布草稿工作流
	ModifyImageURL  string // 修改图片工作流
	UpscaleImageURL string // 图片放大工作流
	BearerToken     string // 调用上游时携带的 bearer token
}

// DatabaseConfig 定义 PostgreSQL 连接配置
type DatabaseConfig struct {
	DSN             string        // 连接字符串；留空使用内存存储
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RateLimitConfig 定义写接口的限流配置
type RateLimitConfig struct {
	RPS   float64 // 每客户端 IP 每秒允许的请求数
	Burst int     // 突发容量
}

// CacheConfig 定义财务代理的本地缓存配置
type CacheConfig struct {
	TTL     time.Duration // 缓存有效期
	MaxSize int           // 最大条目数
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Log       LogConfig
	Supabase  SupabaseConfig
	N8N       N8NConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: OPSDASH_
// 例如: OPSDASH_SERVER_PORT, OPSDASH_SUPABASE_URL
func Load() (*Config, error) {
	loadEnvFile()

	viper.SetEnvPrefix("opsdash")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("supabase.url", "")
	viper.SetDefault("supabase.anon_key", "")
	viper.SetDefault("supabase.service_key", "")
	viper.SetDefault("n8n.publish_draft_url", "")
	viper.SetDefault("n8n.modify_image_url", "")
	viper.SetDefault("n8n.upscale_image_url", "")
	viper.SetDefault("n8n.bearer_token", "")
	viper.SetDefault("database.dsn", "") // 默认为空，使用内存存储
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("ratelimit.rps", 10.0)
	viper.SetDefault("ratelimit.burst", 20)
	viper.SetDefault("cache.ttl", "30s")
	viper.SetDefault("cache.max_size", 128)

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	cacheTTL, err := time.ParseDuration(viper.GetString("cache.ttl"))
	if err != nil {
		cacheTTL = 30 * time.Second
	}

	supabaseURL := strings.TrimRight(viper.GetString("supabase.url"), "/")
	if supabaseURL != "" {
		if _, err := url.Parse(supabaseURL); err != nil {
			return nil, fmt.Errorf("invalid supabase.url: %w", err)
		}
	}

	rps := viper.GetFloat64("ratelimit.rps")
	if rps <= 0 {
		rps = 10.0
	}
	burst := viper.GetInt("ratelimit.burst")
	if burst <= 0 {
		burst = 20
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
		Supabase: SupabaseConfig{
			URL:        supabaseURL,
			AnonKey:    viper.GetString("supabase.anon_key"),
			ServiceKey: viper.GetString("supabase.service_key"),
		},
		N8N: N8NConfig{
			PublishDraftURL: viper.GetString("n8n.publish_draft_url"),
			ModifyImageURL:  viper.GetString("n8n.modify_image_url"),
			UpscaleImageURL: viper.GetString("n8n.upscale_image_url"),
			BearerToken:     viper.GetString("n8n.bearer_token"),
		},
		Database: DatabaseConfig{
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		RateLimit: RateLimitConfig{
			RPS:   rps,
			Burst: burst,
		},
		Cache: CacheConfig{
			TTL:     cacheTTL,
			MaxSize: viper.GetInt("cache.max_size"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 文件不存在时静默失败（.env 是可选的），已存在的环境变量优先。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
