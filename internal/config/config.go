package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"tempbox/backend/internal/chunk"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// MailboxConfig 定义邮箱引擎的核心业务配置
type MailboxConfig struct {
	Domain         string        // 邮箱域名，收件地址形如 <address>@<domain>
	DefaultTTL     time.Duration // 邮箱默认生存时间，默认 24h
	EmailRetention time.Duration // 邮件保留窗口，独立于邮箱 TTL，默认 24h
	SweepInterval  time.Duration // 清理任务执行间隔，默认 1h
	ChunkSize      int           // 附件分块阈值与块大小（base64 字符数）
	MaxPerIP       int           // 单个 IP 地址可创建的邮箱数量上限
}

// SMTPConfig 定义 SMTP 邮件接收服务器的配置
type SMTPConfig struct {
	BindAddr        string // SMTP 服务监听地址，格式 "host:port"，默认 ":25"
	Domain          string // SMTP 服务器域名，用于 HELO/EHLO 响应
	MaxMessageBytes int64  // 单封邮件大小上限（字节），默认 10MB
	MaxConns        int    // 最大并发连接数
	MaxConnRate     int    // 每秒最大新建连接数
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到控制台
}

// DatabaseConfig 定义数据库连接配置（支持 PostgreSQL 和 MySQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "postgres" 或 "mysql"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 配置，用于创建邮箱的 IP 限流计数。
// Address 留空时禁用 Redis，限流退化为不限制。
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置。
// 配置一律在启动时加载后显式传入各构造函数，不允许模块级缓存。
type Config struct {
	Server   ServerConfig
	Mailbox  MailboxConfig
	SMTP     SMTPConfig
	CORS     CORSConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: TEMPBOX_
// 例如: TEMPBOX_SERVER_PORT, TEMPBOX_DATABASE_DSN
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，.env 是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("tempbox")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("mailbox.domain", "temp.box")
	viper.SetDefault("mailbox.default_ttl", "24h")
	viper.SetDefault("mailbox.email_retention", "24h")
	viper.SetDefault("mailbox.sweep_interval", "1h")
	viper.SetDefault("mailbox.chunk_size", chunk.DefaultChunkSize)
	viper.SetDefault("mailbox.max_per_ip", 5)
	viper.SetDefault("smtp.bind_addr", ":25")
	viper.SetDefault("smtp.domain", "temp.box")
	viper.SetDefault("smtp.max_message_bytes", 10*1024*1024)
	viper.SetDefault("smtp.max_conns", 100)
	viper.SetDefault("smtp.max_conn_rate", 20)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.address", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	defaultTTL, err := time.ParseDuration(viper.GetString("mailbox.default_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid mailbox.default_ttl: %w", err)
	}

	retention, err := time.ParseDuration(viper.GetString("mailbox.email_retention"))
	if err != nil {
		return nil, fmt.Errorf("invalid mailbox.email_retention: %w", err)
	}

	sweepInterval, err := time.ParseDuration(viper.GetString("mailbox.sweep_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid mailbox.sweep_interval: %w", err)
	}

	mailDomain := strings.ToLower(strings.TrimSpace(viper.GetString("mailbox.domain")))
	if mailDomain == "" {
		return nil, fmt.Errorf("mailbox.domain must not be empty")
	}

	chunkSize := viper.GetInt("mailbox.chunk_size")
	if chunkSize <= 0 {
		chunkSize = chunk.DefaultChunkSize
	}

	maxPerIP := viper.GetInt("mailbox.max_per_ip")
	if maxPerIP <= 0 {
		maxPerIP = 5
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Mailbox: MailboxConfig{
			Domain:         mailDomain,
			DefaultTTL:     defaultTTL,
			EmailRetention: retention,
			SweepInterval:  sweepInterval,
			ChunkSize:      chunkSize,
			MaxPerIP:       maxPerIP,
		},
		SMTP: SMTPConfig{
			BindAddr:        viper.GetString("smtp.bind_addr"),
			Domain:          viper.GetString("smtp.domain"),
			MaxMessageBytes: viper.GetInt64("smtp.max_message_bytes"),
			MaxConns:        viper.GetInt("smtp.max_conns"),
			MaxConnRate:     viper.GetInt("smtp.max_conn_rate"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
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

// loadEnvFile 尝试加载当前目录或父目录的 .env 文件。
// 已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
