package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`     // 服务器配置
	Database   DatabaseConfig   `mapstructure:"database"`   // PostgreSQL配置
	Aggregator AggregatorConfig `mapstructure:"aggregator"` // 聚合方接口配置
	Redis      RedisConfig      `mapstructure:"redis"`      // 同步互斥锁
	Kafka      KafkaConfig      `mapstructure:"kafka"`      // 结算事件推送
	Reconcile  ReconcileConfig  `mapstructure:"reconcile"`  // 盈亏重算
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN（URL形式）
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
}

// AggregatorConfig 聚合方配置
type AggregatorConfig struct {
	Name       string `mapstructure:"name"`        // 数据来源标识，落库为 bet_source
	BaseURL    string `mapstructure:"base_url"`    // API基础地址
	Timeout    int    `mapstructure:"timeout"`     // 请求超时（秒）
	RetryCount int    `mapstructure:"retry_count"` // 重试次数
	AuthToken  string `mapstructure:"auth_token"`  // 认证Token
	Proxy      string `mapstructure:"proxy"`       // 代理地址
}

// RedisConfig 为空地址时使用进程内锁
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`   // 同步锁过期时间，防止进程崩溃后死锁
	KeyPrefix string        `mapstructure:"key_prefix"` // 锁 key 前缀
}

// KafkaConfig brokers 为空时不推送
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// ReconcileConfig 重算分页参数
type ReconcileConfig struct {
	BatchSize      int `mapstructure:"batch_size"`      // 每批处理的串关组数
	ValidateSample int `mapstructure:"validate_sample"` // validate 抽样组数
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）
	return LoadConfigFrom("./config")
}

// LoadConfigFrom 从指定目录读取 config.yaml
func LoadConfigFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("aggregator.name", "aggregator")
	v.SetDefault("aggregator.timeout", 15)
	v.SetDefault("aggregator.retry_count", 2)
	v.SetDefault("redis.lock_ttl", 5*time.Minute)
	v.SetDefault("redis.key_prefix", "betsync:sync_lock")
	v.SetDefault("kafka.topic", "bet.settlement")
	v.SetDefault("reconcile.batch_size", 200)
	v.SetDefault("reconcile.validate_sample", 100)
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("AGGREGATOR_AUTH_TOKEN"); v != "" {
		cfg.Aggregator.AuthToken = v
	}
	if v := os.Getenv("AGGREGATOR_PROXY"); v != "" {
		cfg.Aggregator.Proxy = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
}
