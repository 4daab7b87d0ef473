// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（JWT 密钥、MinIO 凭据、管理员引导账号）和 APP_ENV
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
//
// 使用方式：
//   - 开发环境: APP_ENV=dev (默认)
//   - 测试环境: APP_ENV=test
//   - 生产环境: APP_ENV=prod
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server ServerConfig `yaml:"server"`
	Mongo  MongoConfig  `yaml:"mongo"`
	Redis  RedisConfig  `yaml:"redis"`
	Auth   AuthConfig   `yaml:"auth"`
	Upload UploadConfig `yaml:"upload"`
	MinIO  MinIOConfig  `yaml:"minio"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	// URL 为空表示不使用 Redis，统计缓存退化为进程内缓存
	URL string `yaml:"url"`
}

// AuthConfig 认证配置
//
// JWTSecret 只从环境变量读取（JWT_SECRET），不落 YAML。
type AuthConfig struct {
	JWTSecret     string        `yaml:"-"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	AdminEmail    string        `yaml:"-"` // ADMIN_EMAIL
	AdminPassword string        `yaml:"-"` // ADMIN_PASSWORD
}

// UploadConfig 文件上传配置
type UploadConfig struct {
	// Backend: "local"（默认，本地磁盘）或 "minio"
	Backend string `yaml:"backend"`
	// Dir 本地磁盘上传根目录
	Dir string `yaml:"dir"`
}

// MinIOConfig MinIO 对象存储配置（凭据从环境变量读取）
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	AccessKey string `yaml:"-"` // MINIO_ACCESS_KEY
	SecretKey string `yaml:"-"` // MINIO_SECRET_KEY
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env     Environment
	APIPort string
	Mongo   MongoConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Upload  UploadConfig
	MinIO   MinIOConfig
}

var configPaths = []string{
	"configs",
	"../configs",
	"../../configs",
	"../../../configs",
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"../../../.env",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 环境变量覆盖并填充敏感字段
func Load() *Config {
	// 加载 .env
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	// 解析环境
	env := parseEnv(getEnv("APP_ENV", "dev"))

	// 加载 YAML 配置
	yamlCfg := loadYAMLConfig(env)

	cfg := &Config{
		Env:     env,
		APIPort: getEnv("PORT", yamlCfg.Server.Port),
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", yamlCfg.Mongo.URI),
			Database: getEnv("MONGO_DATABASE", yamlCfg.Mongo.Database),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", yamlCfg.Redis.URL),
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JWT_SECRET"),
			TokenTTL:      yamlCfg.Auth.TokenTTL,
			AdminEmail:    os.Getenv("ADMIN_EMAIL"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		},
		Upload: UploadConfig{
			Backend: getEnv("UPLOAD_BACKEND", yamlCfg.Upload.Backend),
			Dir:     getEnv("UPLOAD_DIR", yamlCfg.Upload.Dir),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", yamlCfg.MinIO.Endpoint),
			Bucket:    getEnv("MINIO_BUCKET", yamlCfg.MinIO.Bucket),
			UseSSL:    yamlCfg.MinIO.UseSSL,
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		},
	}

	cfg.validate()
	return cfg
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	// 1. 初始化默认值
	cfg := &YAMLConfig{
		Server: ServerConfig{Port: "8080"},
		Mongo:  MongoConfig{URI: "mongodb://localhost:27017", Database: "leads_admin"},
		Auth:   AuthConfig{TokenTTL: 24 * time.Hour},
		Upload: UploadConfig{Backend: "local", Dir: "uploads"},
	}

	// 2. 加载 common.yaml（公共配置）
	for _, base := range configPaths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	// 3. 加载 {env}.yaml（环境特定配置，覆盖公共配置）
	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range configPaths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

// validate 验证并填充默认值
func (c *Config) validate() {
	if c.APIPort == "" {
		c.APIPort = "8080"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Upload.Backend == "" {
		c.Upload.Backend = "local"
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = "uploads"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "leads_admin"
	}
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Mongo: %s/%s, Upload: %s}",
		c.Env, maskPassword(c.Mongo.URI), c.Mongo.Database, c.Upload.Backend)
}

// maskPassword 隐藏连接串中的密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:]+:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}
