// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是服务的完整配置快照，支持本地 YAML 文件或 Nacos 配置中心两种来源，
// 最后再由环境变量覆盖。
type Config struct {
	App    AppConfig    `yaml:"app"`
	Infra  InfraConfig  `yaml:"infra"`
	Wizard WizardConfig `yaml:"wizard"`
}

type AppConfig struct {
	Name      string `yaml:"name"`
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
}

type InfraConfig struct {
	MySQL   MySQLConfig   `yaml:"mysql"`
	Redis   RedisConfig   `yaml:"redis"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Jaeger  JaegerConfig  `yaml:"jaeger"`
	Nacos   NacosConfig   `yaml:"nacos"`
	Catalog CatalogConfig `yaml:"catalog"`
}

type MySQLConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

// RedisConfig 中 Addrs 为空时，向导草稿退化为进程内存储。
type RedisConfig struct {
	Addrs string `yaml:"addrs"`
}

// KafkaConfig 中 Brokers 为空时不发布领域事件。
type KafkaConfig struct {
	Brokers    string `yaml:"brokers"`
	OfferTopic string `yaml:"offer_topic"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type NacosConfig struct {
	ServerAddrs string `yaml:"server_addrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

const (
	CatalogSourceLocal  = "local"
	CatalogSourceRemote = "remote"
)

// CatalogConfig 决定商品范围 (Range) 从哪里读取：本库，或者远端目录服务。
type CatalogConfig struct {
	Source      string        `yaml:"source"`
	ServiceName string        `yaml:"service_name"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

type WizardConfig struct {
	DraftTTL     time.Duration `yaml:"draft_ttl"`
	CookieSecure bool          `yaml:"cookie_secure"`
}

var currentConfig atomic.Pointer[Config]

// GetCurrentConfig 返回当前生效的配置；尚未初始化时返回默认配置。
func GetCurrentConfig() *Config {
	if cfg := currentConfig.Load(); cfg != nil {
		return cfg
	}
	return Default()
}

func setCurrentConfig(cfg *Config) {
	currentConfig.Store(cfg)
}

func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:     "offer-dashboard",
			Port:     8090,
			LogLevel: "info",
		},
		Infra: InfraConfig{
			MySQL: MySQLConfig{
				DSN:          "root:root@tcp(localhost:3306)/merchdash?charset=utf8mb4",
				MaxOpenConns: 20,
				MaxIdleConns: 5,
				AutoMigrate:  true,
			},
			Kafka:   KafkaConfig{OfferTopic: "offer-events"},
			Nacos:   NacosConfig{Group: "DEFAULT_GROUP"},
			Catalog: CatalogConfig{Source: CatalogSourceLocal, ServiceName: "catalog-service", Timeout: 2 * time.Second},
		},
		Wizard: WizardConfig{DraftTTL: time.Hour},
	}
}

// Parse 在默认配置的基础上解析 YAML 内容。
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	return Parse(data)
}

// ApplyEnv 用环境变量覆盖配置项，lookup 通常为 os.LookupEnv。
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	str("LOG_LEVEL", &cfg.App.LogLevel)
	str("MYSQL_DSN", &cfg.Infra.MySQL.DSN)
	str("REDIS_ADDRS", &cfg.Infra.Redis.Addrs)
	str("KAFKA_BROKERS", &cfg.Infra.Kafka.Brokers)
	str("KAFKA_OFFER_TOPIC", &cfg.Infra.Kafka.OfferTopic)
	str("JAEGER_ENDPOINT", &cfg.Infra.Jaeger.Endpoint)
	str("NACOS_SERVER_ADDRS", &cfg.Infra.Nacos.ServerAddrs)
	str("NACOS_NAMESPACE", &cfg.Infra.Nacos.Namespace)
	str("NACOS_GROUP", &cfg.Infra.Nacos.Group)
	str("CATALOG_SOURCE", &cfg.Infra.Catalog.Source)
	str("CATALOG_BASE_URL", &cfg.Infra.Catalog.BaseURL)

	if v, ok := lookup("APP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid APP_PORT %q: %w", v, err)
		}
		cfg.App.Port = port
	}
	if v, ok := lookup("WIZARD_DRAFT_TTL"); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid WIZARD_DRAFT_TTL %q: %w", v, err)
		}
		cfg.Wizard.DraftTTL = ttl
	}
	return nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.App.Port <= 0 || c.App.Port > 65535 {
		problems = append(problems, fmt.Sprintf("app.port %d out of range", c.App.Port))
	}
	if c.Infra.MySQL.DSN == "" {
		problems = append(problems, "infra.mysql.dsn is required")
	}
	switch c.Infra.Catalog.Source {
	case CatalogSourceLocal:
	case CatalogSourceRemote:
		if c.Infra.Catalog.BaseURL == "" && c.Infra.Catalog.ServiceName == "" {
			problems = append(problems, "infra.catalog needs base_url or service_name when source is remote")
		}
	default:
		problems = append(problems, fmt.Sprintf("infra.catalog.source %q is not one of local/remote", c.Infra.Catalog.Source))
	}
	if c.Wizard.DraftTTL <= 0 {
		problems = append(problems, "wizard.draft_ttl must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
