package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Board    BoardConfig    `yaml:"board"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	SyncCompletedTopicName string `yaml:"sync_completed_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type BoardConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	// Публичный API Uppership. Пустой ключ включает встроенную заглушку.
	UppershipBaseURL string `yaml:"uppership_base_url"`
	UppershipAPIKey  string `yaml:"uppership_api_key"`

	// Префикс, под которым дашборд проксирует публичный API.
	ProxyPrefix string `yaml:"proxy_prefix"`

	StaticDir   string `yaml:"static_dir"`
	SwaggerPath string `yaml:"swagger_path"`

	ColumnCacheTTLSeconds int `yaml:"column_cache_ttl_seconds"`
	ColumnLimit           int `yaml:"column_limit"`

	SyncCooldownSeconds  int `yaml:"sync_cooldown_seconds"`
	SyncReconcileSeconds int `yaml:"sync_reconcile_seconds"`
	SyncWatchSeconds     int `yaml:"sync_watch_seconds"`

	ChatDebounceMillis int `yaml:"chat_debounce_millis"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
