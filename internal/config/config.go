package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит всю конфигурацию сервера игровых сессий.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Storage  StorageConfig
	Database DatabaseConfig
	AI       AIConfig
	CORS     CORSConfig
}

// ServerConfig содержит настройки HTTP сервера.
type ServerConfig struct {
	Port                string `envconfig:"PORT" default:"8080"`
	ReadTimeoutSeconds  int    `envconfig:"SERVER_READ_TIMEOUT" default:"15"`
	WriteTimeoutSeconds int    `envconfig:"SERVER_WRITE_TIMEOUT" default:"15"`
	IdleTimeoutSeconds  int    `envconfig:"SERVER_IDLE_TIMEOUT" default:"60"`
}

// LogConfig содержит настройки логирования.
type LogConfig struct {
	Level    string `envconfig:"LOG_LEVEL" default:"info"`
	Encoding string `envconfig:"LOG_ENCODING" default:"json"`
}

// StorageConfig выбирает бэкенд хранения: postgres или memory.
type StorageConfig struct {
	Backend string `envconfig:"STORAGE" default:"memory"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL.
// Используется только при STORAGE=postgres.
type DatabaseConfig struct {
	Host           string `envconfig:"DB_HOST" default:"localhost"`
	Port           int    `envconfig:"DB_PORT" default:"5432"`
	User           string `envconfig:"DB_USER" default:"postgres"`
	Password       string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name           string `envconfig:"DB_NAME" default:"council"`
	SSLMode        string `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxConnections int    `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
}

// AIConfig содержит настройки клиента генерации сценариев.
type AIConfig struct {
	APIKey         string `envconfig:"AI_API_KEY"`
	Model          string `envconfig:"AI_MODEL" default:"gpt-4"`
	BaseURL        string `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	TimeoutSeconds int    `envconfig:"AI_TIMEOUT" default:"60"`
	MaxAttempts    int    `envconfig:"AI_MAX_ATTEMPTS" default:"3"`
}

// CORSConfig содержит настройки CORS.
type CORSConfig struct {
	AllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// LoadConfig загружает конфигурацию из переменных окружения.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	backend := strings.ToLower(cfg.Storage.Backend)
	if backend != "memory" && backend != "postgres" {
		return nil, fmt.Errorf("неизвестный бэкенд хранения: %s", cfg.Storage.Backend)
	}
	cfg.Storage.Backend = backend

	return &cfg, nil
}

// GetDSN возвращает строку подключения к PostgreSQL.
func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Origins возвращает список разрешенных CORS origin'ов.
func (c CORSConfig) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// AITimeout возвращает таймаут AI-запроса как Duration.
func (c AIConfig) AITimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
