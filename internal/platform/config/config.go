package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// インデックスバックエンドの識別子
const (
	IndexBackendMemory   = "memory"
	IndexBackendPostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// インデックスバックエンド（"memory" or "postgres"）
	IndexBackend string

	// Database設定（IndexBackend が "postgres" の場合に使用）
	Database DatabaseConfig

	// OpenAI設定（Embeddings + 回答生成）
	OpenAI OpenAIConfig

	// チャンク化設定
	Chunking ChunkingConfig

	// 回答合成設定
	Answer AnswerConfig

	// ログ設定
	Log LogConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	ChatModel          string
	Temperature        float64
	MaxTokens          int
}

// ChunkingConfig はチャンク化設定
type ChunkingConfig struct {
	SizeTokens    int
	OverlapTokens int
}

// AnswerConfig は回答合成設定
type AnswerConfig struct {
	MaxContextChunks int
	MaxContextTokens int
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json" or "text"
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		IndexBackend: getEnv("INDEX_BACKEND", IndexBackendMemory),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "docrag"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "docrag"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			ChatModel:          getEnv("OPENAI_CHAT_MODEL", "gpt-4o"),
			Temperature:        getEnvAsFloat("OPENAI_TEMPERATURE", 0.2),
			MaxTokens:          getEnvAsInt("OPENAI_MAX_TOKENS", 1000),
		},
		Chunking: ChunkingConfig{
			SizeTokens:    getEnvAsInt("CHUNK_SIZE_TOKENS", 500),
			OverlapTokens: getEnvAsInt("CHUNK_OVERLAP_TOKENS", 50),
		},
		Answer: AnswerConfig{
			MaxContextChunks: getEnvAsInt("MAX_CONTEXT_CHUNKS", 5),
			MaxContextTokens: getEnvAsInt("MAX_CONTEXT_TOKENS", 3000),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.IndexBackend != IndexBackendMemory && cfg.IndexBackend != IndexBackendPostgres {
		return nil, fmt.Errorf("invalid INDEX_BACKEND: %q (must be %q or %q)",
			cfg.IndexBackend, IndexBackendMemory, IndexBackendPostgres)
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
