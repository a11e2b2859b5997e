// Package config loads service settings from the environment, an optional
// .env file and an optional YAML overlay.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"docrag/types"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"

	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	StorageLocal = "local"
	StorageS3    = "s3"
)

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	BodyLimit int    `yaml:"body_limit"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"db_name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnString renders a libpq keyword/value connection string.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

type VectorConfig struct {
	Backend    string `yaml:"backend"`
	Collection string `yaml:"collection"`
}

type ProviderConfig struct {
	Name           string        `yaml:"name"`
	APIKey         string        `yaml:"-"`
	BaseURL        string        `yaml:"base_url"`
	EmbeddingModel string        `yaml:"embedding_model"`
	ChatModel      string        `yaml:"chat_model"`
	Timeout        time.Duration `yaml:"timeout"`
}

type EmbeddingConfig struct {
	BatchSize int    `yaml:"batch_size"`
	CachePath string `yaml:"cache_path"`
}

type RetrievalConfig struct {
	MaxResults          int     `json:"max_results" yaml:"max_results"`
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`
	Rerank              bool    `json:"rerank" yaml:"rerank"`
	MaxTokens           int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature         float64 `json:"temperature" yaml:"temperature"`
	IndexBatchSize      int     `json:"index_batch_size" yaml:"index_batch_size"`
}

type StorageConfig struct {
	Kind         string `yaml:"kind"`
	UploadFolder string `yaml:"upload_folder"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	AccessKey    string `yaml:"-"`
	SecretKey    string `yaml:"-"`
	Endpoint     string `yaml:"endpoint"`
}

type LoaderConfig struct {
	SourceDir      string        `yaml:"source_dir"`
	ArchiveDir     string        `yaml:"archive_dir"`
	BadDir         string        `yaml:"bad_dir"`
	MonitoringTime time.Duration `yaml:"monitoring_time"`
	// PDFCropTop and PDFCropBottom are in points.
	PDFCropTop     float64       `yaml:"pdf_crop_top"`
	PDFCropBottom  float64       `yaml:"pdf_crop_bottom"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Config struct {
	Server    ServerConfig         `yaml:"server"`
	Postgres  PostgresConfig       `yaml:"postgres"`
	Vector    VectorConfig         `yaml:"vector"`
	Provider  ProviderConfig       `yaml:"provider"`
	Chunking  types.ChunkingConfig `yaml:"chunking"`
	Cleaning  types.CleaningConfig `yaml:"cleaning"`
	Embedding EmbeddingConfig      `yaml:"embedding"`
	Retrieval RetrievalConfig      `yaml:"retrieval"`
	Storage   StorageConfig        `yaml:"storage"`
	Loader    LoaderConfig         `yaml:"loader"`
	Log       LogConfig            `yaml:"log"`
}

// Load reads .env if present, then the environment, then the YAML file
// named by RAG_CONFIG_FILE. Values in the file win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("[CONFIG] error loading .env file", "error", err)
	}

	cfg := FromEnv()
	if path := getEnv("RAG_CONFIG_FILE", ""); path != "" {
		if err := cfg.Overlay(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func FromEnv() *Config {
	chunking := types.DefaultChunkingConfig()
	chunking.ChunkSize = getEnvInt("CHUNK_SIZE", chunking.ChunkSize)
	chunking.ChunkOverlap = getEnvInt("CHUNK_OVERLAP", chunking.ChunkOverlap)
	chunking.MaxChunksPerDoc = getEnvInt("MAX_CHUNKS_PER_DOC", chunking.MaxChunksPerDoc)

	cleaning := types.DefaultCleaningConfig()
	cleaning.MinLength = getEnvInt("CLEAN_MIN_LENGTH", cleaning.MinLength)
	cleaning.Lowercase = getEnvBool("CLEAN_LOWERCASE", cleaning.Lowercase)

	provider := getEnv("LLM_PROVIDER", ProviderOpenAI)

	return &Config{
		Server: ServerConfig{
			Addr:      getEnv("SERVER_ADDR", ":8000"),
			BodyLimit: getEnvInt("SERVER_BODY_LIMIT", 64<<20),
		},
		Postgres: PostgresConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnvInt("PG_PORT", 5432),
			User:     getEnv("PG_USER", "postgres"),
			Password: getEnv("PG_PASS", ""),
			DBName:   getEnv("PG_DB_NAME", "rag"),
			SSLMode:  getEnv("PG_SSL_MODE", "disable"),
		},
		Vector: VectorConfig{
			Backend:    getEnv("VECTOR_BACKEND", BackendPostgres),
			Collection: getEnv("COLLECTION_NAME", "documents"),
		},
		Provider: ProviderConfig{
			Name:           provider,
			APIKey:         apiKey(provider),
			BaseURL:        getEnv("LLM_URL", ""),
			EmbeddingModel: getEnv("EMBEDDING_MODEL", ""),
			ChatModel:      getEnv("LLM_MODEL", ""),
			Timeout:        getEnvDuration("LLM_TIMEOUT", 120*time.Second),
		},
		Chunking: chunking,
		Cleaning: cleaning,
		Embedding: EmbeddingConfig{
			BatchSize: getEnvInt("EMBEDDING_BATCH_SIZE", 100),
			CachePath: getEnv("EMBEDDING_CACHE_PATH", "data/embeddings_cache.gob"),
		},
		Retrieval: RetrievalConfig{
			MaxResults:          getEnvInt("MAX_RESULTS", 5),
			SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.7),
			Rerank:              getEnvBool("RERANK", false),
			MaxTokens:           getEnvInt("MAX_TOKENS", 1000),
			Temperature:         getEnvFloat("TEMPERATURE", 0.7),
			IndexBatchSize:      getEnvInt("INDEX_BATCH_SIZE", 100),
		},
		Storage: StorageConfig{
			Kind:         getEnv("STORAGE_KIND", StorageLocal),
			UploadFolder: getEnv("UPLOAD_FOLDER", "data/uploads"),
			Bucket:       getEnv("BUCKET_NAME", ""),
			Region:       getEnv("AWS_REGION", "us-east-1"),
			AccessKey:    getEnv("AWS_ACCESS_KEY", ""),
			SecretKey:    getEnv("AWS_SECRET_KEY", ""),
			Endpoint:     getEnv("S3_ENDPOINT", ""),
		},
		Loader: LoaderConfig{
			SourceDir:      getEnv("LOADER_SOURCE_DIR", "data/inbox"),
			ArchiveDir:     getEnv("LOADER_ARCHIVE_DIR", "data/archive"),
			BadDir:         getEnv("LOADER_BAD_DIR", "data/bad"),
			MonitoringTime: getEnvDuration("LOADER_MONITORING_TIME", 5*time.Second),
			PDFCropTop:     getEnvFloat("LOADER_PDF_CROP_TOP", 0),
			PDFCropBottom:  getEnvFloat("LOADER_PDF_CROP_BOTTOM", 0),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}
}

// Overlay merges the YAML file at path over cfg.
func (c *Config) Overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Provider.Name {
	case ProviderOpenAI, ProviderGemini:
		if c.Provider.APIKey == "" {
			return fmt.Errorf("api key for provider %q is not set", c.Provider.Name)
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider.Name)
	}
	switch c.Vector.Backend {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown vector backend %q", c.Vector.Backend)
	}
	switch c.Storage.Kind {
	case StorageLocal:
	case StorageS3:
		if c.Storage.Bucket == "" {
			return errors.New("BUCKET_NAME is required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown storage kind %q", c.Storage.Kind)
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize && c.Chunking.SplitBySentence {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}
	return nil
}

func apiKey(provider string) string {
	switch provider {
	case ProviderGemini:
		return getEnv("GEMINI_API_KEY", "")
	case ProviderOpenAI:
		return getEnv("OPENAI_API_KEY", "")
	}
	return ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("[CONFIG] not an int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("[CONFIG] not a float, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("[CONFIG] not a bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("[CONFIG] not a duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
