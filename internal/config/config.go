package config

import (
	"os"
	"runtime"
	"strconv"
	"time"
)

// Config holds the configuration for the source attribution service
type Config struct {
	Pipeline PipelineConfig
	Loader   LoaderConfig
	Index    IndexConfig
	Finder   FinderConfig
	HTTP     HTTPConfig
}

// PipelineConfig controls text normalization
type PipelineConfig struct {
	Language        string // language tag driving stopword set and stemmer selection ("ru", "en", ...)
	UseStemming     bool
	RemoveStopwords bool
	StopwordsPath   string // optional file overriding the embedded stopword set
}

// LoaderConfig controls how documents are pulled from the filesystem
type LoaderConfig struct {
	ChunkSize int // maximum documents per batch
}

// IndexConfig holds feature-hashing index configuration
type IndexConfig struct {
	Features int // dimensionality of the shared feature space
}

// FinderConfig holds matching and fragment-location defaults
type FinderConfig struct {
	TopK                int
	MaxPositionsPerFile int
	SnippetLength       int
	Workers             int // normalization worker pool size
}

// HTTPConfig holds the query service configuration
type HTTPConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	defaultWorkers := runtime.NumCPU() / 2
	if defaultWorkers < 1 {
		defaultWorkers = 1
	}

	return &Config{
		Pipeline: PipelineConfig{
			Language:        GetStringEnv("PIPELINE_LANGUAGE", "ru"),
			UseStemming:     GetBoolEnv("PIPELINE_USE_STEMMING", true),
			RemoveStopwords: GetBoolEnv("PIPELINE_REMOVE_STOPWORDS", true),
			StopwordsPath:   GetStringEnv("PIPELINE_STOPWORDS_PATH", ""),
		},
		Loader: LoaderConfig{
			ChunkSize: GetIntEnv("LOADER_CHUNK_SIZE", 500),
		},
		Index: IndexConfig{
			Features: GetIntEnv("INDEX_FEATURES", 1<<20),
		},
		Finder: FinderConfig{
			TopK:                GetIntEnv("FINDER_TOP_K", 5),
			MaxPositionsPerFile: GetIntEnv("FINDER_MAX_POSITIONS_PER_FILE", 2),
			SnippetLength:       GetIntEnv("FINDER_SNIPPET_LENGTH", 200),
			Workers:             GetIntEnv("FINDER_WORKERS", defaultWorkers),
		},
		HTTP: HTTPConfig{
			Addr:         GetStringEnv("HTTP_ADDR", ":8080"),
			ReadTimeout:  GetDurationEnv("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: GetDurationEnv("HTTP_WRITE_TIMEOUT", 30*time.Second),
		},
	}
}

func GetStringEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
