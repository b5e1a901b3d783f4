package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration
type Config struct {
	// API Settings
	APITitle   string
	APIVersion string
	APIPrefix  string
	Port       string

	// CORS
	CORSOrigins []string

	// Logging
	LogLevel  string
	LogFormat string

	// Feature flags
	KnowledgeBaseEnabled   bool
	GoogleGroundingEnabled bool

	// PublicBaseURL is prefixed to article paths when building citation URLs
	PublicBaseURL string

	// Vector Search Backend for the internal index: "qdrant", "pgvector" or "vertex"
	VectorBackend string

	// Qdrant settings for the internal index (used when VectorBackend = "qdrant")
	QdrantHost       string
	QdrantPort       int
	QdrantAPIKey     string
	QdrantUseTLS     bool
	QdrantCollection string

	// Vertex AI Vector Search settings (used when VectorBackend = "vertex")
	VertexProjectID            string
	VertexLocation             string
	VertexIndexEndpointID      string
	VertexDeployedIndexID      string
	VertexPublicEndpointDomain string

	// External sources: a YAML/JSON file and/or inline YAML/JSON
	ExternalSourcesFile   string
	ExternalSourcesInline string

	// Gemini
	GeminiAPIKey string
	GeminiModel  string

	// Search tuning
	SemanticBoost        float64
	SemanticFloor        float64
	SemanticLimit        int
	ExactLimit           int
	ToolResultsPerSource int
	ToolExcerptChars     int
	SearchPoolSize       int

	// Chat
	ChatMaxTurns     int
	ChatHistoryLimit int

	// Per-call timeouts
	EmbedTimeout  time.Duration
	VectorTimeout time.Duration
	LLMTimeout    time.Duration
}

var (
	config *Config
	once   sync.Once
)

// GetConfig returns the singleton configuration instance
func GetConfig() *Config {
	once.Do(func() {
		config = Load()
	})
	return config
}

// Load reads the configuration from the environment
func Load() *Config {
	return &Config{
		APITitle:    getEnv("API_TITLE", "Kunskapsportalen Search API"),
		APIVersion:  getEnv("API_VERSION", "1.0.0"),
		APIPrefix:   getEnv("API_PREFIX", "/api"),
		Port:        getEnv("PORT", "8081"),
		CORSOrigins: parseCORSOrigins(getEnv("CORS_ORIGINS", "http://localhost:3000")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		KnowledgeBaseEnabled:   getEnvBool("KNOWLEDGE_BASE_ENABLED", true),
		GoogleGroundingEnabled: getEnvBool("GOOGLE_GROUNDING_ENABLED", false),

		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),

		// Vector search backend configuration
		VectorBackend: getEnv("VECTOR_BACKEND", "qdrant"), // "qdrant", "pgvector" or "vertex"

		QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:       getEnvInt("QDRANT_PORT", 6334),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantUseTLS:     getEnvBool("QDRANT_USE_TLS", false),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "kunskapsportal_articles"),

		// Vertex AI settings
		VertexProjectID:            getEnv("VERTEX_PROJECT_ID", ""),
		VertexLocation:             getEnv("VERTEX_LOCATION", "europe-north1"),
		VertexIndexEndpointID:      getEnv("VERTEX_INDEX_ENDPOINT_ID", ""),
		VertexDeployedIndexID:      getEnv("VERTEX_DEPLOYED_INDEX_ID", ""),
		VertexPublicEndpointDomain: getEnv("VERTEX_PUBLIC_ENDPOINT_DOMAIN", ""),

		ExternalSourcesFile:   getEnv("EXTERNAL_SOURCES_FILE", ""),
		ExternalSourcesInline: getEnv("EXTERNAL_SOURCES", ""),

		GeminiAPIKey: firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		SemanticBoost:        getEnvFloat("SEARCH_SEMANTIC_BOOST", 0.2),
		SemanticFloor:        getEnvFloat("SEARCH_SEMANTIC_FLOOR", 0.3),
		SemanticLimit:        getEnvInt("SEARCH_SEMANTIC_LIMIT", 10),
		ExactLimit:           getEnvInt("SEARCH_EXACT_LIMIT", 100),
		ToolResultsPerSource: getEnvInt("TOOL_RESULTS_PER_SOURCE", 10),
		ToolExcerptChars:     getEnvInt("TOOL_EXCERPT_CHARS", 800),
		SearchPoolSize:       getEnvInt("SEARCH_POOL_SIZE", 32),

		ChatMaxTurns:     getEnvInt("CHAT_MAX_TURNS", 2),
		ChatHistoryLimit: getEnvInt("CHAT_HISTORY_LIMIT", 20),

		EmbedTimeout:  getEnvDuration("EMBED_TIMEOUT", 15*time.Second),
		VectorTimeout: getEnvDuration("VECTOR_TIMEOUT", 10*time.Second),
		LLMTimeout:    getEnvDuration("LLM_TIMEOUT", 60*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return i
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return defaultValue
		}
		return f
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return b
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return d
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseCORSOrigins(value string) []string {
	var origins []string
	if err := json.Unmarshal([]byte(value), &origins); err == nil {
		return origins
	}
	parts := strings.Split(value, ",")
	origins = make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
