package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/rag-gatekeeper/internal/gate"
	"github.com/upb/rag-gatekeeper/internal/similarity"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	AuditDatabase *DatabaseConfig // Optional: separate DB for the audit mirror. When nil, the main DB is used.
	Auth          AuthConfig
	Retrieval     RetrievalConfig
	Gate          gate.Thresholds
	Evidence      EvidenceConfig
	Embedding     EmbeddingConfig
	Generation    GenerationConfig
	Audit         AuditConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds bearer-token authentication configuration
type AuthConfig struct {
	Mode         string // "username" or "jwt"
	JWTSecret    string
	JWTIssuer    string
	UserCacheTTL time.Duration
}

// RetrievalConfig holds vector index configuration
type RetrievalConfig struct {
	Backend      string // "pgvector" or "memory"
	Metric       similarity.Metric
	TopK         int
	Dimensions   int
	SeedFile     string // JSONL chunks loaded into the memory backend
	QueryTimeout time.Duration
}

// EvidenceConfig controls how many documents ground an answer
type EvidenceConfig struct {
	MaxDocs       int
	MinSimilarity float64
}

// EmbeddingConfig holds the OpenAI-compatible embeddings endpoint configuration
type EmbeddingConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// GenerationConfig holds the OpenAI-compatible chat endpoint configuration
type GenerationConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	FilePath     string
	MaxSizeMB    int
	Compress     bool
	DBEnabled    bool
	KafkaBrokers []string
	KafkaTopic   string
	BufferSize   int
	WorkerCount  int
	StopTimeout  time.Duration
}

// CORSConfig holds allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel          string
	LogFormat         string // json or text
	TracingEnabled    bool
	TracingEndpoint   string
	TracingSampleRate float64
	MetricsEnabled    bool
	MetricsEndpoint   string
	MetricsInterval   time.Duration
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	metric, err := similarity.ParseMetric(getEnv("VECTOR_METRIC", "cosine"))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database:      loadDatabaseConfig(),
		AuditDatabase: loadAuditDatabaseConfig(),
		Auth: AuthConfig{
			Mode:         strings.ToLower(getEnv("AUTH_MODE", "username")),
			JWTSecret:    getEnv("JWT_SECRET", ""),
			JWTIssuer:    getEnv("JWT_ISSUER", ""),
			UserCacheTTL: getEnvAsDuration("USER_CACHE_TTL", 15*time.Second),
		},
		Retrieval: RetrievalConfig{
			Backend:      strings.ToLower(getEnv("VECTOR_BACKEND", "pgvector")),
			Metric:       metric,
			TopK:         getEnvAsInt("RETRIEVAL_TOP_K", 7),
			Dimensions:   getEnvAsInt("EMBEDDING_DIMENSIONS", 768),
			SeedFile:     getEnv("VECTOR_SEED_FILE", ""),
			QueryTimeout: getEnvAsDuration("RETRIEVAL_TIMEOUT", 10*time.Second),
		},
		Gate: gate.Thresholds{
			Hard:      getEnvAsFloat("GATE_HARD_THRESHOLD", gate.DefaultThresholds().Hard),
			Soft:      getEnvAsFloat("GATE_SOFT_THRESHOLD", gate.DefaultThresholds().Soft),
			TopN:      getEnvAsInt("GATE_TOP_N", gate.DefaultThresholds().TopN),
			MinStrong: getEnvAsInt("GATE_MIN_STRONG", gate.DefaultThresholds().MinStrong),
		},
		Evidence: EvidenceConfig{
			MaxDocs:       getEnvAsInt("EVIDENCE_MAX_DOCS", gate.DefaultMaxDocs),
			MinSimilarity: getEnvAsFloat("EVIDENCE_MIN_SIMILARITY", 0),
		},
		Embedding: EmbeddingConfig{
			APIKey:  getEnv("EMBEDDING_API_KEY", ""),
			BaseURL: getEnv("EMBEDDING_BASE_URL", "http://localhost:8081/v1"),
			Model:   getEnv("EMBEDDING_MODEL", "sentence-transformers/all-mpnet-base-v2"),
			Timeout: getEnvAsDuration("EMBEDDING_TIMEOUT", 30*time.Second),
		},
		Generation: GenerationConfig{
			APIKey:      getEnv("GROQ_API_KEY", getEnv("GENERATION_API_KEY", "")),
			BaseURL:     getEnv("GENERATION_BASE_URL", "https://api.groq.com/openai/v1"),
			Model:       getEnv("GENERATION_MODEL", "llama-3.1-8b-instant"),
			Temperature: getEnvAsFloat("GENERATION_TEMPERATURE", 0),
			MaxTokens:   getEnvAsInt("GENERATION_MAX_TOKENS", 512),
			Timeout:     getEnvAsDuration("GENERATION_TIMEOUT", 60*time.Second),
		},
		Audit: AuditConfig{
			FilePath:     getEnv("AUDIT_LOG_FILE", "logs/audit.jsonl"),
			MaxSizeMB:    getEnvAsInt("AUDIT_LOG_MAX_SIZE_MB", 100),
			Compress:     getEnvAsBool("AUDIT_LOG_COMPRESS", false),
			DBEnabled:    getEnvAsBool("AUDIT_DB_ENABLED", false),
			KafkaBrokers: getEnvAsList("AUDIT_KAFKA_BROKERS"),
			KafkaTopic:   getEnv("AUDIT_KAFKA_TOPIC", "query-audit"),
			BufferSize:   getEnvAsInt("AUDIT_BUFFER_SIZE", 10000),
			WorkerCount:  getEnvAsInt("AUDIT_WORKER_COUNT", 2),
			StopTimeout:  getEnvAsDuration("AUDIT_STOP_TIMEOUT", 10*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsListDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Observability: ObservabilityConfig{
			LogLevel:          getEnv("LOG_LEVEL", "info"),
			LogFormat:         getEnv("LOG_FORMAT", "json"),
			TracingEnabled:    getEnvAsBool("TRACING_ENABLED", false),
			TracingEndpoint:   getEnv("TRACING_ENDPOINT", ""),
			TracingSampleRate: getEnvAsFloat("TRACING_SAMPLE_RATE", 0.1),
			MetricsEnabled:    getEnvAsBool("METRICS_ENABLED", false),
			MetricsEndpoint:   getEnv("METRICS_ENDPOINT", ""),
			MetricsInterval:   getEnvAsDuration("METRICS_EXPORT_INTERVAL", 30*time.Second),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	switch c.Auth.Mode {
	case "username":
		if c.IsProduction() {
			return fmt.Errorf("username bearer auth is not allowed in production, set AUTH_MODE=jwt")
		}
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	default:
		return fmt.Errorf("unsupported auth mode %q", c.Auth.Mode)
	}

	switch c.Retrieval.Backend {
	case "pgvector", "memory":
	default:
		return fmt.Errorf("unsupported vector backend %q", c.Retrieval.Backend)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval top_k must be at least 1")
	}
	if c.Retrieval.Dimensions < 1 {
		return fmt.Errorf("embedding dimensions must be at least 1")
	}

	if err := c.Gate.Validate(); err != nil {
		return fmt.Errorf("invalid gate thresholds: %w", err)
	}
	if c.Evidence.MaxDocs < 1 {
		return fmt.Errorf("evidence max docs must be at least 1")
	}

	if c.IsProduction() {
		if c.Generation.APIKey == "" {
			return fmt.Errorf("generation API key is required in production")
		}
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("embedding API key is required in production")
		}
	}

	if c.Audit.FilePath == "" {
		return fmt.Errorf("audit log file path is required")
	}
	if len(c.Audit.KafkaBrokers) > 0 && c.Audit.KafkaTopic == "" {
		return fmt.Errorf("audit kafka topic is required when brokers are set")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "dev"),
		Password:        getEnv("DB_PASSWORD", "dev_password"),
		Database:        getEnv("DB_NAME", "knowledge"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadAuditDatabaseConfig loads audit DB config from DATABASE_URL_AUDIT.
// Returns nil when not set (audit mirror uses main DB).
func loadAuditDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL_AUDIT", "")
	if dbURL == "" {
		return nil
	}
	return &DatabaseConfig{
		ConnectionString: dbURL,
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping empty entries
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsListDefault(key string, defaultValue []string) []string {
	if list := getEnvAsList(key); len(list) > 0 {
		return list
	}
	return defaultValue
}
