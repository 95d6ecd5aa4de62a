package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	DocStore  DocStoreConfig
	GitHub    GitHubConfig
	MongoDB   MongoDBConfig
	Media     MediaConfig
	MinIO     MinIOConfig
	Azure     AzureConfig
	Redis     RedisConfig
	Catalog   CatalogConfig
	Upload    UploadConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	LogLevel  string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret     string
	AdminUsername string
	AdminPassword string
	TokenTTL      time.Duration
	ProtectReads  bool
	OIDCIssuer    string
	OIDCClientID  string
}

// DocStoreConfig selects the backend holding the catalog document.
type DocStoreConfig struct {
	Backend string // github | mongo | memory
	Path    string
}

type GitHubConfig struct {
	Token   string
	Owner   string
	Repo    string
	Branch  string
	APIURL  string
	Timeout time.Duration
}

type MongoDBConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// MediaConfig selects the backend holding product images.
type MediaConfig struct {
	Backend string // minio | azure | memory
	Folder  string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	PublicURL string
}

type AzureConfig struct {
	ConnectionString string
	AccountURL       string
	Container        string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

type CatalogConfig struct {
	Lock        string // local | redis | none
	MaxAttempts int
	LockWait    time.Duration
	// MutationTimeout bounds a create/update/delete once the client request
	// is detached from it.
	MutationTimeout time.Duration
}

type UploadConfig struct {
	MaxFileBytes int64
	TempDir      string
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

type CORSConfig struct {
	AllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and an optional .env file.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "10000")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("AUTH_TOKEN_TTL_MINUTES", 60)
	v.SetDefault("AUTH_PROTECT_READS", true)
	v.SetDefault("DOCSTORE_BACKEND", "github")
	v.SetDefault("CATALOG_PATH", "produtos.json")
	v.SetDefault("GITHUB_BRANCH", "main")
	v.SetDefault("GITHUB_TIMEOUT_SECONDS", 30)
	v.SetDefault("MONGODB_DATABASE", "catalog")
	v.SetDefault("MONGODB_COLLECTION", "documents")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("MEDIA_BACKEND", "minio")
	v.SetDefault("MEDIA_FOLDER", "produtos")
	v.SetDefault("MINIO_BUCKET", "catalog")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("CATALOG_LOCK", "local")
	v.SetDefault("CATALOG_MAX_ATTEMPTS", 3)
	v.SetDefault("CATALOG_LOCK_WAIT_SECONDS", 30)
	v.SetDefault("CATALOG_MUTATION_TIMEOUT_SECONDS", 120)
	v.SetDefault("UPLOAD_MAX_FILE_BYTES", 2*1024*1024)
	v.SetDefault("UPLOAD_TEMP_DIR", os.TempDir())
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:     v.GetString("AUTH_JWT_SECRET"),
			AdminUsername: v.GetString("AUTH_ADMIN_USERNAME"),
			AdminPassword: v.GetString("AUTH_ADMIN_PASSWORD"),
			TokenTTL:      time.Duration(v.GetInt("AUTH_TOKEN_TTL_MINUTES")) * time.Minute,
			ProtectReads:  v.GetBool("AUTH_PROTECT_READS"),
			OIDCIssuer:    v.GetString("OIDC_ISSUER"),
			OIDCClientID:  v.GetString("OIDC_CLIENT_ID"),
		},
		DocStore: DocStoreConfig{
			Backend: strings.ToLower(v.GetString("DOCSTORE_BACKEND")),
			Path:    v.GetString("CATALOG_PATH"),
		},
		GitHub: GitHubConfig{
			Token:   v.GetString("GITHUB_TOKEN"),
			Owner:   v.GetString("GITHUB_OWNER"),
			Repo:    v.GetString("GITHUB_REPO"),
			Branch:  v.GetString("GITHUB_BRANCH"),
			APIURL:  v.GetString("GITHUB_API_URL"),
			Timeout: time.Duration(v.GetInt("GITHUB_TIMEOUT_SECONDS")) * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:        v.GetString("MONGODB_URI"),
			Database:   v.GetString("MONGODB_DATABASE"),
			Collection: v.GetString("MONGODB_COLLECTION"),
			Timeout:    time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Media: MediaConfig{
			Backend: strings.ToLower(v.GetString("MEDIA_BACKEND")),
			Folder:  v.GetString("MEDIA_FOLDER"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			PublicURL: v.GetString("MINIO_PUBLIC_URL"),
		},
		Azure: AzureConfig{
			ConnectionString: v.GetString("AZURE_STORAGE_CONNECTION_STRING"),
			AccountURL:       v.GetString("AZURE_STORAGE_ACCOUNT_URL"),
			Container:        v.GetString("AZURE_STORAGE_CONTAINER"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		Catalog: CatalogConfig{
			Lock:            strings.ToLower(v.GetString("CATALOG_LOCK")),
			MaxAttempts:     v.GetInt("CATALOG_MAX_ATTEMPTS"),
			LockWait:        time.Duration(v.GetInt("CATALOG_LOCK_WAIT_SECONDS")) * time.Second,
			MutationTimeout: time.Duration(v.GetInt("CATALOG_MUTATION_TIMEOUT_SECONDS")) * time.Second,
		},
		Upload: UploadConfig{
			MaxFileBytes: v.GetInt64("UPLOAD_MAX_FILE_BYTES"),
			TempDir:      v.GetString("UPLOAD_TEMP_DIR"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		CORS:     CORSConfig{AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS"))},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on missing or inconsistent settings for the
// selected backends.
func (c *Config) Validate() error {
	required := map[string]string{
		"AUTH_JWT_SECRET":     c.Auth.JWTSecret,
		"AUTH_ADMIN_USERNAME": c.Auth.AdminUsername,
		"AUTH_ADMIN_PASSWORD": c.Auth.AdminPassword,
		"CATALOG_PATH":        c.DocStore.Path,
	}

	switch c.DocStore.Backend {
	case "github":
		required["GITHUB_TOKEN"] = c.GitHub.Token
		required["GITHUB_OWNER"] = c.GitHub.Owner
		required["GITHUB_REPO"] = c.GitHub.Repo
	case "mongo":
		required["MONGODB_URI"] = c.MongoDB.URI
	case "memory":
	default:
		return fmt.Errorf("unsupported DOCSTORE_BACKEND %q", c.DocStore.Backend)
	}

	switch c.Media.Backend {
	case "minio":
		required["MINIO_ENDPOINT"] = c.MinIO.Endpoint
		required["MINIO_ACCESS_KEY"] = c.MinIO.AccessKey
		required["MINIO_SECRET_KEY"] = c.MinIO.SecretKey
	case "azure":
		if c.Azure.AccountURL == "" {
			required["AZURE_STORAGE_CONNECTION_STRING"] = c.Azure.ConnectionString
		}
		required["AZURE_STORAGE_CONTAINER"] = c.Azure.Container
	case "memory":
	default:
		return fmt.Errorf("unsupported MEDIA_BACKEND %q", c.Media.Backend)
	}

	switch c.Catalog.Lock {
	case "local", "none":
	case "redis":
		required["REDIS_HOST"] = c.Redis.Host
	default:
		return fmt.Errorf("unsupported CATALOG_LOCK %q", c.Catalog.Lock)
	}

	var missing []string
	for k, val := range required {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.Catalog.MaxAttempts < 1 {
		return fmt.Errorf("CATALOG_MAX_ATTEMPTS must be >= 1, got %d", c.Catalog.MaxAttempts)
	}
	if c.Upload.MaxFileBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_FILE_BYTES must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
