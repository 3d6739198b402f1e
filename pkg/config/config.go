// Package config loads service configuration from the environment, with an
// optional YAML/JSON/TOML file underneath. Keys are the environment names in
// either case, so JOBX_MAX_RETRIES can also be written as jobx_max_retries
// in the file.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
	"github.com/Abraxas-365/flashmoji/pkg/logx"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var configErrors = errx.NewRegistry("CONFIG")

var (
	ErrReadFile = configErrors.Register("READ_FILE", errx.TypeInternal, 500, "Failed to read config file")
	ErrInvalid  = configErrors.Register("INVALID", errx.TypeValidation, 400, "Invalid configuration")
)

// Config is the full service configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Queue    JobxConfig
	ImageGen ImageGenConfig
	LLM      LLMConfig
	Notifx   NotifxConfig
}

type ServerConfig struct {
	Port        string `validate:"required,numeric"`
	CORSOrigins string
	Debug       bool
	AppVersion  string
	BodyLimit   int `validate:"gt=0"`
}

// DatabaseConfig selects postgres when URL is set; otherwise entries live
// in memory.
type DatabaseConfig struct {
	URL             string `validate:"omitempty,url"`
	MaxOpenConns    int    `validate:"gte=1"`
	MaxIdleConns    int    `validate:"gte=0"`
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// RedisConfig enables the job mirror when Addr is set
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int `validate:"gte=0"`
	TTL        time.Duration
	HistoryLen int `validate:"gte=0"`
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type StorageConfig struct {
	Mode          string `validate:"oneof=local s3"`
	LocalDir      string `validate:"required_if=Mode local"`
	PublicBaseURL string
	Bucket        string `validate:"required_if=Mode s3"`
	Region        string
	KeyPrefix     string
	MaxBytes      int64 `validate:"gt=0"`
}

type ImageGenConfig struct {
	Provider       string `validate:"oneof=replicate openai"`
	ReplicateToken string `validate:"required_if=Provider replicate"`
	ReplicateModel string
	PollInterval   time.Duration
	OpenAIKey      string `validate:"required_if=Provider openai"`
	OpenAIModel    string
	OpenAISize     string
}

type LLMConfig struct {
	Provider       string `validate:"oneof=gemini openai anthropic"`
	GeminiKey      string
	GeminiModel    string
	OpenAIKey      string `validate:"required_if=Provider openai"`
	OpenAIModel    string
	AnthropicKey   string `validate:"required_if=Provider anthropic"`
	AnthropicModel string
	OverridesPath  string
	BatchWorkers   int `validate:"gte=1"`
}

var v *viper.Viper

// Load reads the environment and, when CONFIG_FILE is set, that file.
// Environment values win over file values.
func Load() (*Config, error) {
	v = viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, configErrors.NewWithCause(ErrReadFile, err).WithDetail("path", path)
		}
		logx.WithField("path", path).Info("Loaded config file")
	}

	cfg := &Config{
		Server:   loadServerConfig(),
		Database: loadDatabaseConfig(),
		Redis:    loadRedisConfig(),
		Storage:  loadStorageConfig(),
		Queue:    loadJobxConfig(),
		ImageGen: loadImageGenConfig(),
		LLM:      loadLLMConfig(),
		Notifx:   loadNotifxConfig(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		Debug:       getEnvBool("DEBUG", false),
		AppVersion:  getEnv("APP_VERSION", "1.0.0"),
		BodyLimit:   getEnvInt("BODY_LIMIT", 4*1024*1024),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("DATABASE_URL", ""),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:       getEnv("REDIS_ADDR", ""),
		Password:   getEnv("REDIS_PASSWORD", ""),
		DB:         getEnvInt("REDIS_DB", 0),
		TTL:        getEnvDuration("JOBX_REDIS_TTL", 7*24*time.Hour),
		HistoryLen: getEnvInt("JOBX_REDIS_HISTORY", 500),
	}
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Mode:          getEnv("STORAGE_MODE", "local"),
		LocalDir:      getEnv("UPLOAD_DIR", "./public/images"),
		PublicBaseURL: getEnv("STORAGE_PUBLIC_URL", ""),
		Bucket:        getEnv("AWS_BUCKET", "word-images"),
		Region:        getEnv("AWS_REGION", "us-east-1"),
		KeyPrefix:     getEnv("ASSETX_KEY_PREFIX", ""),
		MaxBytes:      int64(getEnvInt("ASSETX_MAX_BYTES", 20<<20)),
	}
}

func loadImageGenConfig() ImageGenConfig {
	return ImageGenConfig{
		Provider:       getEnv("IMAGE_PROVIDER", "replicate"),
		ReplicateToken: getEnv("REPLICATE_API_TOKEN", ""),
		ReplicateModel: getEnv("REPLICATE_MODEL", ""),
		PollInterval:   getEnvDuration("REPLICATE_POLL_INTERVAL", time.Second),
		OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:    getEnv("OPENAI_IMAGE_MODEL", ""),
		OpenAISize:     getEnv("OPENAI_IMAGE_SIZE", ""),
	}
}

func loadLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:       getEnv("LLM_PROVIDER", "gemini"),
		GeminiKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:    getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		OverridesPath:  getEnv("PROMPT_OVERRIDES_FILE", "prompt_overrides.yaml"),
		BatchWorkers:   getEnvInt("PROMPT_BATCH_WORKERS", 4),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks modes and the credentials each mode needs
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	e := configErrors.New(ErrInvalid)
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			e.WithDetail(fe.Namespace(), fe.Tag())
		}
		return e
	}
	return configErrors.NewWithCause(ErrInvalid, err)
}

func getEnv(key, fallback string) string {
	if s := strings.TrimSpace(v.GetString(key)); s != "" {
		return s
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		logx.WithField("key", key).WithField("value", s).Warn("Invalid integer in config, using default")
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(getEnv(key, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		logx.WithField("key", key).WithField("value", s).Warn("Invalid duration in config, using default")
		return fallback
	}
	return d
}

func getEnvStringSlice(key string, fallback []string) []string {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
