package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"mindpal/internal/emotion"
	"mindpal/internal/pipeline"
)

type LogConfig struct {
	Format string
	Level  string
	File   string
}

type ServerConfig struct {
	HTTPAddr          string
	CORSOrigins       []string
	DBDSN             string
	CatalogFile       string
	AutoCreateSession bool

	LLMProvider      string
	LLMModel         string
	LLMTimeout       time.Duration
	LLMMaxTokens     int
	LLMTemperature   float64
	LLMTopP          float64
	GoogleAPIKey     string
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	AnthropicBaseURL string
	AnthropicAPIKey  string

	EmotionBackend    string
	EmotionServiceURL string
	EmotionModel      string
	EmotionTimeout    time.Duration
	HuggingFaceToken  string
	EmotionMode       emotion.Mode
	EmotionInput      pipeline.EmotionInput

	SlangSource    string
	SlangFile      string
	SlangHFDataset string

	ChatHistoryLimit  int
	EmotionWindowSize int
	ContextMaxChars   int

	RedisURL         string
	StrategyCacheTTL time.Duration

	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string

	Log LogConfig
}

type EmotionServerConfig struct {
	HTTPAddr        string
	ReadBodyMaxByte int64
	Log             LogConfig
}

// LoadDotEnv reads .env files into the environment without overriding
// variables that are already set. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := ServerConfig{
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8000"),
		CORSOrigins:       getenvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		DBDSN:             strings.TrimSpace(os.Getenv("DB_DSN")),
		CatalogFile:       strings.TrimSpace(os.Getenv("CATALOG_FILE")),
		AutoCreateSession: getenvBool("SESSION_AUTO_CREATE", true),

		LLMProvider:      strings.ToLower(getenvDefault("LLM_PROVIDER", "gemini")),
		LLMModel:         getenvDefault("LLM_MODEL", "gemini-2.5-pro"),
		LLMTimeout:       time.Duration(getenvIntDefault("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
		LLMMaxTokens:     getenvIntDefault("LLM_MAX_TOKENS", 256),
		LLMTemperature:   getenvFloatDefault("LLM_TEMPERATURE", 0.3),
		LLMTopP:          getenvFloatDefault("LLM_TOP_P", 0.9),
		GoogleAPIKey:     os.Getenv("GOOGLE_API_KEY"),
		OpenAIBaseURL:    getenvDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		AnthropicBaseURL: getenvDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),

		EmotionBackend:    strings.ToLower(getenvDefault("EMOTION_BACKEND", "lexical")),
		EmotionServiceURL: strings.TrimRight(os.Getenv("EMOTION_SERVICE_URL"), "/"),
		EmotionModel:      getenvDefault("EMOTION_MODEL", emotion.DefaultHFModel),
		EmotionTimeout:    time.Duration(getenvIntDefault("EMOTION_TIMEOUT_SECONDS", 10)) * time.Second,
		HuggingFaceToken:  os.Getenv("HUGGING_FACE_TOKEN"),

		SlangSource:    strings.ToLower(getenvDefault("SLANG_SOURCE", "huggingface")),
		SlangFile:      os.Getenv("SLANG_FILE"),
		SlangHFDataset: os.Getenv("SLANG_HF_DATASET"),

		ChatHistoryLimit:  getenvIntDefault("CHAT_HISTORY_LIMIT", 20),
		EmotionWindowSize: getenvIntDefault("EMOTION_WINDOW_SIZE", 3),
		ContextMaxChars:   getenvIntDefault("CONTEXT_MAX_CHARS", 800),

		RedisURL:         os.Getenv("REDIS_URL"),
		StrategyCacheTTL: time.Duration(getenvIntDefault("STRATEGY_CACHE_TTL_SECONDS", 600)) * time.Second,

		MQTTBrokerURL:   os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:    getenvDefault("MQTT_CLIENT_ID", "mindpal-server"),
		MQTTUsername:    os.Getenv("MQTT_USERNAME"),
		MQTTPassword:    os.Getenv("MQTT_PASSWORD"),
		MQTTTopicPrefix: getenvDefault("MQTT_TOPIC_PREFIX", "mindpal"),

		Log: loadLogConfig(),
	}

	var err error
	if cfg.EmotionMode, err = emotion.ParseMode(os.Getenv("EMOTION_MODE")); err != nil {
		return ServerConfig{}, err
	}
	if cfg.EmotionInput, err = pipeline.ParseEmotionInput(os.Getenv("EMOTION_INPUT")); err != nil {
		return ServerConfig{}, err
	}
	if err := cfg.validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func (cfg ServerConfig) validate() error {
	if cfg.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if strings.TrimSpace(cfg.LLMModel) == "" {
		return fmt.Errorf("LLM_MODEL must not be empty")
	}

	switch cfg.LLMProvider {
	case "gemini":
		if cfg.GoogleAPIKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required when LLM_PROVIDER=gemini")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	case "claude":
		if cfg.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=claude")
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q (want gemini, openai or claude)", cfg.LLMProvider)
	}

	switch cfg.EmotionBackend {
	case "lexical":
	case "http":
		if cfg.EmotionServiceURL == "" {
			return fmt.Errorf("EMOTION_SERVICE_URL is required when EMOTION_BACKEND=http")
		}
	case "huggingface":
		if cfg.HuggingFaceToken == "" {
			return fmt.Errorf("HUGGING_FACE_TOKEN is required when EMOTION_BACKEND=huggingface")
		}
	default:
		return fmt.Errorf("unsupported EMOTION_BACKEND %q (want lexical, http or huggingface)", cfg.EmotionBackend)
	}

	switch cfg.SlangSource {
	case "none", "huggingface":
	case "file":
		if cfg.SlangFile == "" {
			return fmt.Errorf("SLANG_FILE is required when SLANG_SOURCE=file")
		}
	default:
		return fmt.Errorf("unsupported SLANG_SOURCE %q (want huggingface, file or none)", cfg.SlangSource)
	}

	if cfg.ChatHistoryLimit <= 0 || cfg.EmotionWindowSize <= 0 || cfg.ContextMaxChars <= 0 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT, EMOTION_WINDOW_SIZE and CONTEXT_MAX_CHARS must be positive")
	}
	return nil
}

func LoadEmotionServerConfig() EmotionServerConfig {
	return EmotionServerConfig{
		HTTPAddr:        getenvDefault("EMOTION_HTTP_ADDR", ":9012"),
		ReadBodyMaxByte: int64(getenvIntDefault("EMOTION_MAX_BODY_BYTES", 65536)),
		Log:             loadLogConfig(),
	}
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Format: strings.ToLower(getenvDefault("LOG_FORMAT", "text")),
		Level:  strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		File:   os.Getenv("LOG_FILE"),
	}
}

func getenvDefault(key, val string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return val
}

func getenvIntDefault(key string, val int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return val
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return val
	}
	return n
}

func getenvFloatDefault(key string, val float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return val
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return val
	}
	return f
}

func getenvBool(key string, val bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return val
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return val
	}
	return b
}

func getenvList(key string, val []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return val
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return val
	}
	return out
}
