package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	App      AppConfig      `json:"app" yaml:"app"`
	API      APIConfig      `json:"api" yaml:"api"`
	LLM      LLMConfig      `json:"llm" yaml:"llm"`
	Spotify  SpotifyConfig  `json:"spotify" yaml:"spotify"`
	Geocode  GeocodeConfig  `json:"geocode" yaml:"geocode"`
	Photos   PhotosConfig   `json:"photos" yaml:"photos"`
	Memory   MemoryConfig   `json:"memory" yaml:"memory"`
	Security SecurityConfig `json:"security" yaml:"security"`
	Client   ClientConfig   `json:"client" yaml:"client"`
}

// AppConfig represents application configuration
type AppConfig struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Debug       bool   `json:"debug"`
	LogLevel    string `json:"log_level"`
	Environment string `json:"environment"`
}

// APIConfig represents API configuration
type APIConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	BaseURL        string   `json:"base_url"`
	CORSOrigins    []string `json:"cors_origins"`
	MaxRequestSize int64    `json:"max_request_size"`
	Timeout        int      `json:"timeout"`
}

// LLMConfig represents LLM configuration
type LLMConfig struct {
	DefaultProvider string                       `json:"default_provider"`
	Providers       map[string]LLMProviderConfig `json:"providers"`
}

// LLMProviderConfig represents LLM provider configuration
type LLMProviderConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url"`
	Timeout int    `json:"timeout"`
}

// SpotifyConfig holds the OAuth app credentials and the playlist to read.
type SpotifyConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
	PlaylistID   string `json:"playlist_id"`
	APIBaseURL   string `json:"api_base_url"`
	AuthURL      string `json:"auth_url"`
	TokenURL     string `json:"token_url"`
}

// GeocodeConfig configures the reverse-geocoding collaborator.
type GeocodeConfig struct {
	BaseURL   string `json:"base_url"`
	UserAgent string `json:"user_agent"`
	Timeout   int    `json:"timeout"`
}

// PhotosConfig configures photo ingestion.
type PhotosConfig struct {
	Descriptor     string `json:"descriptor"`
	MaxConcurrency int    `json:"max_concurrency"`
	MaxDimension   int    `json:"max_dimension"`
	MaxUploadBytes int64  `json:"max_upload_bytes"`
}

// MemoryConfig represents session store configuration
type MemoryConfig struct {
	StoreType     string `json:"store_type"`
	RedisHost     string `json:"redis_host"`
	RedisPort     int    `json:"redis_port"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	SessionTTL    int    `json:"session_ttl"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	EnableRateLimit    bool `json:"enable_rate_limit"`
	RateLimitPerMinute int  `json:"rate_limit_per_minute"`
	RateLimitBurst     int  `json:"rate_limit_burst"`
}

// ClientConfig is read by diary-cli.
type ClientConfig struct {
	ServerURL string `json:"server_url"`
}

// SessionTTLDuration returns the session lifetime.
func (m MemoryConfig) SessionTTLDuration() time.Duration {
	if m.SessionTTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(m.SessionTTL) * time.Second
}

// Load loads configuration from .env, environment variables and YAML files
func Load() *Config {
	// .env is optional
	_ = godotenv.Load()

	configDir := getEnv("CONFIG_DIR", "config")
	return LoadFrom(loadYAMLConfig(configDir))
}

// LoadFrom builds the configuration from an already parsed YAML tree.
func LoadFrom(yamlConfig map[string]interface{}) *Config {
	config := &Config{}

	// Load App configuration
	config.App = AppConfig{
		Name:        setting("APP_NAME", yamlConfig, "app.name", "diary-story", asString),
		Version:     setting("APP_VERSION", yamlConfig, "app.version", "1.0.0", asString),
		Debug:       setting("DEBUG", yamlConfig, "app.debug", false, strconv.ParseBool),
		LogLevel:    setting("LOG_LEVEL", yamlConfig, "app.log_level", "info", asString),
		Environment: setting("ENVIRONMENT", yamlConfig, "app.environment", "development", asString),
	}

	// Load API configuration
	config.API = APIConfig{
		Host:           setting("API_HOST", yamlConfig, "api.host", "0.0.0.0", asString),
		Port:           setting("PORT", yamlConfig, "api.port", 5000, strconv.Atoi),
		BaseURL:        setting("BASE_URL", yamlConfig, "api.base_url", "http://localhost:5000", asString),
		CORSOrigins:    settingList("CORS_ORIGINS", yamlConfig, "api.cors_origins", []string{"*"}),
		MaxRequestSize: setting("MAX_REQUEST_SIZE", yamlConfig, "api.max_request_size", 64<<20, asInt64),
		Timeout:        setting("API_TIMEOUT", yamlConfig, "api.timeout", 60, strconv.Atoi),
	}

	// Load LLM configuration
	config.LLM = LLMConfig{
		DefaultProvider: setting("LLM_DEFAULT_PROVIDER", yamlConfig, "llm.default_provider", "openai", asString),
		Providers:       loadLLMProviders(yamlConfig),
	}

	// Load Spotify configuration
	config.Spotify = SpotifyConfig{
		ClientID:     setting("SPOTIFY_CLIENT_ID", yamlConfig, "spotify.client_id", "", asString),
		ClientSecret: setting("SPOTIFY_CLIENT_SECRET", yamlConfig, "spotify.client_secret", "", asString),
		RefreshToken: setting("SPOTIFY_REFRESH_TOKEN", yamlConfig, "spotify.refresh_token", "", asString),
		PlaylistID:   setting("SPOTIFY_PLAYLIST_ID", yamlConfig, "spotify.playlist_id", "", asString),
		APIBaseURL:   setting("SPOTIFY_API_BASE_URL", yamlConfig, "spotify.api_base_url", "https://api.spotify.com/v1", asString),
		AuthURL:      setting("SPOTIFY_AUTH_URL", yamlConfig, "spotify.auth_url", "https://accounts.spotify.com/authorize", asString),
		TokenURL:     setting("SPOTIFY_TOKEN_URL", yamlConfig, "spotify.token_url", "https://accounts.spotify.com/api/token", asString),
	}

	// Load Geocode configuration
	config.Geocode = GeocodeConfig{
		BaseURL:   setting("GEOCODE_BASE_URL", yamlConfig, "geocode.base_url", "https://nominatim.openstreetmap.org", asString),
		UserAgent: setting("GEOCODE_USER_AGENT", yamlConfig, "geocode.user_agent", "diary-story/1.0", asString),
		Timeout:   setting("GEOCODE_TIMEOUT", yamlConfig, "geocode.timeout", 10, strconv.Atoi),
	}

	// Load Photos configuration
	config.Photos = PhotosConfig{
		Descriptor:     setting("PHOTO_DESCRIPTOR", yamlConfig, "photos.descriptor", "stub", asString),
		MaxConcurrency: setting("PHOTO_MAX_CONCURRENCY", yamlConfig, "photos.max_concurrency", 8, strconv.Atoi),
		MaxDimension:   setting("PHOTO_MAX_DIMENSION", yamlConfig, "photos.max_dimension", 1024, strconv.Atoi),
		MaxUploadBytes: setting("PHOTO_MAX_UPLOAD_BYTES", yamlConfig, "photos.max_upload_bytes", 10<<20, asInt64),
	}

	// Load Memory configuration
	config.Memory = MemoryConfig{
		StoreType:     setting("MEMORY_STORE_TYPE", yamlConfig, "memory.store_type", "memory", asString),
		RedisHost:     setting("REDIS_HOST", yamlConfig, "memory.redis_host", "localhost", asString),
		RedisPort:     setting("REDIS_PORT", yamlConfig, "memory.redis_port", 6379, strconv.Atoi),
		RedisPassword: setting("REDIS_PASSWORD", yamlConfig, "memory.redis_password", "", asString),
		RedisDB:       setting("REDIS_DB", yamlConfig, "memory.redis_db", 0, strconv.Atoi),
		SessionTTL:    setting("SESSION_TTL", yamlConfig, "memory.session_ttl", 86400, strconv.Atoi),
	}

	// Load Security configuration
	config.Security = SecurityConfig{
		EnableRateLimit:    setting("ENABLE_RATE_LIMIT", yamlConfig, "security.enable_rate_limit", true, strconv.ParseBool),
		RateLimitPerMinute: setting("RATE_LIMIT_PER_MINUTE", yamlConfig, "security.rate_limit_per_minute", 20, strconv.Atoi),
		RateLimitBurst:     setting("RATE_LIMIT_BURST", yamlConfig, "security.rate_limit_burst", 5, strconv.Atoi),
	}

	config.Client = ClientConfig{
		ServerURL: setting("DIARY_SERVER_URL", yamlConfig, "client.server_url", "http://localhost:5000", asString),
	}

	return config
}

// loadLLMProviders loads LLM provider configurations
func loadLLMProviders(yamlConfig map[string]interface{}) map[string]LLMProviderConfig {
	providers := make(map[string]LLMProviderConfig)

	// OpenAI provider
	if apiKey := setting("OPENAI_API_KEY", yamlConfig, "llm.openai.api_key", "", asString); apiKey != "" {
		providers["openai"] = LLMProviderConfig{
			APIKey:  apiKey,
			Model:   setting("OPENAI_MODEL", yamlConfig, "llm.openai.model", "gpt-4o-mini", asString),
			BaseURL: setting("OPENAI_BASE_URL", yamlConfig, "llm.openai.base_url", "https://api.openai.com/v1", asString),
			Timeout: setting("OPENAI_TIMEOUT", yamlConfig, "llm.openai.timeout", 60, strconv.Atoi),
		}
	}

	// Gemini provider
	if apiKey := setting("GEMINI_API_KEY", yamlConfig, "llm.gemini.api_key", "", asString); apiKey != "" {
		providers["gemini"] = LLMProviderConfig{
			APIKey:  apiKey,
			Model:   setting("GEMINI_MODEL", yamlConfig, "llm.gemini.model", "gemini-1.5-flash", asString),
			BaseURL: setting("GEMINI_BASE_URL", yamlConfig, "llm.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta", asString),
			Timeout: setting("GEMINI_TIMEOUT", yamlConfig, "llm.gemini.timeout", 60, strconv.Atoi),
		}
	}

	// mock provider is always available
	providers["mock"] = LLMProviderConfig{Model: "mock"}

	return providers
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadYAMLConfig 读取 app_config.yaml，llm_config.yaml 挂到 llm 节点下；
// 文件缺失或格式错误时按空配置处理
func loadYAMLConfig(configDir string) map[string]interface{} {
	tree := make(map[string]interface{})
	if data, err := os.ReadFile(filepath.Join(configDir, "app_config.yaml")); err == nil {
		if parsed, err := ParseYAML(data); err == nil {
			tree = parsed
		}
	}
	if data, err := os.ReadFile(filepath.Join(configDir, "llm_config.yaml")); err == nil {
		if parsed, err := ParseYAML(data); err == nil && len(parsed) > 0 {
			tree["llm"] = parsed
		}
	}
	return tree
}

// ParseYAML parses a YAML document into the tree LoadFrom expects.
func ParseYAML(data []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = make(map[string]interface{})
	}
	return out, nil
}

// setting 环境变量优先，其次 YAML，解析失败的来源会被跳过
func setting[T any](envKey string, tree map[string]interface{}, yamlPath string, def T, parse func(string) (T, error)) T {
	for _, raw := range []string{os.Getenv(envKey), yamlScalar(tree, yamlPath)} {
		if raw == "" {
			continue
		}
		if v, err := parse(raw); err == nil {
			return v
		}
	}
	return def
}

// settingList 环境变量按逗号拆分，YAML 取字符串列表
func settingList(envKey string, tree map[string]interface{}, yamlPath string, def []string) []string {
	if value := os.Getenv(envKey); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	if items, ok := yamlLookup(tree, yamlPath).([]interface{}); ok {
		out := make([]string, len(items))
		for i, item := range items {
			out[i], _ = item.(string)
		}
		return out
	}
	return def
}

func asString(s string) (string, error) { return s, nil }

func asInt64(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

// yamlLookup walks a dotted path; nil when any segment is missing.
func yamlLookup(tree map[string]interface{}, path string) interface{} {
	var node interface{} = tree
	for _, part := range strings.Split(path, ".") {
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil
		}
		node = m[part]
	}
	return node
}

// yamlScalar renders numbers and booleans back to text for the parsers.
func yamlScalar(tree map[string]interface{}, path string) string {
	switch v := yamlLookup(tree, path).(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}
