package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	WebSearch WebSearchConfig `mapstructure:"web_search"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// WebSearchConfig represents search provider configuration
type WebSearchConfig struct {
	Enabled          bool                      `mapstructure:"enabled"`
	Default          string                    `mapstructure:"default"` // Default provider name
	FetchConcurrency int                       `mapstructure:"fetch_concurrency"`
	Providers        map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig represents a generic search provider configuration
type ProviderConfig struct {
	Type       string `mapstructure:"type"` // "mcp", "firecrawl", "searxng"
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	ToolName   string `mapstructure:"tool_name"`   // MCP: tool name to call
	QueryParam string `mapstructure:"query_param"` // MCP: query parameter name
	Timeout    int    `mapstructure:"timeout"`
}

// FetcherConfig represents per-URL content fetching configuration
type FetcherConfig struct {
	Timeout      int    `mapstructure:"timeout"`        // seconds
	UserAgent    string `mapstructure:"user_agent"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"` // response body cap
	MaxRedirects int    `mapstructure:"max_redirects"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"` // History database path, default ./data/history.db
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(cfgFile string) *Config {
	// Load .env file if exists (ignore error if not found)
	godotenv.Load()
	godotenv.Load(".env.local")

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure environment variable handling
	// Replace . with _ for nested config keys
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("WEBSEARCH")
	v.AutomaticEnv()

	// Read config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")          // Same directory as executable (priority)
		v.AddConfigPath("./configs")  // configs/ subdirectory
		v.AddConfigPath("../configs") // For running from bin/ directory
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is ok, use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic("Error reading config file: " + err.Error())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic("Error unmarshaling config: " + err.Error())
	}

	return &cfg
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 120)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Storage defaults
	v.SetDefault("storage.path", "./data/history.db")

	// Fetcher defaults
	v.SetDefault("fetcher.timeout", 10)
	v.SetDefault("fetcher.user_agent", "Mozilla/5.0 (compatible; WebSearchBot/1.0; +https://websearch.local/bot)")
	v.SetDefault("fetcher.max_body_bytes", 2<<20)
	v.SetDefault("fetcher.max_redirects", 5)

	// Web Search defaults
	v.SetDefault("web_search.enabled", true)
	v.SetDefault("web_search.default", "searxng")
	v.SetDefault("web_search.fetch_concurrency", 5)
	v.SetDefault("web_search.providers.searxng.type", "searxng")
	v.SetDefault("web_search.providers.searxng.base_url", "http://127.0.0.1:8888")
	v.SetDefault("web_search.providers.searxng.timeout", 15)
	v.SetDefault("web_search.providers.firecrawl.type", "firecrawl")
	v.SetDefault("web_search.providers.firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("web_search.providers.firecrawl.timeout", 30)
	v.SetDefault("web_search.providers.zhipu.type", "mcp")
	v.SetDefault("web_search.providers.zhipu.base_url", "https://open.bigmodel.cn/api/mcp/web_search_prime/mcp")
	v.SetDefault("web_search.providers.zhipu.tool_name", "webSearchPrime")
	v.SetDefault("web_search.providers.zhipu.query_param", "search_query")
	v.SetDefault("web_search.providers.zhipu.timeout", 30)
}
