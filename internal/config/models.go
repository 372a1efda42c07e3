package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Accepted values for the selector keys
var (
	LLMProviders    = []interface{}{"bedrock", "gemini", "openai"}
	CacheTypes      = []interface{}{"memory", "sqlite", "mysql", "valkey"}
	SettingsSources = []interface{}{"static", "file"}
	LogLevels       = []interface{}{"debug", "info", "warn", "error"}
	LogFormats      = []interface{}{"json", "console"}
)

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider    string
	MaxItemSize int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// ValkeyConfig locates the shared cache server
type ValkeyConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// CacheConfig selects and tunes the cache backend
type CacheConfig struct {
	Type               string
	CleanupFrequency   time.Duration
	SQLitePath         string
	MySQLDSN           string
	Valkey             ValkeyConfig
	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration
}

// EngineConfig tunes the optimization pipeline
type EngineConfig struct {
	BatchWait  time.Duration
	Coalesce   bool
	WindowSize int
}

// SettingsConfig selects where per-organization settings come from
type SettingsConfig struct {
	Source string
	Dir    string
}

// ServerConfig is the HTTP API listener
type ServerConfig struct {
	ListenAddress   string
	ShutdownTimeout time.Duration
}

// IngestConfig is the SMTP alert-mail listener
type IngestConfig struct {
	Enabled         bool
	ListenAddress   string
	Domain          string
	MaxMessageBytes int
	ProcessTimeout  time.Duration
}

// LoggingConfig controls logger construction
type LoggingConfig struct {
	Level  string
	Format string
}

// ServiceConfig is a validated snapshot of everything the server needs
type ServiceConfig struct {
	LLM      LLMConfig
	Cache    CacheConfig
	Engine   EngineConfig
	Settings SettingsConfig
	Server   ServerConfig
	Ingest   IngestConfig
	Logging  LoggingConfig
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider:    c.GetString("llm.provider"),
		MaxItemSize: c.GetInt("llm.max_item_size"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  c.GetString("logging.level"),
		Format: c.GetString("logging.format"),
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	cleanup, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, err
	}
	openTimeout, err := c.GetDuration("cache.breaker.open_timeout")
	if err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{
		Type:             c.GetString("cache.type"),
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
		Valkey: ValkeyConfig{
			Address:   c.GetString("cache.valkey.address"),
			Password:  c.GetString("cache.valkey.password"),
			DB:        c.GetInt("cache.valkey.db"),
			KeyPrefix: c.GetString("cache.valkey.key_prefix"),
		},
		BreakerMaxFailures: c.GetInt("cache.breaker.max_failures"),
		BreakerOpenTimeout: openTimeout,
	}, nil
}

// GetEngine returns the pipeline configuration
func (c *Config) GetEngine() (EngineConfig, error) {
	wait, err := c.GetDuration("engine.batch_wait")
	if err != nil {
		return EngineConfig{}, err
	}
	return EngineConfig{
		BatchWait:  wait,
		Coalesce:   c.GetBool("engine.coalesce"),
		WindowSize: c.GetInt("dedup.window_size"),
	}, nil
}

// GetSettings returns the settings source configuration
func (c *Config) GetSettings() SettingsConfig {
	return SettingsConfig{
		Source: c.GetString("settings.source"),
		Dir:    c.GetString("settings.dir"),
	}
}

// GetServer returns the HTTP listener configuration
func (c *Config) GetServer() (ServerConfig, error) {
	timeout, err := c.GetDuration("server.shutdown_timeout")
	if err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{
		ListenAddress:   c.GetString("server.listen_address"),
		ShutdownTimeout: timeout,
	}, nil
}

// GetIngest returns the SMTP listener configuration
func (c *Config) GetIngest() (IngestConfig, error) {
	timeout, err := c.GetDuration("ingest.process_timeout")
	if err != nil {
		return IngestConfig{}, err
	}
	return IngestConfig{
		Enabled:         c.GetBool("ingest.enabled"),
		ListenAddress:   c.GetString("ingest.listen_address"),
		Domain:          c.GetString("ingest.domain"),
		MaxMessageBytes: c.GetInt("ingest.max_message_bytes"),
		ProcessTimeout:  timeout,
	}, nil
}

// GetService assembles and validates the full service configuration
func (c *Config) GetService() (*ServiceConfig, error) {
	cache, err := c.GetCache()
	if err != nil {
		return nil, err
	}
	engine, err := c.GetEngine()
	if err != nil {
		return nil, err
	}
	server, err := c.GetServer()
	if err != nil {
		return nil, err
	}
	ingest, err := c.GetIngest()
	if err != nil {
		return nil, err
	}

	sc := &ServiceConfig{
		LLM:      c.GetLLM(),
		Cache:    cache,
		Engine:   engine,
		Settings: c.GetSettings(),
		Server:   server,
		Ingest:   ingest,
		Logging:  c.GetLogging(),
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return sc, nil
}

// Validate checks enumerations and ranges
func (s ServiceConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.LLM),
		validation.Field(&s.Cache),
		validation.Field(&s.Engine),
		validation.Field(&s.Settings),
		validation.Field(&s.Server),
		validation.Field(&s.Ingest),
		validation.Field(&s.Logging),
	)
}

func (l LLMConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Provider, validation.Required, validation.In(LLMProviders...)),
		validation.Field(&l.MaxItemSize, validation.Min(0)),
	)
}

func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Type, validation.Required, validation.In(CacheTypes...)),
		validation.Field(&c.CleanupFrequency, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.SQLitePath, validation.When(c.Type == "sqlite", validation.Required)),
		validation.Field(&c.MySQLDSN, validation.When(c.Type == "mysql", validation.Required)),
		validation.Field(&c.Valkey, validation.When(c.Type == "valkey", validation.By(func(interface{}) error {
			if c.Valkey.Address == "" {
				return validation.NewError("validation_valkey_address", "address is required")
			}
			return nil
		}))),
		validation.Field(&c.BreakerMaxFailures, validation.Required, validation.Min(1)),
		validation.Field(&c.BreakerOpenTimeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

func (e EngineConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.BatchWait, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&e.WindowSize, validation.Required, validation.Min(1)),
	)
}

func (s SettingsConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Source, validation.Required, validation.In(SettingsSources...)),
		validation.Field(&s.Dir, validation.When(s.Source == "file", validation.Required)),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ListenAddress, validation.Required),
		validation.Field(&s.ShutdownTimeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

func (i IngestConfig) Validate() error {
	if !i.Enabled {
		return nil
	}
	return validation.ValidateStruct(&i,
		validation.Field(&i.ListenAddress, validation.Required),
		validation.Field(&i.Domain, validation.Required),
		validation.Field(&i.MaxMessageBytes, validation.Required, validation.Min(1024)),
		validation.Field(&i.ProcessTimeout, validation.Required, validation.Min(time.Second)),
	)
}

func (l LoggingConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In(LogLevels...)),
		validation.Field(&l.Format, validation.In(LogFormats...)),
	)
}
