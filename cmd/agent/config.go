package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dileep-u-k/openapi-agent/internal/agent"
	"github.com/dileep-u-k/openapi-agent/internal/apicall"
)

const (
	defaultModel      = "claude-3-5-haiku-latest"
	defaultMaxTokens  = 1024
	defaultAuthHeader = "Authorization"
	defaultAuthScheme = "Bearer"
	defaultLogDir     = "logs"
	defaultPort       = "8080"
	defaultConfigFile = "agent.yaml"
)

// AppConfig holds all configuration for the agent, loaded from .env, agent.yaml and the environment.
type AppConfig struct {
	AnthropicAPIKey string
	GeminiAPIKey    string
	Model           string
	MaxTokens       int
	MaxIterations   int
	System          string
	ToolsFile       string

	TargetAPIKey   string
	AuthHeader     string
	AuthScheme     string
	DefaultHeaders map[string]string
	ExtraHeaders   map[string]string

	RedisAddr      string
	LogDir         string
	LogFile        string
	DisableLogging bool
	Port           string
}

// fileConfig is the shape of agent.yaml.
type fileConfig struct {
	Model          string            `yaml:"model"`
	MaxTokens      int               `yaml:"max_tokens"`
	MaxIterations  int               `yaml:"max_iterations"`
	System         string            `yaml:"system"`
	ToolsFile      string            `yaml:"tools_file"`
	DefaultHeaders map[string]string `yaml:"default_headers"`
}

// LoadConfig builds the configuration. Values from the environment win over
// agent.yaml. A missing config file is only an error when it was asked for
// explicitly.
func LoadConfig(path string, explicit bool) (*AppConfig, error) {
	// In Docker (GIN_MODE=release) the environment is provided directly.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("WARNING: No .env file found for local development.")
		}
	}

	cfg := &AppConfig{
		Model:         defaultModel,
		MaxTokens:     defaultMaxTokens,
		MaxIterations: agent.DefaultMaxIterations,
		AuthHeader:    defaultAuthHeader,
		AuthScheme:    defaultAuthScheme,
		LogDir:        defaultLogDir,
		Port:          defaultPort,
	}

	if path == "" {
		path = defaultConfigFile
	}
	if err := cfg.applyFile(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || explicit {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if fc.Model != "" {
		c.Model = fc.Model
	}
	if fc.MaxTokens > 0 {
		c.MaxTokens = fc.MaxTokens
	}
	if fc.MaxIterations > 0 {
		c.MaxIterations = fc.MaxIterations
	}
	if fc.System != "" {
		c.System = fc.System
	}
	if fc.ToolsFile != "" {
		c.ToolsFile = fc.ToolsFile
	}
	c.DefaultHeaders = fc.DefaultHeaders
	return nil
}

func (c *AppConfig) applyEnv() error {
	c.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	c.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	c.TargetAPIKey = os.Getenv("TARGET_API_KEY")
	c.RedisAddr = os.Getenv("REDIS_ADDR")

	setString(&c.Model, "AGENT_MODEL")
	setString(&c.ToolsFile, "AGENT_TOOLS_FILE")
	setString(&c.AuthHeader, "TARGET_AUTH_HEADER")
	if scheme, ok := os.LookupEnv("TARGET_AUTH_SCHEME"); ok {
		c.AuthScheme = scheme
	}
	setString(&c.LogDir, "LOG_DIR")
	setString(&c.LogFile, "LOG_FILE")
	setString(&c.Port, "PORT")

	if err := setInt(&c.MaxTokens, "AGENT_MAX_TOKENS"); err != nil {
		return err
	}
	if err := setInt(&c.MaxIterations, "AGENT_MAX_ITERATIONS"); err != nil {
		return err
	}
	if v := os.Getenv("DISABLE_LOGGING"); v != "" {
		disabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DISABLE_LOGGING %q: %w", v, err)
		}
		c.DisableLogging = disabled
	}
	if v := os.Getenv("TARGET_EXTRA_HEADERS"); v != "" {
		extra, err := ParseExtraHeaders(v)
		if err != nil {
			return err
		}
		c.ExtraHeaders = extra
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	*dst = n
	return nil
}

// ParseExtraHeaders decodes a JSON object of header names to values.
func ParseExtraHeaders(raw string) (map[string]string, error) {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("extra headers must be a JSON object: %w", err)
	}
	headers := make(map[string]string, len(decoded))
	for k, v := range decoded {
		headers[k] = fmt.Sprint(v)
	}
	return headers, nil
}

// UsesGemini reports whether model is served by the Gemini adapter.
func UsesGemini(model string) bool {
	return strings.HasPrefix(model, "gemini")
}

// InstallHeaders seeds store with the configured default headers, the target
// API credential, and the extra headers, in that order.
func (c *AppConfig) InstallHeaders(store *apicall.HeaderStore) {
	for k, v := range c.DefaultHeaders {
		store.Set(k, v)
	}
	if c.TargetAPIKey != "" {
		value := c.TargetAPIKey
		if c.AuthScheme != "" {
			value = c.AuthScheme + " " + c.TargetAPIKey
		}
		store.Set(c.AuthHeader, value)
		log.Printf("🔑 Target API credential installed in header %s: %s", c.AuthHeader, apicall.MaskValue(value))
	}
	for k, v := range c.ExtraHeaders {
		store.Set(k, v)
	}
}
