package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location of the YAML config file.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL string `yaml:"databaseURL"`

	UploadDir      string `yaml:"uploadDir"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
	CleanupDays    int    `yaml:"cleanupDays"`
	SweepMinutes   int    `yaml:"sweepMinutes"`

	Provider        string  `yaml:"provider"`
	GenerationModel string  `yaml:"generationModel"`
	Temperature     float64 `yaml:"temperature"`
	GroqAPIKey      string  `yaml:"groqAPIKey"`
	GroqBaseURL     string  `yaml:"groqBaseURL"`
	GeminiAPIKey    string  `yaml:"geminiAPIKey"`
	OllamaBaseURL   string  `yaml:"ollamaBaseURL"`

	TopK                    int `yaml:"topK"`
	HistoryLimit            int `yaml:"historyLimit"`
	ContextCharBudget       int `yaml:"contextCharBudget"`
	AssistantTimeoutSeconds int `yaml:"assistantTimeoutSeconds"`

	RedisAddr       string `yaml:"redisAddr"`
	RedisPassword   string `yaml:"redisPassword"`
	CacheTTLMinutes int    `yaml:"cacheTTLMinutes"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		cfg.GroqAPIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.UploadDir == "" {
		return errors.New("config: uploadDir is required (set in config.yaml)")
	}
	if cfg.GenerationModel == "" {
		return errors.New("config: generationModel is required (set in config.yaml)")
	}
	switch cfg.Provider {
	case "groq":
		if cfg.GroqAPIKey == "" {
			return errors.New("config: groqAPIKey is required (set in config.yaml or GROQ_API_KEY)")
		}
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return errors.New("config: geminiAPIKey is required (set in config.yaml or GEMINI_API_KEY)")
		}
	case "ollama":
		if cfg.OllamaBaseURL == "" {
			return errors.New("config: ollamaBaseURL is required (set in config.yaml)")
		}
	default:
		return fmt.Errorf("config: unknown provider %q (expected groq, gemini, or ollama)", cfg.Provider)
	}
	return nil
}
