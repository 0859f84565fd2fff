package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		APIKey         string  `yaml:"-"` // OPENAI_API_KEY only, never from file
		BaseURL        string  `yaml:"base_url"`
		EmbeddingModel string  `yaml:"embedding_model"`
		ChatModel      string  `yaml:"chat_model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float64 `yaml:"temperature"`
		RateLimit      float64 `yaml:"rate_limit"`
	} `yaml:"llm"`

	Database struct {
		URL         string `yaml:"url"`
		VectorDim   int    `yaml:"vector_dim"`
		SearchLimit int    `yaml:"search_limit"`
	} `yaml:"database"`

	Chunker struct {
		MaxTokens     int `yaml:"max_tokens"`
		OverlapTokens int `yaml:"overlap_tokens"`
	} `yaml:"chunker"`

	QA struct {
		TopK                  int `yaml:"top_k"`
		ContextBudget         int `yaml:"context_budget"`
		PreviewMax            int `yaml:"preview_max"`
		AnswerTTLMinutes      int `yaml:"answer_ttl_minutes"`
		EmptyAnswerTTLMinutes int `yaml:"empty_answer_ttl_minutes"`
	} `yaml:"qa"`

	Ingest struct {
		Concurrency int `yaml:"concurrency"`
		// AbortOnError stops a batch at the first failed entry instead
		// of skipping it and continuing.
		AbortOnError bool `yaml:"abort_on_error"`
	} `yaml:"ingest"`

	Server struct {
		Port       string `yaml:"port"`
		AdminToken string `yaml:"-"` // ADMIN_TOKEN only, never from file
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/surgewhisper/config.yaml"),
			"/etc/surgewhisper/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "text-embedding-3-small"
	}
	if config.LLM.ChatModel == "" {
		config.LLM.ChatModel = "gpt-4o-mini"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.2
	}
	if config.LLM.RateLimit == 0 {
		config.LLM.RateLimit = 5
	}

	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 1536
	}
	if config.Database.SearchLimit == 0 {
		config.Database.SearchLimit = 6
	}

	if config.Chunker.MaxTokens == 0 {
		config.Chunker.MaxTokens = 800
	}
	if config.Chunker.OverlapTokens == 0 {
		config.Chunker.OverlapTokens = 80
	}

	if config.QA.TopK == 0 {
		config.QA.TopK = 6
	}
	if config.QA.ContextBudget == 0 {
		config.QA.ContextBudget = 6000
	}
	if config.QA.PreviewMax == 0 {
		config.QA.PreviewMax = 700
	}
	if config.QA.AnswerTTLMinutes == 0 {
		config.QA.AnswerTTLMinutes = 120
	}
	if config.QA.EmptyAnswerTTLMinutes == 0 {
		config.QA.EmptyAnswerTTLMinutes = 30
	}

	if config.Ingest.Concurrency == 0 {
		config.Ingest.Concurrency = 4
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

func mergeWithEnv(config *Config) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if token := os.Getenv("ADMIN_TOKEN"); token != "" {
		config.Server.AdminToken = token
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}

// AnswerTTL is the cache lifetime of a normal answer.
func (c *Config) AnswerTTL() time.Duration {
	return time.Duration(c.QA.AnswerTTLMinutes) * time.Minute
}

// EmptyAnswerTTL is the shorter cache lifetime of a no-results answer.
func (c *Config) EmptyAnswerTTL() time.Duration {
	return time.Duration(c.QA.EmptyAnswerTTLMinutes) * time.Minute
}
