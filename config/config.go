package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Gemini   GeminiConfig
	Scraper  ScraperConfig
	Analysis AnalysisConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type ScraperConfig struct {
	Language        string
	Country         string
	GooglePlayCount int
	AppStoreCount   int
	FetchTimeout    time.Duration
}

type AnalysisConfig struct {
	MaxModelCalls   int
	RateLimitWindow time.Duration
	PipelineTimeout time.Duration
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/")

	viper.AutomaticEnv()

	viper.BindEnv("GEMINI_API_KEY")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	viper.SetDefault("gemini.model", "gemini-1.5-flash")
	viper.SetDefault("scraper.language", "en")
	viper.SetDefault("scraper.country", "us")
	viper.SetDefault("scraper.google_play_count", 100)
	viper.SetDefault("scraper.app_store_count", 50)
	viper.SetDefault("analysis.max_model_calls", 10)
	viper.SetDefault("analysis.rate_limit_window_seconds", 60*time.Second)
	viper.SetDefault("analysis.pipeline_timeout_seconds", 60*time.Second)

	config := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("server.port"),
			ReadTimeout:  viper.GetDuration("server.read_timeout_seconds"),
			WriteTimeout: viper.GetDuration("server.write_timeout_seconds"),
			IdleTimeout:  viper.GetDuration("server.idle_timeout_seconds"),
			CORSOrigins:  viper.GetStringSlice("server.cors_origins"),
		},
		Gemini: GeminiConfig{
			APIKey: viper.GetString("GEMINI_API_KEY"),
			Model:  viper.GetString("gemini.model"),
		},
		Scraper: ScraperConfig{
			Language:        viper.GetString("scraper.language"),
			Country:         viper.GetString("scraper.country"),
			GooglePlayCount: viper.GetInt("scraper.google_play_count"),
			AppStoreCount:   viper.GetInt("scraper.app_store_count"),
			FetchTimeout:    viper.GetDuration("scraper.fetch_timeout_seconds"),
		},
		Analysis: AnalysisConfig{
			MaxModelCalls:   viper.GetInt("analysis.max_model_calls"),
			RateLimitWindow: viper.GetDuration("analysis.rate_limit_window_seconds"),
			PipelineTimeout: viper.GetDuration("analysis.pipeline_timeout_seconds"),
		},
	}

	if config.Gemini.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	if len(config.Server.CORSOrigins) == 0 {
		config.Server.CORSOrigins = []string{"*"}
	}

	return config, nil
}
