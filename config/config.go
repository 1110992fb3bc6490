package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
	Usage   UsageConfig   `mapstructure:"usage"`
	Storage StorageConfig `mapstructure:"storage"`
	Export  ExportConfig  `mapstructure:"export"`
	Auth    AuthConfig    `mapstructure:"auth"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BodyLimit    string        `mapstructure:"body_limit"`
}

type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	SolveModel  string  `mapstructure:"solve_model"`
	ImageModel  string  `mapstructure:"image_model"`
	Temperature float32 `mapstructure:"temperature"`
}

type UsageConfig struct {
	FreeDailyLimit int `mapstructure:"free_daily_limit"`
}

type StorageConfig struct {
	Type    string `mapstructure:"type"`
	DataDir string `mapstructure:"data_dir"`
}

type ExportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
}

// Load reads the YAML config file and applies SNAPSOLVE_* environment
// overrides. The Gemini API key additionally falls back to GEMINI_API_KEY.
func Load(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("SNAPSOLVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 120*time.Second)
	viper.SetDefault("server.body_limit", "10M")
	viper.SetDefault("gemini.solve_model", "gemini-3-pro-preview")
	viper.SetDefault("gemini.image_model", "gemini-2.5-flash-image")
	viper.SetDefault("gemini.temperature", 0.4)
	viper.SetDefault("usage.free_daily_limit", 3)
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.data_dir", "./data")
	viper.SetDefault("export.output_dir", "./exports")
	viper.SetDefault("auth.jwt_expiry", 24*time.Hour)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	return cfg, nil
}
