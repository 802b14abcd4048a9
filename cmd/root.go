package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hh-artifacts/internal/feature"
	"github.com/spigell/hh-artifacts/internal/logger"
	"github.com/spigell/hh-artifacts/internal/server"
)

const (
	app       = "hh-artifacts"
	envPrefix = "HH_ARTIFACTS"
)

type Config struct {
	Log               logger.Config             `mapstructure:"log"`
	Server            server.Config             `mapstructure:"server"`
	Gemini            GeminiConfig              `mapstructure:"gemini"`
	HH                HHConfig                  `mapstructure:"hh"`
	Storage           StorageConfig             `mapstructure:"storage"`
	Session           SessionConfig             `mapstructure:"session"`
	Report            ReportConfig              `mapstructure:"report"`
	GenerationTimeout time.Duration             `mapstructure:"generation-timeout"`
	Features          map[string]map[string]any `mapstructure:"features"`
}

type GeminiConfig struct {
	APIKey            string  `mapstructure:"api-key"`
	APIKeyFile        string  `mapstructure:"api-key-file"`
	Model             string  `mapstructure:"model"`
	MaxRetries        int     `mapstructure:"max-retries"`
	MaxLogLength      int     `mapstructure:"max-log-length"`
	RequestsPerSecond float64 `mapstructure:"requests-per-second"`
}

type HHConfig struct {
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
	UserAgent string `mapstructure:"user-agent"`
}

type StorageConfig struct {
	DataDir string `mapstructure:"data-dir"`
}

type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup-interval"`
}

type ReportConfig struct {
	FontPath     string `mapstructure:"font-path"`
	BoldFontPath string `mapstructure:"bold-font-path"`
	Author       string `mapstructure:"author"`
}

// FeatureConfigs converts the features section into construction overrides.
func (c *Config) FeatureConfigs() map[string]feature.Config {
	out := make(map[string]feature.Config, len(c.Features))
	for name, cfg := range c.Features {
		out[name] = feature.Config(cfg)
	}
	return out
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "hh-artifacts generates job application artifacts from a resume and a vacancy",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"hh.token-file":       "HH_TOKEN_FILE",
		"hh.token":            "HH_TOKEN",
		"gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"gemini.api-key":      "GEMINI_API_KEY",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults(viper.GetViper())

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hh-artifacts.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	_ = viper.BindPFlag("log.debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("log.json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("storage.data-dir", "data")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.cleanup-interval", "10m")
	v.SetDefault("generation-timeout", "2m")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.max-retries", 3)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional unless given explicitly.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &config, nil
}

// setup loads the configuration and builds the logger every command uses.
func setup() (*Config, *zap.Logger, error) {
	config, err := getConfig()
	if err != nil {
		return nil, nil, err
	}

	logger, err := logger.New(config.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("creating a logger: %w", err)
	}

	return config, logger, nil
}
