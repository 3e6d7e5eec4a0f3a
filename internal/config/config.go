package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const dirName = ".climascope"

// Global configuration structure.
type Global struct {
	ModelsDir    string `mapstructure:"models_dir" yaml:"models_dir"`
	OutputDir    string `mapstructure:"output_dir" yaml:"output_dir"`
	SchemaPolicy string `mapstructure:"schema_policy" yaml:"schema_policy"`

	// Cluster model
	Clusters      int `mapstructure:"clusters" yaml:"clusters"`
	KMeansMaxIter int `mapstructure:"kmeans_max_iter" yaml:"kmeans_max_iter"`
	KMeansNInit   int `mapstructure:"kmeans_n_init" yaml:"kmeans_n_init"`

	// Anomaly model
	Contamination    float64 `mapstructure:"contamination" yaml:"contamination"`
	ForestEstimators int     `mapstructure:"forest_estimators" yaml:"forest_estimators"`
	ForestMaxSamples int     `mapstructure:"forest_max_samples" yaml:"forest_max_samples"`

	RandomSeed int64 `mapstructure:"random_seed" yaml:"random_seed"`

	// Trend forecaster
	ForecastPeriods int     `mapstructure:"forecast_periods" yaml:"forecast_periods"`
	ForecastUnit    string  `mapstructure:"forecast_unit" yaml:"forecast_unit"`
	IntervalWidth   float64 `mapstructure:"interval_width" yaml:"interval_width"`

	// Prometheus textfile written after each run; empty disables it.
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`
}

// Dir returns ~/.climascope.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.climascope/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("CLIMASCOPE")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("models_dir", "")
	v.SetDefault("output_dir", "output")
	v.SetDefault("schema_policy", "permissive")
	v.SetDefault("clusters", 3)
	v.SetDefault("kmeans_max_iter", 300)
	v.SetDefault("kmeans_n_init", 10)
	v.SetDefault("contamination", 0.05)
	v.SetDefault("forest_estimators", 100)
	v.SetDefault("forest_max_samples", 256)
	v.SetDefault("random_seed", 42)
	v.SetDefault("forecast_periods", 30)
	v.SetDefault("forecast_unit", "years")
	v.SetDefault("interval_width", 0.8)
	v.SetDefault("metrics_file", "")

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Resolve models_dir default: ~/.climascope/models
	if c.ModelsDir == "" {
		c.ModelsDir = filepath.Join(dir, "models")
	}
	return &c, nil
}
