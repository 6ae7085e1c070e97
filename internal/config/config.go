package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	DaemonPort  int    `mapstructure:"daemon_port"`
	DBPath      string `mapstructure:"db_path"`
	WorkDir     string `mapstructure:"work_dir"`
	RclonePath  string `mapstructure:"rclone_path"`
	TickSeconds int    `mapstructure:"tick_seconds"`
}

var Default = Config{
	DaemonPort:  8787,
	RclonePath:  "rclone",
	TickSeconds: 30,
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home dir: %w", err)
	}

	configDir := filepath.Join(home, ".smbsyncd")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)

	viper.SetDefault("daemon_port", Default.DaemonPort)
	viper.SetDefault("db_path", filepath.Join(configDir, "smbsyncd.db"))
	viper.SetDefault("work_dir", filepath.Join(configDir, "work"))
	viper.SetDefault("rclone_path", Default.RclonePath)
	viper.SetDefault("tick_seconds", Default.TickSeconds)

	viper.SetEnvPrefix("SMBSYNCD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
