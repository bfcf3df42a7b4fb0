package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "USERS"

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Log struct {
		Level string
	}
	Backup struct {
		Bucket     string
		KeyPrefix  string
		Region     string
		Endpoint   string
		OnShutdown bool
	}
	AWS struct {
		Profile string
	}
}

// BackupEnabled reports whether a snapshot destination is configured.
func (c Config) BackupEnabled() bool {
	return strings.TrimSpace(c.Backup.Bucket) != ""
}

// New returns a viper instance with defaults and environment bindings applied.
// Callers may bind command line flags to it before passing it to Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/users.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("backup.bucket", "")
	v.SetDefault("backup.keyprefix", "user-backups")
	v.SetDefault("backup.region", "us-east-1")
	v.SetDefault("backup.endpoint", "")
	v.SetDefault("backup.onshutdown", false)
	v.SetDefault("aws.profile", "")
	return v
}

// Load reads configuration from environment variables and an optional config
// file. An empty configFile looks for "config.*" in the working directory and
// tolerates its absence; an explicit path must exist.
func Load(v *viper.Viper, configFile string) (Config, error) {
	// existing environment wins over .env entries
	_ = gotenv.Load()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}
