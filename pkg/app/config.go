package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/solar-synergy/dockrelay/pkg/log"
)

const configFlagName = "config"

// EnvPrefix prefixes every environment override: --http.addr is read from
// DOCKRELAY_HTTP_ADDR.
const EnvPrefix = "DOCKRELAY"

func addConfigFlag(fs *pflag.FlagSet, cfgFile *string) {
	fs.StringVarP(cfgFile, configFlagName, "c", *cfgFile,
		fmt.Sprintf("Read configuration from the specified file (yaml, json or toml). Environment variables %s_* override it.", EnvPrefix))
}

// loadEnvFile loads ./.env if present. Existing variables win.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(".env")
}

func newViper(fs *pflag.FlagSet, cfgFile string) (*viper.Viper, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read configuration file(%s): %w", cfgFile, err)
		}
	}

	return v, nil
}

// watchLogLevel re-applies log.level whenever the config file changes.
// Everything else needs a restart.
func watchLogLevel(v *viper.Viper) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		level := v.GetString("log.level")
		if err := log.SetLevel(level); err != nil {
			log.Error(err, "Ignoring config change", "file", e.Name)
			return
		}
		log.Info("Configuration reloaded", "file", e.Name, "log.level", level)
	})
	v.WatchConfig()
}
