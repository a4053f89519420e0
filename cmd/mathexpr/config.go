package main

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/zephyrtronium/mathexpr"
)

// Config is the command's configuration, loaded from an optional file,
// MATHEXPR_ environment variables, and flags.
type Config struct {
	Definition mathexpr.MathDefinition `mapstructure:"definition"`
	// Style overrides Definition.OperatorPrecedenceStyle when set.
	Style string `mapstructure:"style"`
	Log   struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Cache struct {
		Capacity int `mapstructure:"capacity"`
	} `mapstructure:"cache"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("MATHEXPR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("style", "")
	v.SetDefault("log.level", "warning")
	v.SetDefault("cache.capacity", 0)
	return v
}

// loadConfig reads the config file, if any, and decodes the settings over the
// default definition.
func loadConfig(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	cfg := Config{Definition: mathexpr.DefaultDefinition()}
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.TextUnmarshallerHookFunc())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Style != "" {
		if err := cfg.Definition.OperatorPrecedenceStyle.UnmarshalText([]byte(cfg.Style)); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// logger creates the command's logger at the configured level.
func (cfg *Config) logger() (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetLevel(lvl)
	return log, nil
}

// interpreter creates the service described by the configuration, behind a
// cache if cached is true.
func (cfg *Config) interpreter(log logrus.FieldLogger, cached bool) (mathexpr.Interpreter, func() error, error) {
	svc, err := mathexpr.NewService(mathexpr.WithDefinition(cfg.Definition), mathexpr.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	if !cached {
		return svc, svc.Close, nil
	}
	c, err := mathexpr.NewCachedService(svc, mathexpr.WithCapacity(cfg.Cache.Capacity), mathexpr.WithCacheLogger(log))
	if err != nil {
		return nil, nil, err
	}
	return c, func() error {
		c.Close()
		return svc.Close()
	}, nil
}
