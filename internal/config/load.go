package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/valpere/scenetran/internal/run"
)

// Load reads the configuration document at path, applies environment
// overrides (SCENETRAN_*), and validates the result. The on-disk format is
// whatever viper supports; the rest of the program only sees the typed
// Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("scenetran")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("db_path", "./data/scenetran.db")
	v.SetDefault("probe", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, run.Wrap(run.KindConfiguration, "", err, "read config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, run.Wrap(run.KindConfiguration, "", err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
