package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "COBRANCA"

type Configuration struct {
	ApiPort   string `mapstructure:"api_port" json:"api_port"`
	LogPath   string `mapstructure:"log_path" json:"log_path"`
	LogLevel  string `mapstructure:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" json:"log_format"` // console | json

	Database    string `mapstructure:"database" json:"database"` // "sqlite3" ou "postgres"
	DbHost      string `mapstructure:"db_host" json:"db_host"`
	DbPort      string `mapstructure:"db_port" json:"db_port"`
	DbUser      string `mapstructure:"db_user" json:"db_user"`
	DbName      string `mapstructure:"db_name" json:"db_name"`
	DbPass      string `mapstructure:"db_pass" json:"db_pass"`
	DbSSLMode   string `mapstructure:"db_sslmode" json:"db_sslmode"`
	DbPath      string `mapstructure:"db_path" json:"db_path"` // sqlite
	DbDebug     bool   `mapstructure:"db_debug" json:"db_debug"`
	AutoMigrate bool   `mapstructure:"automigrate" json:"automigrate"`

	// Timezone de referência para "hoje" e para o horário de envio das regras.
	Timezone string `mapstructure:"timezone" json:"timezone"`

	Trigger struct {
		Token     string `mapstructure:"token" json:"token"`           // vazio = endpoint aberto
		InProcess bool   `mapstructure:"in_process" json:"in_process"` // dispara a cada minuto dentro do processo
	} `mapstructure:"trigger" json:"trigger"`

	Provider struct {
		BaseURL string        `mapstructure:"base_url" json:"base_url"` // usado quando a credencial não tem base_url
		Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
	} `mapstructure:"provider" json:"provider"`

	CORSOrigin string `mapstructure:"cors_origin" json:"cors_origin"`
}

// defaults (pra evitar nil/zero chato). Every key is registered so env
// overrides work even without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api_port", "8080")
	v.SetDefault("log_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("database", "sqlite3")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "")
	v.SetDefault("db_name", "")
	v.SetDefault("db_pass", "")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("db_path", "db/database.db")
	v.SetDefault("db_debug", false)
	v.SetDefault("automigrate", false)
	v.SetDefault("timezone", "America/Sao_Paulo")
	v.SetDefault("trigger.token", "")
	v.SetDefault("trigger.in_process", false)
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.timeout", "30s")
	v.SetDefault("cors_origin", "*")
}

// Load reads the JSON (or YAML/TOML, by extension) file at path, if any, and
// applies COBRANCA_* environment overrides, e.g. COBRANCA_TRIGGER_TOKEN.
func Load(path string) (Configuration, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Configuration{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return Configuration{}, fmt.Errorf("decode config: %w", err)
	}
	if c.Provider.Timeout <= 0 {
		c.Provider.Timeout = 30 * time.Second
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return Configuration{}, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return c, nil
}
