package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	// Storage.Driver: postgres | memory
	Storage struct {
		Driver string
	} `mapstructure:"storage"`

	Pricing struct {
		Epsilon    float64
		MaxRetries int `mapstructure:"max_retries"`
	} `mapstructure:"pricing"`

	Normalizer struct {
		TotalTolerance float64 `mapstructure:"total_tolerance"`
	} `mapstructure:"normalizer"`

	Ingest struct {
		Workers int
	} `mapstructure:"ingest"`
}

func Load(path string) (Config, error) {
	// .env необязателен: переменные из окружения имеют приоритет
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "America/Sao_Paulo")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("pricing.epsilon", 1e-6)
	v.SetDefault("pricing.max_retries", 3)
	v.SetDefault("normalizer.total_tolerance", 0.01)
	v.SetDefault("ingest.workers", 4)

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}
