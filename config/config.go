// Package config loads the Koha endpoint, credentials, HTTP and log settings
// from a YAML file, a .env file and the environment.
package config

import (
	"errors"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config defines the client configuration.
type Config struct {
	Koha struct {
		URL          string `yaml:"url" env:"KOHA_URL"`
		SRUURL       string `yaml:"sru_url" env:"KOHA_SRU_URL"`
		ClientID     string `yaml:"client_id" env:"KOHA_CLIENT_ID"`
		ClientSecret string `yaml:"client_secret" env:"KOHA_CLIENT_SECRET"`
		UserID       string `yaml:"userid" env:"KOHA_USERID"`
		Password     string `yaml:"password" env:"KOHA_PASSWORD"`
	} `yaml:"koha"`
	HTTP struct {
		Timeout   time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"30s"`
		UserAgent string        `yaml:"user_agent" env:"HTTP_USER_AGENT" env-default:"koha-api-interface"`
		RPS       float64       `yaml:"rps" env:"HTTP_RPS" env-default:"0"`
		Burst     int           `yaml:"burst" env:"HTTP_BURST" env-default:"1"`
	} `yaml:"http"`
	Log struct {
		Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	} `yaml:"log"`
}

// Load reads a .env file when present, then path (YAML) if not empty, then
// the environment. Environment variables override file values.
func Load(path string) (Config, error) {
	var cfg Config
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return cfg, err
	}
	cfg.Koha.URL = strings.TrimRight(cfg.Koha.URL, "/")
	return cfg, nil
}

// Validate checks the settings every client needs.
func (c Config) Validate() error {
	if c.Koha.URL == "" {
		return errors.New("koha url is required")
	}
	u, err := url.Parse(c.Koha.URL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("koha url must be http or https")
	}
	return nil
}
