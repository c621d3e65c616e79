// Package config содержит логику чтения конфигурации бота чайханы.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// ErrMissingRequired возвращается, если не задан обязательный параметр.
var ErrMissingRequired = errors.New("required configuration value is missing")

const (
	defaultHost     = "0.0.0.0"
	defaultPort     = 8000
	defaultTimezone = "Asia/Tashkent"
)

// Config содержит параметры конфигурации бота и веб-приложения.
type Config struct {
	BotToken    string `env:"BOT_TOKEN"`
	WebAppURL   string `env:"WEBAPP_URL"`
	WebAppHost  string `env:"WEBAPP_HOST"`
	WebAppPort  int    `env:"WEBAPP_PORT"`
	DatabaseURI string `env:"DATABASE_URI"`
	Timezone    string `env:"TIMEZONE"`

	// Location вычисляется из Timezone.
	Location *time.Location `env:"-"`
}

// Addr возвращает адрес HTTP-сервера веб-приложения.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.WebAppHost, strconv.Itoa(c.WebAppPort))
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	envCfg := &Config{}
	if err := env.Parse(envCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}
	flag.StringVar(&cfg.BotToken, "t", "", "telegram bot token")
	flag.StringVar(&cfg.WebAppURL, "u", "", "public URL of the web app")
	flag.StringVar(&cfg.WebAppHost, "host", defaultHost, "web app listen host")
	flag.IntVar(&cfg.WebAppPort, "port", defaultPort, "web app listen port")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.Timezone, "tz", defaultTimezone, "timezone of the calendar day used in reports")

	flag.Parse()

	if envCfg.BotToken != "" {
		cfg.BotToken = envCfg.BotToken
	}
	if envCfg.WebAppURL != "" {
		cfg.WebAppURL = envCfg.WebAppURL
	}
	if envCfg.WebAppHost != "" {
		cfg.WebAppHost = envCfg.WebAppHost
	}
	if envCfg.WebAppPort != 0 {
		cfg.WebAppPort = envCfg.WebAppPort
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envCfg.Timezone != "" {
		cfg.Timezone = envCfg.Timezone
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"BOT_TOKEN", c.BotToken},
		{"WEBAPP_URL", c.WebAppURL},
		{"DATABASE_URI", c.DatabaseURI},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingRequired, r.name)
		}
	}

	if c.WebAppPort <= 0 || c.WebAppPort > 65535 {
		return fmt.Errorf("invalid WEBAPP_PORT: %d", c.WebAppPort)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	c.Location = loc

	return nil
}
