// Package config loads service settings. Precedence, lowest first: built-in
// defaults, the YAML file named by CONFIG_FILE, a .env file, the process
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          string        `yaml:"port"`
	MongoURI      string        `yaml:"mongo_uri"`
	MongoDB       string        `yaml:"mongo_db"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	CartIdleTTL   time.Duration `yaml:"cart_idle_ttl"`
	AuthRate      float64       `yaml:"auth_rate"`
	AuthBurst     int           `yaml:"auth_burst"`
	LogLevel      string        `yaml:"log_level"`
}

func Default() Config {
	return Config{
		Port:        ":8080",
		MongoURI:    "mongodb://localhost:27017",
		MongoDB:     "myhomeneeds",
		RedisAddr:   "localhost:6379",
		TokenTTL:    72 * time.Hour,
		CartIdleTTL: 2 * time.Hour,
		AuthRate:    5,
		AuthBurst:   10,
		LogLevel:    "info",
	}
}

// Load builds the configuration. A missing .env file is not an error.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.mergeEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	str := map[string]*string{
		"PORT":           &c.Port,
		"MONGO_URI":      &c.MongoURI,
		"MONGO_DB":       &c.MongoDB,
		"REDIS_ADDR":     &c.RedisAddr,
		"REDIS_PASSWORD": &c.RedisPassword,
		"JWT_SECRET":     &c.JWTSecret,
		"LOG_LEVEL":      &c.LogLevel,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"TOKEN_TTL":     &c.TokenTTL,
		"CART_IDLE_TTL": &c.CartIdleTTL,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		c.RedisDB = n
	}
	if v := os.Getenv("AUTH_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("AUTH_RATE: %w", err)
		}
		c.AuthRate = f
	}
	if v := os.Getenv("AUTH_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AUTH_BURST: %w", err)
		}
		c.AuthBurst = n
	}

	if c.Port != "" && c.Port[0] != ':' {
		c.Port = ":" + c.Port
	}
	return nil
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.MongoURI == "" || c.MongoDB == "" {
		return errors.New("MONGO_URI and MONGO_DB must be set")
	}
	return nil
}
