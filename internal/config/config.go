// Package config содержит логику чтения конфигурации административного сервиса наград.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mmeshcher/reward-admin/internal/storage"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress          string        `env:"RUN_ADDRESS"`
	DatabaseURI         string        `env:"DATABASE_URI"`
	S3Endpoint          string        `env:"S3_ENDPOINT"`
	S3Bucket            string        `env:"S3_BUCKET"`
	S3Region            string        `env:"S3_REGION"`
	S3AccessKey         string        `env:"S3_ACCESS_KEY"`
	S3SecretKey         string        `env:"S3_SECRET_KEY"`
	RedisURL            string        `env:"REDIS_URL"`
	AdminSecret         string        `env:"ADMIN_SECRET"`
	RefundSweepInterval time.Duration `env:"REFUND_SWEEP_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	fromEnv := Config{}
	if err := env.Parse(&fromEnv); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.S3Endpoint, "s3-endpoint", "", "S3-compatible endpoint URL")
	flag.StringVar(&cfg.S3Bucket, "s3-bucket", "", "bucket for reward images")
	flag.StringVar(&cfg.S3Region, "s3-region", "us-east-1", "S3 region")
	flag.StringVar(&cfg.S3AccessKey, "s3-access-key", "", "S3 access key")
	flag.StringVar(&cfg.S3SecretKey, "s3-secret-key", "", "S3 secret key")
	flag.StringVar(&cfg.RedisURL, "r", "", "redis URL for purchase locks")
	flag.StringVar(&cfg.AdminSecret, "k", "", "secret for admin cookie signatures")
	flag.DurationVar(&cfg.RefundSweepInterval, "i", 0, "refund sweep interval, 0 disables the sweeper")

	flag.Parse()

	override(&cfg.RunAddress, fromEnv.RunAddress)
	override(&cfg.DatabaseURI, fromEnv.DatabaseURI)
	override(&cfg.S3Endpoint, fromEnv.S3Endpoint)
	override(&cfg.S3Bucket, fromEnv.S3Bucket)
	override(&cfg.S3Region, fromEnv.S3Region)
	override(&cfg.S3AccessKey, fromEnv.S3AccessKey)
	override(&cfg.S3SecretKey, fromEnv.S3SecretKey)
	override(&cfg.RedisURL, fromEnv.RedisURL)
	override(&cfg.AdminSecret, fromEnv.AdminSecret)
	if fromEnv.RefundSweepInterval != 0 {
		cfg.RefundSweepInterval = fromEnv.RefundSweepInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.RefundSweepInterval < 0 {
		return nil, fmt.Errorf("refund sweep interval must not be negative: %s", cfg.RefundSweepInterval)
	}

	return cfg, nil
}

// Storage возвращает параметры хранилища изображений.
func (c *Config) Storage() storage.Config {
	return storage.Config{
		Endpoint:  c.S3Endpoint,
		Bucket:    c.S3Bucket,
		Region:    c.S3Region,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
	}
}

func override(dst *string, envValue string) {
	if envValue != "" {
		*dst = envValue
	}
}
