package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

// Config holds all configuration options
type Config struct {
	// Server config
	Port       string   `long:"port" env:"PORT" default:"8080" description:"Server port"`
	Env        string   `long:"env" env:"APP_ENV" default:"development" choice:"development" choice:"production" description:"Deployment environment"`
	AuthSecret string   `long:"auth-secret" env:"AUTH_SECRET" default:"dev-secret-change-me" description:"Session token signing secret"`
	RPName     string   `long:"rp-name" env:"RP_NAME" default:"Todo App" description:"Relying party display name"`
	RPID       string   `long:"rp-id" env:"RP_ID" description:"Relying party ID (leave empty to derive from request origin)"`
	RPOrigins  []string `long:"rp-origin" env:"RP_ORIGIN" env-delim:"," description:"Relying party origins (leave empty to derive from request origin)"`

	// Storage config
	StorageMode string `long:"storage-mode" env:"STORAGE_MODE" default:"memory" choice:"memory" choice:"filesystem" choice:"redis" choice:"s3" description:"Storage backend"`

	// Filesystem storage
	DataPath string `long:"data-path" env:"DATA_PATH" default:"./data" description:"Filesystem storage directory"`

	// Holiday calendar
	HolidaysFile string `long:"holidays-file" env:"HOLIDAYS_FILE" description:"YAML file of holidays to seed on startup"`

	// S3 storage
	S3 struct {
		Endpoint  string `long:"s3-endpoint" env:"S3_ENDPOINT" default:"localhost:9000" description:"S3 endpoint (host:port)"`
		Bucket    string `long:"s3-bucket" env:"S3_BUCKET" default:"taskpass" description:"S3 bucket name"`
		AccessKey string `long:"s3-access-key" env:"S3_ACCESS_KEY" default:"minioadmin" description:"S3 access key"`
		SecretKey string `long:"s3-secret-key" env:"S3_SECRET_KEY" default:"minioadmin" description:"S3 secret key"`
		UseSSL    bool   `long:"s3-use-ssl" env:"S3_USE_SSL" description:"Use SSL for S3 connections"`
	} `group:"S3 Storage Options"`

	// Redis config
	Redis struct {
		Addr     string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address"`
		Password string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
		DB       int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`
	} `group:"Redis Options"`
}

// Production reports whether the server should set Secure cookies.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// LoadConfig parses configuration from environment variables and command line flags
func LoadConfig() (*Config, error) {
	var config Config

	parser := flags.NewParser(&config, flags.Default)
	parser.Usage = "[OPTIONS]"

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}
