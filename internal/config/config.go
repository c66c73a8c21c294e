// Package config loads and validates the application configuration from
// command-line flags, environment variables and an optional .env file.
package config

import (
	"flag"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the service.
// Values are resolved in order: defaults, flags, environment.
type Config struct {
	RunAddr  string `env:"SERVER_ADDRESS" validate:"hostname_port"`
	AppURL   string `env:"APP_URL" validate:"url"`
	LogLevel string `env:"LOG_LEVEL" validate:"loglevel"`

	DBFileName          string        `env:"FILE_STORAGE_PATH" validate:"filepath"`
	DatabaseDSN         string        `env:"DATABASE_DSN"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT"`
	MigrationsDir       string        `env:"MIGRATIONS_DIR"`

	AuthBaseURL      string `env:"AUTH_BASE_URL" validate:"url"`
	AuthAPIKey       string `env:"AUTH_API_KEY"`
	AuthJWTSecret    string `env:"AUTH_JWT_SECRET"`
	AuthCookieName   string `env:"AUTH_COOKIE_NAME"`
	AuthTokenFile    string `env:"AUTH_TOKEN_FILE" validate:"filepath"`
	SessionCacheFile string `env:"SESSION_CACHE_FILE" validate:"filepath"`

	AIBaseURL  string `env:"AI_BASE_URL" validate:"url"`
	AIAPIKey   string `env:"AI_API_KEY"`
	AIModel    string `env:"AI_MODEL"`
	TTSBaseURL string `env:"TTS_BASE_URL" validate:"url"`
	TTSAPIKey  string `env:"TTS_API_KEY"`

	RedisAddr string `env:"REDIS_ADDR"`

	TrustedSubnet string `env:"TRUSTED_SUBNET"`

	ChannelCapacity          int           `env:"CHANNEL_CAPACITY"`
	DelayBetweenQueueFetches time.Duration `env:"DELAY_BETWEEN_QUEUE_FETCHES"`
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warning": true,
		"error":   true,
		"fatal":   true,
	}

	return allowedLogLevels[value]
}

func validate(cfg *Config) error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	return validate.Struct(cfg)
}

// InitOption configures the behavior of New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing disables command-line flag parsing.
// Used in tests where the flag set is already consumed by the test runner.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// New builds a validated Config from defaults, flags and environment.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	cfg := &Config{
		RunAddr:                  ":8080",
		AppURL:                   "http://localhost:8080",
		LogLevel:                 "info",
		DBFileName:               "",
		DatabaseDSN:              "",
		DBConnectionTimeout:      10 * time.Second,
		MigrationsDir:            "cmd/skillatlas/migrations",
		AuthBaseURL:              "http://localhost:9999",
		AuthCookieName:           "skillatlas_token",
		AuthTokenFile:            "auth_token.json",
		SessionCacheFile:         "session_cache.json",
		AIBaseURL:                "https://generativelanguage.googleapis.com",
		AIModel:                  "gemini-2.0-flash",
		TTSBaseURL:               "https://texttospeech.googleapis.com",
		ChannelCapacity:          1024,
		DelayBetweenQueueFetches: 10 * time.Second,
	}
	if !options.disableFlagsParsing {
		flag.StringVar(&cfg.RunAddr, "a", cfg.RunAddr, "address and port to run server")
		flag.StringVar(&cfg.AppURL, "b", cfg.AppURL, "public base URL of the application (OAuth redirect target)")
		flag.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "logger level")
		flag.StringVar(&cfg.DBFileName, "f", cfg.DBFileName, "JSON file name with course database")
		flag.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "a string with the database connection details")
		flag.StringVar(&cfg.TrustedSubnet, "t", cfg.TrustedSubnet, "trusted subnet for the internal stats endpoint, CIDR notation")
		flag.Parse()
	}

	var valuesFromEnv Config
	err = env.Parse(&valuesFromEnv)
	if err != nil {
		return nil, err
	}

	if valuesFromEnv.RunAddr != "" {
		cfg.RunAddr = valuesFromEnv.RunAddr
	}

	if valuesFromEnv.AppURL != "" {
		cfg.AppURL = valuesFromEnv.AppURL
	}

	if valuesFromEnv.LogLevel != "" {
		cfg.LogLevel = valuesFromEnv.LogLevel
	}

	if valuesFromEnv.DBFileName != "" {
		cfg.DBFileName = valuesFromEnv.DBFileName
	}

	if valuesFromEnv.DatabaseDSN != "" {
		cfg.DatabaseDSN = valuesFromEnv.DatabaseDSN
	}

	if valuesFromEnv.DBConnectionTimeout != 0 {
		cfg.DBConnectionTimeout = valuesFromEnv.DBConnectionTimeout
	}

	if valuesFromEnv.MigrationsDir != "" {
		cfg.MigrationsDir = valuesFromEnv.MigrationsDir
	}

	if valuesFromEnv.AuthBaseURL != "" {
		cfg.AuthBaseURL = valuesFromEnv.AuthBaseURL
	}

	if valuesFromEnv.AuthAPIKey != "" {
		cfg.AuthAPIKey = valuesFromEnv.AuthAPIKey
	}

	if valuesFromEnv.AuthJWTSecret != "" {
		cfg.AuthJWTSecret = valuesFromEnv.AuthJWTSecret
	}

	if valuesFromEnv.AuthCookieName != "" {
		cfg.AuthCookieName = valuesFromEnv.AuthCookieName
	}

	if valuesFromEnv.AuthTokenFile != "" {
		cfg.AuthTokenFile = valuesFromEnv.AuthTokenFile
	}

	if valuesFromEnv.SessionCacheFile != "" {
		cfg.SessionCacheFile = valuesFromEnv.SessionCacheFile
	}

	if valuesFromEnv.AIBaseURL != "" {
		cfg.AIBaseURL = valuesFromEnv.AIBaseURL
	}

	if valuesFromEnv.AIAPIKey != "" {
		cfg.AIAPIKey = valuesFromEnv.AIAPIKey
	}

	if valuesFromEnv.AIModel != "" {
		cfg.AIModel = valuesFromEnv.AIModel
	}

	if valuesFromEnv.TTSBaseURL != "" {
		cfg.TTSBaseURL = valuesFromEnv.TTSBaseURL
	}

	if valuesFromEnv.TTSAPIKey != "" {
		cfg.TTSAPIKey = valuesFromEnv.TTSAPIKey
	}

	if valuesFromEnv.RedisAddr != "" {
		cfg.RedisAddr = valuesFromEnv.RedisAddr
	}

	if valuesFromEnv.TrustedSubnet != "" {
		cfg.TrustedSubnet = valuesFromEnv.TrustedSubnet
	}

	if valuesFromEnv.ChannelCapacity != 0 {
		cfg.ChannelCapacity = valuesFromEnv.ChannelCapacity
	}

	if valuesFromEnv.DelayBetweenQueueFetches != 0 {
		cfg.DelayBetweenQueueFetches = valuesFromEnv.DelayBetweenQueueFetches
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
