package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/parceltrack/internal/flagx"
	"github.com/dmitrijs2005/parceltrack/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1s" and integer nanoseconds.
//
// Pointer fields distinguish "absent" from "set to the zero value", so only
// keys present in the file overwrite the running Config.
type JsonConfig struct {
	HTTPAddr                *string         `json:"http_addr"`
	EndpointAddrGRPC        *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN             *string         `json:"database_dsn"`
	SecretKey               *string         `json:"secret_key"`
	SessionValidityDuration *timex.Duration `json:"session_validity_duration"`

	TelegramBotToken   *string         `json:"telegram_bot_token"`
	TelegramAuthMaxAge *timex.Duration `json:"telegram_auth_max_age"`
	TelegramBotPolling *bool           `json:"telegram_bot_polling"`

	FrontendURL      *string `json:"frontend_url"`
	MiniAppLink      *string `json:"telegram_mini_app_link"`
	ResetPasswordURL *string `json:"reset_password_url"`

	SMTPHost     *string `json:"smtp_host"`
	SMTPPort     *int    `json:"smtp_port"`
	SMTPUser     *string `json:"smtp_user"`
	SMTPPassword *string `json:"smtp_password"`
	SMTPFrom     *string `json:"smtp_from"`

	S3RootUser     *string `json:"s3_root_user"`
	S3RootPassword *string `json:"s3_root_password"`
	S3Bucket       *string `json:"s3_bucket"`
	S3Region       *string `json:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`
	S3Prefix       *string `json:"s3_prefix"`

	RedisAddr          *string `json:"redis_addr"`
	RateLimitPerMinute *int    `json:"rate_limit_per_minute"`

	TrustedProxies *[]string `json:"trusted_proxies"`

	LogBackend    *string `json:"log_backend"`
	LogLevel      *string `json:"log_level"`
	LogFile       *string `json:"log_file"`
	SnowflakeNode *int64  `json:"snowflake_node"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flag. If neither
// is given, nothing is loaded. If the file cannot be read or contains
// invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	set(&config.HTTPAddr, c.HTTPAddr)
	set(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.SecretKey, c.SecretKey)
	if c.SessionValidityDuration != nil {
		config.SessionValidityDuration = c.SessionValidityDuration.Duration
	}

	set(&config.TelegramBotToken, c.TelegramBotToken)
	if c.TelegramAuthMaxAge != nil {
		config.TelegramAuthMaxAge = c.TelegramAuthMaxAge.Duration
	}
	set(&config.TelegramBotPolling, c.TelegramBotPolling)

	set(&config.FrontendURL, c.FrontendURL)
	set(&config.MiniAppLink, c.MiniAppLink)
	set(&config.ResetPasswordURL, c.ResetPasswordURL)

	set(&config.SMTPHost, c.SMTPHost)
	set(&config.SMTPPort, c.SMTPPort)
	set(&config.SMTPUser, c.SMTPUser)
	set(&config.SMTPPassword, c.SMTPPassword)
	set(&config.SMTPFrom, c.SMTPFrom)

	set(&config.S3RootUser, c.S3RootUser)
	set(&config.S3RootPassword, c.S3RootPassword)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	set(&config.S3Prefix, c.S3Prefix)

	set(&config.RedisAddr, c.RedisAddr)
	set(&config.RateLimitPerMinute, c.RateLimitPerMinute)
	set(&config.TrustedProxies, c.TrustedProxies)

	set(&config.LogBackend, c.LogBackend)
	set(&config.LogLevel, c.LogLevel)
	set(&config.LogFile, c.LogFile)
	set(&config.SnowflakeNode, c.SnowflakeNode)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
