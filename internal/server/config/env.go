package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// envFile is loaded before reading the process environment. Variables that
// are already set win over the file.
var envFile = ".env"

// parseEnv overlays Config with environment variables. A missing .env file
// is not an error; a malformed value for a numeric or duration variable
// panics, the same way a broken JSON config does.
func parseEnv(config *Config) {
	_ = godotenv.Load(envFile)

	envString("HTTP_ADDR", &config.HTTPAddr)
	envString("GRPC_ADDR", &config.EndpointAddrGRPC)
	envString("DATABASE_DSN", &config.DatabaseDSN)
	envString("JWT_SECRET", &config.SecretKey)
	envDuration("JWT_LIFETIME", &config.SessionValidityDuration)

	envString("TELEGRAM_BOT_TOKEN", &config.TelegramBotToken)
	envDuration("TELEGRAM_AUTH_MAX_AGE", &config.TelegramAuthMaxAge)
	envBool("TELEGRAM_BOT_POLLING", &config.TelegramBotPolling)

	envString("FRONTEND_URL", &config.FrontendURL)
	envString("TELEGRAM_MINI_APP_LINK", &config.MiniAppLink)
	envString("RESET_PASSWORD_URL", &config.ResetPasswordURL)

	envString("SMTP_HOST", &config.SMTPHost)
	envInt("SMTP_PORT", &config.SMTPPort)
	envString("SMTP_USER", &config.SMTPUser)
	envString("SMTP_PASSWORD", &config.SMTPPassword)
	envString("SMTP_FROM", &config.SMTPFrom)

	envString("S3_ROOT_USER", &config.S3RootUser)
	envString("S3_ROOT_PASSWORD", &config.S3RootPassword)
	envString("S3_BUCKET", &config.S3Bucket)
	envString("S3_REGION", &config.S3Region)
	envString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	envString("S3_PREFIX", &config.S3Prefix)

	envString("REDIS_ADDR", &config.RedisAddr)
	envInt("RATE_LIMIT_PER_MINUTE", &config.RateLimitPerMinute)
	envList("TRUSTED_PROXIES", &config.TrustedProxies)

	envString("LOG_BACKEND", &config.LogBackend)
	envString("LOG_LEVEL", &config.LogLevel)
	envString("LOG_FILE", &config.LogFile)

	var node int
	if envInt("SNOWFLAKE_NODE", &node) {
		config.SnowflakeNode = int64(node)
	}
}

func envString(key string, dst *string) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	*dst = v
	return true
}

func envInt(key string, dst *int) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(err)
	}
	*dst = n
	return true
}

func envBool(key string, dst *bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(err)
	}
	*dst = b
	return true
}

// envDuration accepts Go duration strings ("15m") or plain seconds ("900").
func envDuration(key string, dst *time.Duration) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return true
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
	return true
}

// envList reads a comma-separated list. Blank items are dropped, so an
// empty value clears the list.
func envList(key string, dst *[]string) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
	return true
}
