// Package config loads application configuration from environment
// variables.  A .env file in the working directory is honoured when present.
package config

import (
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; nested sections are loaded by their own helpers.
type Config struct {
    Env               string // application environment (development, test, production)
    Port              string // HTTP port to listen on
    DBUser            string
    DBPass            string
    DBHost            string
    DBPort            string
    DBName            string
    JWTSecret         string // secret used to sign access tokens
    AccessTTLMin      int    // access token lifetime in minutes
    RefreshTTLDays    int    // refresh token lifetime in days
    BcryptCost        int    // bcrypt cost for password hashing
    AutoApproveGuides bool   // demo override: guides are approved at registration

    // CompletionInterval is how often confirmed bookings with a past tour
    // date are moved to completed.  Zero disables the job.
    CompletionInterval time.Duration
    // PendingPaymentTTL is how long a booking awaiting payment holds its
    // slots before the scheduler cancels it.
    PendingPaymentTTL  time.Duration

    Payment   PaymentConfig
    Queue     QueueConfig
    Redis     RedisConfig
    Cache     CacheConfig
    RateLimit RateLimitConfig
}

// PaymentConfig configures the Stripe gateway.  Payments are disabled when
// SecretKey is empty and bookings are confirmed immediately.
type PaymentConfig struct {
    SecretKey     string
    WebhookSecret string
    Currency      string
    ReturnURL     string
}

// Enabled reports whether a payment provider is configured.
func (p PaymentConfig) Enabled() bool { return p.SecretKey != "" }

// QueueConfig configures the RabbitMQ event publisher and consumer.
type QueueConfig struct {
    URL             string
    Exchange        string
    ConsumerEnabled bool
    NotificationLog string // file the notification consumer appends to
}

// Load reads the .env file if any, then the environment.  Required
// variables are enforced by must() and missing values terminate the
// process with a fatal log entry.
func Load() Config {
    _ = godotenv.Load()
    return Config{
        Env:                must("APP_ENV"),
        Port:               must("APP_PORT"),
        DBUser:             must("DB_USER"),
        DBPass:             os.Getenv("DB_PASS"), // empty allowed
        DBHost:             must("DB_HOST"),
        DBPort:             must("DB_PORT"),
        DBName:             must("DB_NAME"),
        JWTSecret:          must("JWT_SECRET"),
        AccessTTLMin:       mustInt("ACCESS_TOKEN_TTL_MIN"),
        RefreshTTLDays:     mustInt("REFRESH_TOKEN_TTL_DAYS"),
        BcryptCost:         mustInt("BCRYPT_COST"),
        AutoApproveGuides:  envBool("AUTO_APPROVE_GUIDES", false),
        CompletionInterval: envDur("COMPLETION_INTERVAL", time.Hour),
        PendingPaymentTTL:  envDur("PENDING_PAYMENT_TTL", 30*time.Minute),
        Payment: PaymentConfig{
            SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
            WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
            Currency:      strings.ToLower(envStr("PAYMENT_CURRENCY", "usd")),
            ReturnURL:     envStr("PAYMENT_RETURN_URL", "http://localhost:3000/bookings/success"),
        },
        Queue:     loadQueueConfig(),
        Redis:     LoadRedisConfig(),
        Cache:     LoadCacheConfig(),
        RateLimit: LoadRateLimitConfig(),
    }
}

func loadQueueConfig() QueueConfig {
    url := os.Getenv("RABBITMQ_URL")
    if url == "" {
        url = os.Getenv("AMQP_URL")
    }
    return QueueConfig{
        URL:             url,
        Exchange:        envStr("RABBITMQ_EXCHANGE", "bookings"),
        ConsumerEnabled: envBool("NOTIFICATION_CONSUMER_ENABLED", true),
        NotificationLog: envStr("NOTIFICATION_LOG", "logs/notifications.log"),
    }
}

// IsDevelopment reports whether the service runs in a local environment.
func (c Config) IsDevelopment() bool {
    switch strings.ToLower(c.Env) {
    case "dev", "development", "local":
        return true
    }
    return false
}

// must retrieves the value of a required environment variable.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatal().Str("key", key).Msg("missing required env var")
    }
    return v
}

// mustInt is like must() but converts the value into an integer.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatal().Str("key", key).Str("value", s).Msg("invalid int env var")
    }
    return n
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    switch strings.ToLower(os.Getenv(k)) {
    case "1", "true", "yes", "on":
        return true
    case "0", "false", "no", "off":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
        return dur
    }
    return d
}
