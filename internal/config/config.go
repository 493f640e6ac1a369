package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server   ServerConfig
	CORS     CORSConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Email    EmailConfig
	Sheets   SheetsConfig
	PayMaya  PayMayaConfig
	Payment  PaymentConfig
	Ordering OrderingConfig
	Jobs     JobsConfig
	Auth     AuthConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port         string
	PublicURL    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         int
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	AutoMigrate  bool
}

type RedisConfig struct {
	Addr        string
	Enabled     bool
	LockTTL     time.Duration
	LockWait    time.Duration
	LockBackoff time.Duration
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Topics  TopicConfig
	Enabled bool
}

type TopicConfig struct {
	PaymentCompleted string
	CodesProvisioned string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
	EventName    string
	SupportEmail string
}

// Configured reports whether enough SMTP settings are present to send mail.
func (c EmailConfig) Configured() bool {
	return c.SMTPHost != "" && c.SMTPUsername != "" && c.SMTPPassword != ""
}

type SheetsConfig struct {
	CredentialsJSON string
	SpreadsheetID   string
	AuditSheetName  string
	CodesSheetName  string
	CodesSheetRange string
	RequestTimeout  time.Duration
}

// Configured reports whether the spreadsheet audit log can be written.
func (c SheetsConfig) Configured() bool {
	return c.CredentialsJSON != "" && c.SpreadsheetID != ""
}

type PayMayaConfig struct {
	Environment string
	PublicKey   string
	BaseURL     string
	Currency    string
	Timeout     time.Duration
}

type PaymentConfig struct {
	TestMode             bool
	WebhookRequireAmount bool
	AmountTolerance      decimal.Decimal
}

type OrderingConfig struct {
	Enabled bool
}

// JobsConfig schedules the pending-allocation sweep. An empty schedule
// disables it.
type JobsConfig struct {
	SweepSchedule string
	SweepTimeout  time.Duration
}

type AuthConfig struct {
	OIDCIssuer  string
	AdminSecret string
}

type LogConfig struct {
	Level   string
	Dir     string
	Service string
}

func Load() *Config {
	env := strings.ToLower(getEnv("PAYMAYA_ENV", "sandbox"))

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8084"),
			PublicURL:    strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8084"), "/"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
			MaxAge:         getEnvInt("CORS_MAX_AGE", 300),
		},
		Database: DatabaseConfig{
			DSN:          getEnv("POSTGRES_DSN", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			AutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
			Enabled:     getEnvBool("REDIS_ENABLED", true),
			LockTTL:     getEnvDuration("ORDER_LOCK_TTL", 30*time.Second),
			LockWait:    getEnvDuration("ORDER_LOCK_WAIT", 10*time.Second),
			LockBackoff: getEnvDuration("ORDER_LOCK_BACKOFF", 100*time.Millisecond),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			GroupID: getEnv("KAFKA_GROUP_ID", "ticketcodes-group"),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Topics: TopicConfig{
				PaymentCompleted: getEnv("KAFKA_TOPIC_PAYMENT_COMPLETED", "ticketing.payment.completed"),
				CodesProvisioned: getEnv("KAFKA_TOPIC_CODES_PROVISIONED", "ticketing.codes.provisioned"),
			},
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			From:         getEnv("SMTP_FROM", "JCI Manila Color Run <noreply@jcimanilacolorrun.com>"),
			EventName:    getEnv("EVENT_NAME", "JCI Manila Color Run"),
			SupportEmail: getEnv("SUPPORT_EMAIL", "info@jcimanilacolorrun.com"),
		},
		Sheets: SheetsConfig{
			CredentialsJSON: getEnv("GOOGLE_SHEETS_CREDENTIALS", ""),
			SpreadsheetID:   getEnv("GOOGLE_SHEETS_ID", ""),
			AuditSheetName:  getEnv("GOOGLE_SHEETS_NAME", "Orders"),
			CodesSheetName:  getEnv("TICKET_CODES_SHEET_NAME", "TicketCodes"),
			CodesSheetRange: getEnv("TICKET_CODES_RANGE", "A:B"),
			RequestTimeout:  getEnvDuration("GOOGLE_SHEETS_TIMEOUT", 10*time.Second),
		},
		PayMaya: PayMayaConfig{
			Environment: env,
			PublicKey:   getEnv("PAYMAYA_PUBLIC_KEY", ""),
			BaseURL:     getEnv("PAYMAYA_BASE_URL", payMayaBaseURL(env)),
			Currency:    "PHP",
			Timeout:     getEnvDuration("PAYMAYA_TIMEOUT", 10*time.Second),
		},
		Payment: PaymentConfig{
			TestMode:             getEnvBool("PAYMENT_TEST_MODE", false),
			WebhookRequireAmount: getEnvBool("PAYMENT_WEBHOOK_REQUIRE_AMOUNT", false),
			AmountTolerance:      getEnvDecimal("PAYMENT_AMOUNT_TOLERANCE", decimal.RequireFromString("0.01")),
		},
		Ordering: OrderingConfig{
			Enabled: strings.ToLower(strings.TrimSpace(os.Getenv("TICKET_ORDERING_ENABLED"))) == "true",
		},
		Jobs: JobsConfig{
			SweepSchedule: strings.TrimSpace(os.Getenv("ALLOCATION_SWEEP_SCHEDULE")),
			SweepTimeout:  getEnvDuration("ALLOCATION_SWEEP_TIMEOUT", 2*time.Minute),
		},
		Auth: AuthConfig{
			OIDCIssuer:  getEnv("OIDC_ISSUER", ""),
			AdminSecret: getEnv("ADMIN_JWT_SECRET", ""),
		},
		Log: LogConfig{
			Level:   getEnv("LOG_LEVEL", "INFO"),
			Dir:     getEnv("LOG_DIR", "logs"),
			Service: getEnv("SERVICE_NAME", "ticketcodes"),
		},
	}
}

func payMayaBaseURL(env string) string {
	if env == "production" {
		return "https://pg.maya.ph"
	}
	return "https://pg-sandbox.paymaya.com"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if parsed, err := decimal.NewFromString(value); err == nil && !parsed.IsNegative() {
			return parsed
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
