package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const minJWTSecretLen = 32

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	// PublicBaseURL prefixes the confirm/reject links mailed to approvers.
	PublicBaseURL string

	// AccountStore selects the account persistence backend: "dynamo" or "memory".
	AccountStore   string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTSecret string
	JWTIssuer string
	JWTExpiry time.Duration

	OTPTTL        time.Duration
	ApprovalTTL   time.Duration
	SweepInterval time.Duration

	// AdminApprovers receive the confirm/reject links for admin onboarding requests.
	AdminApprovers []string

	SMTPHost      string
	SMTPPort      string
	SMTPFrom      string
	SMTPUsername  string
	SMTPPassword  string
	MailWorkers   int
	MailQueueSize int

	AllowedOrigins []string // CORS allowed origins

	// TrustProxyHeaders lets X-Forwarded-For / X-Real-IP set the client address.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

// DynamoTables holds the DynamoDB table name for each account audience.
type DynamoTables struct {
	Users  string
	Admins string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	otpTTL := getEnvDuration("OTP_TTL", 10*time.Minute)
	return &Config{
		AppPort:        getEnv("APP_PORT", "8080"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		AccountStore:   getEnv("ACCOUNT_STORE", "dynamo"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:  getEnv("DYNAMO_TABLE_USERS", "users"),
			Admins: getEnv("DYNAMO_TABLE_ADMINS", "admin_details"),
		},
		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", "storefront-auth"),
		JWTExpiry:      getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		OTPTTL:         otpTTL,
		ApprovalTTL:    getEnvDuration("APPROVAL_TOKEN_TTL", otpTTL),
		SweepInterval:  getEnvDuration("PENDING_SWEEP_INTERVAL", time.Minute),
		AdminApprovers: getEnvList("ADMIN_APPROVER_EMAILS", nil),
		SMTPHost:       getEnv("SMTP_HOST", "localhost"),
		SMTPPort:       getEnv("SMTP_PORT", "1025"),
		SMTPFrom:       getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		MailWorkers:    getEnvInt("MAIL_WORKERS", 2),
		MailQueueSize:  getEnvInt("MAIL_QUEUE_SIZE", 256),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),

		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
	}
}

// Validate reports configuration that would make the credential subsystem unsafe or inert.
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < minJWTSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLen))
	}
	if c.JWTExpiry <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRY must be positive"))
	}
	if c.OTPTTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL must be positive"))
	}
	if c.ApprovalTTL < 0 {
		errs = append(errs, errors.New("APPROVAL_TOKEN_TTL must not be negative"))
	}
	if len(c.AdminApprovers) == 0 {
		errs = append(errs, errors.New("ADMIN_APPROVER_EMAILS must list at least one address"))
	}
	switch c.AccountStore {
	case "dynamo", "memory":
	default:
		errs = append(errs, fmt.Errorf("ACCOUNT_STORE %q is not one of dynamo, memory", c.AccountStore))
	}
	if c.MailWorkers < 1 {
		errs = append(errs, errors.New("MAIL_WORKERS must be at least 1"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
