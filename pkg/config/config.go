package config

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// New reads the configuration from environment variables. All missing or invalid variables are
// reported at once.
func New() (Config, error) {
	env := &environment{}

	cfg := Config{
		Environment: env.optional("ENVIRONMENT", "development"),
		BasePath:    env.optional("BASE_PATH", ""),
		Port:        env.optionalInt("PORT", 8080),
		Log: Log{
			Format: env.optional("LOG_FORMAT", "json"),
			Level:  env.optional("LOG_LEVEL", "info"),
		},
		DefaultTenant: strings.ToLower(env.optional("DEFAULT_TENANT", "default")),
		Postgresql: Postgresql{
			Host:         env.require("DATABASE_HOST"),
			Port:         env.requireInt("DATABASE_PORT"),
			Username:     env.require("DATABASE_USERNAME"),
			Password:     env.require("DATABASE_PASSWORD"),
			DatabaseName: env.require("DATABASE_NAME"),
		},
		Redis: Redis{
			Host:     env.require("REDIS_HOST"),
			Port:     env.requireInt("REDIS_PORT"),
			Password: env.optional("REDIS_PASSWORD", ""),
			DB:       env.optionalInt("REDIS_DB", 0),
			TTL:      env.optionalDuration("REDIS_CACHE_TTL", 5*time.Minute),
		},
		RabbitMQ: RabbitMQ{
			Host:     env.require("RABBITMQ_HOST"),
			Port:     env.requireInt("RABBITMQ_PORT"),
			Username: env.require("RABBITMQ_USERNAME"),
			Password: env.require("RABBITMQ_PASSWORD"),
			VHost:    env.optional("RABBITMQ_VHOST", ""),
			Exchange: env.optional("DMF_EXCHANGE", "dmf.exchange"),
		},
		DMF: DMF{
			DownloadURL: strings.TrimSuffix(env.optional("DMF_DOWNLOAD_URL", ""), "/"),
		},
		ArtifactStorage: ArtifactStorage{
			Backend: env.optional("ARTIFACT_STORAGE", StorageS3),
			Bucket:  env.require("ARTIFACT_BUCKET"),
			S3: S3{
				Region:   env.optional("S3_REGION", "eu-west-1"),
				Endpoint: env.optional("S3_ENDPOINT", ""),
			},
			MinIO: MinIO{
				Endpoint:  env.optional("MINIO_ENDPOINT", ""),
				AccessKey: env.optional("MINIO_ACCESS_KEY", ""),
				SecretKey: env.optional("MINIO_SECRET_KEY", ""),
				UseSSL:    env.optionalBool("MINIO_USE_SSL", false),
			},
		},
		Authentication: Authentication{
			AdminUsername:     env.require("AUTHENTICATION_ADMIN_USERNAME"),
			AdminPasswordHash: env.require("AUTHENTICATION_ADMIN_PASSWORD_HASH"),
			PublicKey:         env.optionalPublicKey("AUTHENTICATION_PUBLIC_KEY"),
		},
		Scheduler: Scheduler{
			RolloutInterval:    env.optionalDuration("ROLLOUT_SCHEDULER_INTERVAL", 10*time.Second),
			AutoAssignInterval: env.optionalDuration("AUTO_ASSIGN_SCHEDULER_INTERVAL", time.Minute),
			CleanupInterval:    env.optionalDuration("ACTION_CLEANUP_SCHEDULER_INTERVAL", time.Hour),
		},
		JaegerEndpoint: env.optional("JAEGER_ENDPOINT", ""),
	}

	switch cfg.ArtifactStorage.Backend {
	case StorageS3:
	case StorageMinIO:
		if cfg.ArtifactStorage.MinIO.Endpoint == "" {
			env.errs = append(env.errs, errors.New("MINIO_ENDPOINT is required when ARTIFACT_STORAGE is minio"))
		}
	default:
		env.errs = append(env.errs, fmt.Errorf("ARTIFACT_STORAGE must be %q or %q, got %q", StorageS3, StorageMinIO, cfg.ArtifactStorage.Backend))
	}

	if err := errors.Join(env.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type Config struct {
	Environment     string
	BasePath        string
	Port            int
	Log             Log
	DefaultTenant   string
	Postgresql      Postgresql
	Redis           Redis
	RabbitMQ        RabbitMQ
	DMF             DMF
	ArtifactStorage ArtifactStorage
	Authentication  Authentication
	Scheduler       Scheduler
	// JaegerEndpoint enables tracing if set.
	JaegerEndpoint string
}

type Log struct {
	Format string
	Level  string
}

type Postgresql struct {
	Host         string
	Port         int
	Username     string
	Password     string
	DatabaseName string
}

type Redis struct {
	Host     string
	Port     int
	Password string
	DB       int
	// TTL of cached tenant configuration values.
	TTL time.Duration
}

type RabbitMQ struct {
	Host     string
	Port     int
	Username string
	Password string
	VHost    string
	// Exchange DMF messages are published to unless the target address names one.
	Exchange string
}

// GetURL returns the AMQP URL of the broker.
func (r RabbitMQ) GetURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", r.Username, r.Password, r.Host, r.Port, r.VHost)
}

type DMF struct {
	// DownloadURL is the base URL of the API targets download artifacts from. Messages don't
	// contain artifact URLs if it is empty.
	DownloadURL string
}

const (
	StorageS3    = "s3"
	StorageMinIO = "minio"
)

type ArtifactStorage struct {
	Backend string
	Bucket  string
	S3      S3
	MinIO   MinIO
}

type S3 struct {
	Region string
	// Endpoint overrides the AWS endpoint, i.e. for localstack.
	Endpoint string
}

type MinIO struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type Authentication struct {
	AdminUsername     string
	AdminPasswordHash string
	// PublicKey verifies bearer tokens. Bearer tokens are rejected if it is nil.
	PublicKey *rsa.PublicKey
}

type Scheduler struct {
	RolloutInterval    time.Duration
	AutoAssignInterval time.Duration
	CleanupInterval    time.Duration
}

type environment struct {
	errs []error
}

func (e *environment) require(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		e.errs = append(e.errs, fmt.Errorf("can't find environment variable %s", key))
	}
	return value
}

func (e *environment) requireInt(key string) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		e.errs = append(e.errs, fmt.Errorf("can't find environment variable %s", key))
		return 0
	}
	return e.atoi(key, value)
}

func (e *environment) atoi(key, value string) int {
	i, err := strconv.Atoi(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("can't parse %s as integer: %v", key, err))
	}
	return i
}

func (e *environment) optional(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	return value
}

func (e *environment) optionalInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	return e.atoi(key, value)
}

func (e *environment) optionalBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("can't parse %s as bool: %v", key, err))
	}
	return b
}

func (e *environment) optionalDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("can't parse %s as duration: %v", key, err))
		return fallback
	}
	if d <= 0 {
		e.errs = append(e.errs, fmt.Errorf("%s must be positive, got %s", key, d))
		return fallback
	}
	return d
}

func (e *environment) optionalPublicKey(key string) *rsa.PublicKey {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return nil
	}

	parsed, err := jwk.ParseKey([]byte(value), jwk.WithPEM(true))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("can't parse %s as PEM encoded key: %v", key, err))
		return nil
	}

	var publicKey rsa.PublicKey
	if err := parsed.Raw(&publicKey); err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s must be an RSA public key: %v", key, err))
		return nil
	}
	return &publicKey
}
