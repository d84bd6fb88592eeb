// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/example/engagement-score/internal/faceapi"
)

// DefaultMaxImageBytes sits just below the provider's own upload limit.
const DefaultMaxImageBytes = 4000000

// Config holds service configuration.
type Config struct {
	HTTPAddr        string        `validate:"required"`
	GRPCHealthAddr  string
	ShutdownTimeout time.Duration `validate:"gt=0"`

	FaceAPI       FaceAPI
	MaxImageBytes int64 `validate:"gt=0,lte=6291456"`

	// Optional result storage. Empty values disable the store.
	DatabaseDSN string
	RedisAddr   string
	ResultTTL   time.Duration `validate:"gt=0"`

	// JWTSecret enables bearer auth on the engagement routes.
	JWTSecret   string
	JWTAudience string

	// RateLimitRPS of 0 disables per-IP rate limiting.
	RateLimitRPS   float64 `validate:"gte=0"`
	RateLimitBurst int     `validate:"gte=0"`

	LogLevel string `validate:"omitempty,oneof=debug info warn error"`
	LogFile  string
}

// FaceAPI configures the face detection provider.
type FaceAPI struct {
	Endpoint         string              `validate:"required,url"`
	SubscriptionKey  string              `validate:"required"`
	DetectionModel   string              `validate:"required"`
	RecognitionModel string              `validate:"required"`
	Attributes       []faceapi.Attribute `validate:"min=1"`
	ReturnLandmarks  bool
	Timeout          time.Duration `validate:"gte=0"`
}

// Load reads an optional env file (".env" when none is given), then the
// process environment, and validates the result. Variables already set in the
// environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	env := &envReader{}
	cfg := &Config{
		HTTPAddr:        env.String("HTTP_ADDR", ":8080"),
		GRPCHealthAddr:  env.String("GRPC_HEALTH_ADDR", ""),
		ShutdownTimeout: env.Duration("SHUTDOWN_TIMEOUT", 15*time.Second),
		FaceAPI: FaceAPI{
			Endpoint:         env.String("FACE_API_ENDPOINT", ""),
			SubscriptionKey:  env.String("FACE_API_KEY", ""),
			DetectionModel:   env.String("FACE_API_DETECTION_MODEL", "detection_01"),
			RecognitionModel: env.String("FACE_API_RECOGNITION_MODEL", "recognition_01"),
			ReturnLandmarks:  env.Bool("FACE_API_RETURN_LANDMARKS", true),
			Timeout:          env.Duration("FACE_API_TIMEOUT", 30*time.Second),
		},
		MaxImageBytes:  env.Int64("MAX_IMAGE_BYTES", DefaultMaxImageBytes),
		DatabaseDSN:    env.String("DATABASE_DSN", ""),
		RedisAddr:      env.String("REDIS_ADDR", ""),
		ResultTTL:      env.Duration("RESULT_TTL", 10*time.Minute),
		JWTSecret:      env.String("JWT_SECRET", ""),
		JWTAudience:    env.String("JWT_AUDIENCE", ""),
		RateLimitRPS:   env.Float("RATE_LIMIT_RPS", 0),
		RateLimitBurst: env.Int("RATE_LIMIT_BURST", 20),
		LogLevel:       env.String("LOG_LEVEL", "info"),
		LogFile:        env.String("LOG_FILE", ""),
	}
	if env.err != nil {
		return nil, env.err
	}

	attrs, err := faceapi.ParseAttributes(os.Getenv("FACE_API_ATTRIBUTES"))
	if err != nil {
		return nil, fmt.Errorf("FACE_API_ATTRIBUTES: %w", err)
	}
	cfg.FaceAPI.Attributes = attrs

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// envReader reads typed variables and keeps the first parse error.
type envReader struct {
	err error
}

func (r *envReader) lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func (r *envReader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}
}

func (r *envReader) String(key, fallback string) string {
	if value, ok := r.lookup(key); ok {
		return value
	}
	return fallback
}

func (r *envReader) Int(key string, fallback int) int {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		r.fail(key, value, err)
		return fallback
	}
	return parsed
}

func (r *envReader) Int64(key string, fallback int64) int64 {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		r.fail(key, value, err)
		return fallback
	}
	return parsed
}

func (r *envReader) Float(key string, fallback float64) float64 {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.fail(key, value, err)
		return fallback
	}
	return parsed
}

func (r *envReader) Bool(key string, fallback bool) bool {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		r.fail(key, value, err)
		return fallback
	}
	return parsed
}

func (r *envReader) Duration(key string, fallback time.Duration) time.Duration {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		r.fail(key, value, err)
		return fallback
	}
	return parsed
}
