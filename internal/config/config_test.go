package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/engagement-score/internal/faceapi"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("FACE_API_ENDPOINT", "https://westus.api.cognitive.microsoft.com/")
	t.Setenv("FACE_API_KEY", "secret-key")
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(missingEnvFile(t))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTPAddr)
	}
	if cfg.MaxImageBytes != DefaultMaxImageBytes {
		t.Fatalf("unexpected max image bytes: %d", cfg.MaxImageBytes)
	}
	if cfg.FaceAPI.DetectionModel != "detection_01" || cfg.FaceAPI.RecognitionModel != "recognition_01" {
		t.Fatalf("unexpected models: %+v", cfg.FaceAPI)
	}
	if len(cfg.FaceAPI.Attributes) != len(faceapi.AllAttributes) {
		t.Fatalf("expected all attributes, got %v", cfg.FaceAPI.Attributes)
	}
	if !cfg.FaceAPI.ReturnLandmarks {
		t.Fatal("expected landmarks to be requested by default")
	}
	if cfg.FaceAPI.Timeout != 30*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.FaceAPI.Timeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_IMAGE_BYTES", "2000000")
	t.Setenv("FACE_API_ATTRIBUTES", "emotion,headPose,smile")
	t.Setenv("FACE_API_RETURN_LANDMARKS", "false")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RESULT_TTL", "1h")

	cfg, err := Load(missingEnvFile(t))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if cfg.MaxImageBytes != 2000000 {
		t.Fatalf("unexpected max image bytes: %d", cfg.MaxImageBytes)
	}
	if got := faceapi.JoinAttributes(cfg.FaceAPI.Attributes); got != "emotion,headPose,smile" {
		t.Fatalf("unexpected attributes: %s", got)
	}
	if cfg.FaceAPI.ReturnLandmarks {
		t.Fatal("expected landmarks to be disabled")
	}
	if cfg.RateLimitRPS != 2.5 || cfg.ResultTTL != time.Hour {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestLoadRequiresProviderCredentials(t *testing.T) {
	t.Setenv("FACE_API_ENDPOINT", "")
	t.Setenv("FACE_API_KEY", "")

	_, err := Load(missingEnvFile(t))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "Endpoint") {
		t.Fatalf("expected endpoint in error, got %v", err)
	}
}

func TestLoadRejectsOversizedCeiling(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_IMAGE_BYTES", "10000000")

	if _, err := Load(missingEnvFile(t)); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_IMAGE_BYTES", "four megabytes")

	_, err := Load(missingEnvFile(t))
	if err == nil || !strings.Contains(err.Error(), "MAX_IMAGE_BYTES") {
		t.Fatalf("expected MAX_IMAGE_BYTES error, got %v", err)
	}
}

func TestLoadRejectsUnknownAttribute(t *testing.T) {
	setRequired(t)
	t.Setenv("FACE_API_ATTRIBUTES", "emotion,aura")

	if _, err := Load(missingEnvFile(t)); err == nil {
		t.Fatal("expected attribute error")
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_AUDIENCE", "")
	os.Unsetenv("JWT_AUDIENCE")
	t.Cleanup(func() { os.Unsetenv("JWT_AUDIENCE") })

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("JWT_AUDIENCE=classroom\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if cfg.JWTAudience != "classroom" {
		t.Fatalf("expected audience from env file, got %q", cfg.JWTAudience)
	}
}
