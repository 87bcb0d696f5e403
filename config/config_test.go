package config

import (
	"encoding/base64"
	"reflect"
	"strings"
	"testing"
)

const noEnvFile = "testdata/does-not-exist.env"

func setRequired(t *testing.T) {
	t.Helper()
	sa := `{"type":"service_account","project_id":"blog-space","client_email":"svc@blog-space.iam.gserviceaccount.com"}`
	t.Setenv("FIREBASE_KEY_BASE64", base64.StdEncoding.EncodeToString([]byte(sa)))
	t.Setenv("STORAGE_ACCESS_KEY", "minio")
	t.Setenv("STORAGE_SECRET_KEY", "minio123")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(noEnvFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Addr() != ":5000" {
		t.Errorf("Addr() = %q, want :5000", cfg.Addr())
	}
	if cfg.Identity.ProjectID != "blog-space" {
		t.Errorf("ProjectID = %q", cfg.Identity.ProjectID)
	}
	if cfg.Identity.CertsURL != defaultCertsURL {
		t.Errorf("CertsURL = %q", cfg.Identity.CertsURL)
	}
	want := []string{"http://localhost:3000", "https://blog-space-plum.vercel.app"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
	}
	if cfg.Storage.PublicURL != "http://localhost:9000/blog-images" {
		t.Errorf("PublicURL = %q", cfg.Storage.PublicURL)
	}
	if cfg.Storage.MaxImageBytes != 5<<20 {
		t.Errorf("MaxImageBytes = %d", cfg.Storage.MaxImageBytes)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Errorf("KafkaBrokers = %v, want none", cfg.KafkaBrokers)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "8080")
	t.Setenv("STORAGE_PUBLIC_URL", "https://cdn.example.com/images/")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example")

	cfg, err := Load(noEnvFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.Storage.PublicURL != "https://cdn.example.com/images" {
		t.Errorf("PublicURL = %q", cfg.Storage.PublicURL)
	}
	if !reflect.DeepEqual(cfg.KafkaBrokers, []string{"k1:9092", "k2:9092"}) {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"https://a.example"}) {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadRejectsBadServiceAccount(t *testing.T) {
	cases := []struct {
		name    string
		value   string
		wantErr string
	}{
		{"missing", "", "FIREBASE_KEY_BASE64 is required"},
		{"not base64", "%%%", "not valid base64"},
		{"not json", base64.StdEncoding.EncodeToString([]byte("nope")), "not a service account JSON"},
		{"no project", base64.StdEncoding.EncodeToString([]byte(`{"client_email":"x"}`)), "no project_id"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv("FIREBASE_KEY_BASE64", c.value)
			_, err := Load(noEnvFile)
			if err == nil || !strings.Contains(err.Error(), c.wantErr) {
				t.Fatalf("Load() error = %v, want it to contain %q", err, c.wantErr)
			}
		})
	}
}

func TestLoadRequiresStorageCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_SECRET_KEY", "")

	_, err := Load(noEnvFile)
	if err == nil || !strings.Contains(err.Error(), "STORAGE_SECRET_KEY") {
		t.Fatalf("Load() error = %v, want missing STORAGE_SECRET_KEY", err)
	}
}
