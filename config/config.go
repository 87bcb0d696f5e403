package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

type Config struct {
	Port string

	MongoURI      string
	MongoDatabase string

	Identity IdentityConfig
	Storage  StorageConfig

	AllowedOrigins []string

	KafkaBrokers []string
	KafkaTopic   string

	OTELEndpoint    string
	OTELServiceName string

	LogLevel  string
	LogFormat string
}

type IdentityConfig struct {
	ProjectID   string
	ClientEmail string
	CertsURL    string
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicURL     string
	Folder        string
	MaxImageBytes int64
}

// serviceAccount is the subset of the identity provider's service account
// JSON the server needs.
type serviceAccount struct {
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("could not read %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "5000")
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DATABASE", "blog")
	v.SetDefault("IDENTITY_CERTS_URL", defaultCertsURL)
	v.SetDefault("STORAGE_ENDPOINT", "localhost:9000")
	v.SetDefault("STORAGE_BUCKET", "blog-images")
	v.SetDefault("STORAGE_USE_SSL", false)
	v.SetDefault("STORAGE_FOLDER", "blog-images")
	v.SetDefault("MAX_IMAGE_BYTES", 5<<20)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,https://blog-space-plum.vercel.app")
	v.SetDefault("KAFKA_TOPIC", "posts.events")
	v.SetDefault("OTEL_SERVICE_NAME", "blog-api")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:          v.GetString("PORT"),
		MongoURI:      v.GetString("MONGODB_URI"),
		MongoDatabase: v.GetString("MONGODB_DATABASE"),
		Storage: StorageConfig{
			Endpoint:      v.GetString("STORAGE_ENDPOINT"),
			AccessKey:     v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:     v.GetString("STORAGE_SECRET_KEY"),
			Bucket:        v.GetString("STORAGE_BUCKET"),
			UseSSL:        v.GetBool("STORAGE_USE_SSL"),
			PublicURL:     v.GetString("STORAGE_PUBLIC_URL"),
			Folder:        v.GetString("STORAGE_FOLDER"),
			MaxImageBytes: v.GetInt64("MAX_IMAGE_BYTES"),
		},
		AllowedOrigins:  splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		KafkaBrokers:    splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:      v.GetString("KAFKA_TOPIC"),
		OTELEndpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTELServiceName: v.GetString("OTEL_SERVICE_NAME"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
	}

	sa, err := decodeServiceAccount(v.GetString("FIREBASE_KEY_BASE64"))
	if err != nil {
		return nil, err
	}
	cfg.Identity = IdentityConfig{
		ProjectID:   sa.ProjectID,
		ClientEmail: sa.ClientEmail,
		CertsURL:    v.GetString("IDENTITY_CERTS_URL"),
	}

	if cfg.Storage.PublicURL == "" {
		scheme := "http"
		if cfg.Storage.UseSSL {
			scheme = "https"
		}
		cfg.Storage.PublicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Storage.Endpoint, cfg.Storage.Bucket)
	}
	cfg.Storage.PublicURL = strings.TrimRight(cfg.Storage.PublicURL, "/")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeServiceAccount(encoded string) (*serviceAccount, error) {
	if encoded == "" {
		return nil, errors.New("FIREBASE_KEY_BASE64 is required")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("FIREBASE_KEY_BASE64 is not valid base64: %w", err)
	}
	var sa serviceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("FIREBASE_KEY_BASE64 is not a service account JSON: %w", err)
	}
	if sa.ProjectID == "" {
		return nil, errors.New("service account JSON has no project_id")
	}
	return &sa, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.MongoURI == "" {
		missing = append(missing, "MONGODB_URI")
	}
	if c.Storage.AccessKey == "" {
		missing = append(missing, "STORAGE_ACCESS_KEY")
	}
	if c.Storage.SecretKey == "" {
		missing = append(missing, "STORAGE_SECRET_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	if c.Storage.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be positive, got %d", c.Storage.MaxImageBytes)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
