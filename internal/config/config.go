// Package config loads the server configuration. Sources are applied in
// order: defaults, YAML file, ZEMLJEVID_* environment variables. Command
// line flags are applied on top by the binary.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/multierr"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "ZEMLJEVID_"

// Backend and mode names.
const (
	StorageSQLite = "sqlite"
	StorageMongo  = "mongo"

	ImagesDB    = "db"
	ImagesMinIO = "minio"

	IdentityLocal  = "local"
	IdentityRemote = "remote"
)

// Config is the complete server configuration.
type Config struct {
	Server    Server    `yaml:"server" envPrefix:"SERVER_"`
	Storage   Storage   `yaml:"storage" envPrefix:"STORAGE_"`
	Images    Images    `yaml:"images" envPrefix:"IMAGES_"`
	Identity  Identity  `yaml:"identity" envPrefix:"IDENTITY_"`
	Logging   Logging   `yaml:"logging" envPrefix:"LOGGING_"`
	Telemetry Telemetry `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// Server holds the HTTP listener settings.
type Server struct {
	Addr              string        `yaml:"addr" env:"ADDR"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`
	ReadTimeout       time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// Storage selects and configures the storage backend.
type Storage struct {
	Backend       string `yaml:"backend" env:"BACKEND"`
	SQLitePath    string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	MongoURI      string `yaml:"mongo_uri" env:"MONGO_URI"`
	MongoDatabase string `yaml:"mongo_database" env:"MONGO_DATABASE"`
}

// Images selects where uploaded images are kept.
type Images struct {
	Backend        string `yaml:"backend" env:"BACKEND"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
	MinIO          MinIO  `yaml:"minio" envPrefix:"MINIO_"`
}

// MinIO configures the object storage image backend.
type MinIO struct {
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"BUCKET"`
	Region    string `yaml:"region" env:"REGION"`
	UseSSL    bool   `yaml:"use_ssl" env:"USE_SSL"`
}

// Identity selects local or remote account management.
type Identity struct {
	Mode          string        `yaml:"mode" env:"MODE"`
	RemoteURL     string        `yaml:"remote_url" env:"REMOTE_URL"`
	RemoteTimeout time.Duration `yaml:"remote_timeout" env:"REMOTE_TIMEOUT"`
	CacheTTL      time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	// JWTSecret signs tokens. Empty means a secret persisted in storage.
	JWTSecret  string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL   time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`
	BcryptCost int           `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
	AdminName  string        `yaml:"admin_name" env:"ADMIN_NAME"`
	AdminEmail string        `yaml:"admin_email" env:"ADMIN_EMAIL"`
}

// Logging configures the slog output.
type Logging struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
	Path   string `yaml:"path" env:"PATH"`
}

// Telemetry configures OTLP trace export.
type Telemetry struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" env:"SERVICE_NAME"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Storage: Storage{
			Backend:       StorageSQLite,
			SQLitePath:    "zemljevid.sqlite3",
			MongoDatabase: "zemljevid",
		},
		Images: Images{
			Backend:        ImagesDB,
			MaxUploadBytes: 5 << 20,
			MinIO:          MinIO{Bucket: "zemljevid", Region: "us-east-1"},
		},
		Identity: Identity{
			Mode:          IdentityLocal,
			RemoteTimeout: 5 * time.Second,
			CacheTTL:      time.Minute,
			TokenTTL:      7 * 24 * time.Hour,
			AdminName:     "admin",
			AdminEmail:    "admin@localhost.localdomain",
		},
		Logging:   Logging{Level: "info", Format: "text"},
		Telemetry: Telemetry{ServiceName: "zemljevid"},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and the process environment.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

// load reads environ instead of the process environment when non-nil.
func load(path string, environ map[string]string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite backend"))
		}
	case StorageMongo:
		if c.Storage.MongoURI == "" {
			errs = append(errs, errors.New("storage.mongo_uri is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q must be %q or %q", c.Storage.Backend, StorageSQLite, StorageMongo))
	}

	switch c.Images.Backend {
	case ImagesDB:
	case ImagesMinIO:
		if c.Images.MinIO.Endpoint == "" || c.Images.MinIO.Bucket == "" {
			errs = append(errs, errors.New("images.minio.endpoint and images.minio.bucket are required for the minio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("images.backend %q must be %q or %q", c.Images.Backend, ImagesDB, ImagesMinIO))
	}
	if c.Images.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("images.max_upload_bytes must be positive"))
	}

	switch c.Identity.Mode {
	case IdentityLocal:
	case IdentityRemote:
		if c.Identity.RemoteURL == "" {
			errs = append(errs, errors.New("identity.remote_url is required in remote mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("identity.mode %q must be %q or %q", c.Identity.Mode, IdentityLocal, IdentityRemote))
	}
	if cost := c.Identity.BcryptCost; cost != 0 && (cost < bcrypt.MinCost || cost > bcrypt.MaxCost) {
		errs = append(errs, fmt.Errorf("identity.bcrypt_cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost))
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Logging.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}

	return multierr.Combine(errs...)
}

// SlogLevel parses the configured level name.
func (l Logging) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level %q: %w", l.Level, err)
	}
	return level, nil
}
