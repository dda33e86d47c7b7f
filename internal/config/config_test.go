package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zemljevid.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := load("", map[string]string{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestPrecedence(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9000"
  shutdown_timeout: 10s
storage:
  backend: mongo
  mongo_uri: mongodb://file:27017
identity:
  bcrypt_cost: 10
logging:
  level: debug
`)

	cfg, err := load(path, map[string]string{
		"ZEMLJEVID_STORAGE_MONGO_URI":     "mongodb://env:27017",
		"ZEMLJEVID_IMAGES_MINIO_ENDPOINT": "minio:9000",
		"ZEMLJEVID_IDENTITY_TOKEN_TTL":    "1h",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := Default()
	want.Server.Addr = ":9000"
	want.Server.ShutdownTimeout = 10 * time.Second
	want.Storage.Backend = StorageMongo
	want.Storage.MongoURI = "mongodb://env:27017"
	want.Images.MinIO.Endpoint = "minio:9000"
	want.Identity.BcryptCost = 10
	want.Identity.TokenTTL = time.Hour
	want.Logging.Level = "debug"

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	level, err := cfg.Logging.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("SlogLevel = %v, %v; want debug", level, err)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := load(filepath.Join(t.TempDir(), "missing.yaml"), map[string]string{}); err == nil {
		t.Error("expected error for missing file")
	}

	if _, err := load(writeFile(t, "server: [unclosed"), map[string]string{}); err == nil {
		t.Error("expected error for malformed YAML")
	}

	if _, err := load("", map[string]string{"ZEMLJEVID_IDENTITY_BCRYPT_COST": "many"}); err == nil {
		t.Error("expected error for malformed environment value")
	}
}

func TestValidateReportsEverything(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "postgres"
	cfg.Images.Backend = ImagesMinIO
	cfg.Identity.Mode = IdentityRemote
	cfg.Identity.BcryptCost = 99
	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if got := len(multierr.Errors(err)); got != 6 {
		t.Errorf("expected 6 problems, got %d: %v", got, err)
	}
}
