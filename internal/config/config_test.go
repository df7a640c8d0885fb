package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harperz567/food-app-qa/internal/config"
)

// TestConfig_Defaults proves that with no config file anywhere in the
// search path the documented defaults apply.
//
// Green-Flag: System MUST run with zero configuration.
func TestConfig_Defaults(t *testing.T) {
	// An empty home keeps a developer's real ~/.datatags out of the test.
	t.Setenv("HOME", t.TempDir())

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("expected defaults without a config file, got error: %v", err)
	}

	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("expected sqlite default backend, got %s", cfg.Storage.Backend)
	}
	if cfg.Server.Port != 8086 {
		t.Errorf("expected default port 8086, got %d", cfg.Server.Port)
	}
	if len(cfg.Registry.SchemaPaths) != 1 || cfg.Registry.SchemaPaths[0] != "tag-schema.yaml" {
		t.Errorf("expected default schema path, got %v", cfg.Registry.SchemaPaths)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected json logging default, got %s", cfg.Logging.Format)
	}
}

// TestConfig_LoadFile proves values from a config file override defaults.
func TestConfig_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `endpoint: http://gateway.internal:9000
storage:
  backend: postgres
  postgres:
    host: db.internal
    port: 5433
    user: qa
    password: secret
    name: tags
    sslmode: require
registry:
  schemaPaths:
    - schemas/userinfo.yaml
    - schemas/orders.yaml
  requiredFieldCheck: true
server:
  port: 9000
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Endpoint != "http://gateway.internal:9000" {
		t.Errorf("expected endpoint override, got %s", cfg.Endpoint)
	}
	if cfg.Storage.Backend != "postgres" {
		t.Errorf("expected postgres backend, got %s", cfg.Storage.Backend)
	}
	wantDSN := "host=db.internal port=5433 user=qa password=secret dbname=tags sslmode=require"
	if got := cfg.Storage.Postgres.DSN(); got != wantDSN {
		t.Errorf("expected DSN %q, got %q", wantDSN, got)
	}
	if len(cfg.Registry.SchemaPaths) != 2 {
		t.Errorf("expected 2 schema paths, got %v", cfg.Registry.SchemaPaths)
	}
	if !cfg.Registry.RequiredFieldCheck {
		t.Error("expected required field check enabled")
	}
	// Untouched sections keep their defaults.
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default logging level, got %s", cfg.Logging.Level)
	}
}

// TestConfig_RejectsInvalid proves configurations the system cannot act
// on fail loading with a named reason.
//
// Red-Flag: System MUST refuse configs it cannot honor.
func TestConfig_RejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{
			name: "unknown storage backend",
			content: `storage:
  backend: cassandra
`,
		},
		{
			name: "port out of range",
			content: `server:
  port: 70000
`,
		},
		{
			name: "unknown logging format",
			content: `logging:
  format: xml
`,
		},
		{
			name: "empty schema paths",
			content: `registry:
  schemaPaths: []
`,
		},
		{
			name: "half a matrix override",
			content: `access:
  modelPath: access/model.conf
`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}
			if _, err := config.Load(path); err == nil {
				t.Error("expected config to be rejected")
			}
		})
	}
}

// TestConfig_EnvOverride proves DATATAGS-prefixed environment variables
// override file values.
func TestConfig_EnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DATATAGS_ENDPOINT", "http://env-gateway:8086")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Endpoint != "http://env-gateway:8086" {
		t.Errorf("expected env override, got %s", cfg.Endpoint)
	}
}

// TestWriteExample proves the generated example config loads cleanly and
// never clobbers an existing file.
func TestWriteExample(t *testing.T) {
	dir := t.TempDir()

	path, err := config.WriteExample(dir)
	if err != nil {
		t.Fatalf("failed to write example config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("expected example to default to sqlite, got %s", cfg.Storage.Backend)
	}
	if cfg.Scanners.BigQuery.Project != "harpers-kitchen" {
		t.Errorf("expected example scanner settings, got %+v", cfg.Scanners.BigQuery)
	}

	if _, err := config.WriteExample(dir); err == nil {
		t.Error("expected second write to refuse overwriting")
	}
}
