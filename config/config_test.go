package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "")
	t.Setenv("SCRAPER_COMMAND", "")
	t.Setenv("CONNECTION_LIFETIME", "")

	cfg := fromEnv()
	if cfg.PostgresHost != "localhost" {
		t.Errorf("PostgresHost: got %q, want localhost", cfg.PostgresHost)
	}
	if cfg.ConnectionLifetime != 5*time.Minute {
		t.Errorf("ConnectionLifetime: got %v, want 5m", cfg.ConnectionLifetime)
	}
	if len(cfg.ScraperCommand) != 0 {
		t.Errorf("ScraperCommand: got %v, want empty", cfg.ScraperCommand)
	}
}

func TestFromEnvScraperCommand(t *testing.T) {
	t.Setenv("SCRAPER_COMMAND", "  .venv/bin/python   selenium/main.py ")

	cfg := fromEnv()
	want := []string{".venv/bin/python", "selenium/main.py"}
	if len(cfg.ScraperCommand) != len(want) {
		t.Fatalf("ScraperCommand: got %v, want %v", cfg.ScraperCommand, want)
	}
	for i := range want {
		if cfg.ScraperCommand[i] != want[i] {
			t.Errorf("ScraperCommand[%d]: got %q, want %q", i, cfg.ScraperCommand[i], want[i])
		}
	}
}

func TestOverlayFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "postgres_db: catalog_test\nconnection_lifetime: 90s\nscraper_command: [\"python\", \"main.py\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{PostgresHost: "db", PostgresDB: "marketplace"}
	if err := cfg.overlayFile(path); err != nil {
		t.Fatalf("overlayFile: %v", err)
	}
	if cfg.PostgresDB != "catalog_test" {
		t.Errorf("PostgresDB: got %q, want catalog_test", cfg.PostgresDB)
	}
	if cfg.PostgresHost != "db" {
		t.Errorf("PostgresHost should be kept, got %q", cfg.PostgresHost)
	}
	if cfg.ConnectionLifetime != 90*time.Second {
		t.Errorf("ConnectionLifetime: got %v, want 90s", cfg.ConnectionLifetime)
	}
	if len(cfg.ScraperCommand) != 2 {
		t.Errorf("ScraperCommand: got %v", cfg.ScraperCommand)
	}
}

func TestOverlayFileMissing(t *testing.T) {
	cfg := &Config{}
	if err := cfg.overlayFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()
	if cfg.MaxConnections != 5 || cfg.ConnectRetries != 1 || cfg.HTTPAddr != ":8080" || cfg.ExportDir != "./exports" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost: "h", PostgresPort: "1", PostgresUser: "u",
		PostgresPassword: "p", PostgresDB: "d", PostgresSSLMode: "disable",
	}
	want := "host=h port=1 user=u password=p dbname=d sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q; want %q", got, want)
	}
}
