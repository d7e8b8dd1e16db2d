package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration loaded from environment variables,
// optionally overlaid by a YAML file named in CONFIG_FILE.
type Config struct {
	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     string `yaml:"postgres_port"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresDB       string `yaml:"postgres_db"`
	PostgresSSLMode  string `yaml:"postgres_sslmode"`

	MaxConnections     int           `yaml:"max_connections"`
	ConnectionLifetime time.Duration `yaml:"connection_lifetime"`
	ConnectRetries     int           `yaml:"connect_retries"`

	ScrapedDataDir string   `yaml:"scraped_data_dir"`
	ResponsesDir   string   `yaml:"responses_dir"`
	ExportDir      string   `yaml:"export_dir"`
	ScraperCommand []string `yaml:"scraper_command"`

	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := fromEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			log.Printf("[config] Ignoring %s: %v", path, err)
		}
	}
	cfg.setDefaults()

	return cfg
}

func fromEnv() *Config {
	cfg := &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "catalog"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "catalog123"),
		PostgresDB:       getEnv("POSTGRES_DB", "marketplace"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxConnections:     getEnvInt("MAX_CONNECTIONS", 5),
		ConnectionLifetime: getEnvDuration("CONNECTION_LIFETIME", 5*time.Minute),
		ConnectRetries:     getEnvInt("CONNECT_RETRIES", 10),

		ScrapedDataDir: getEnv("SCRAPED_DATA_DIR", "./selenium/scraped_data"),
		ResponsesDir:   getEnv("RESPONSES_DIR", "./ai/responses"),
		ExportDir:      getEnv("EXPORT_DIR", "./exports"),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	if cmd := os.Getenv("SCRAPER_COMMAND"); cmd != "" {
		cfg.ScraperCommand = strings.Fields(cmd)
	}
	return cfg
}

// overlayFile unmarshals a YAML file over the env-derived values. Keys absent
// from the file keep their current value.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.MaxConnections <= 0 {
		c.MaxConnections = 5
	}
	if c.ConnectionLifetime <= 0 {
		c.ConnectionLifetime = 5 * time.Minute
	}
	if c.ConnectRetries <= 0 {
		c.ConnectRetries = 1
	}
	if c.ExportDir == "" {
		c.ExportDir = "./exports"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
